package model

// Notifier is told about every completed report.
type Notifier interface {
	Notify(report *Report)
}
