package model

// Writer defines a generic interface for handing an analysis report to a
// persistent store or a downstream consumer.
type Writer interface {
	// Write persists or publishes the report.
	Write(report *Report) error

	// Name identifies the writer in logs.
	Name() string

	// Close releases any connection held by the writer.
	Close() error
}
