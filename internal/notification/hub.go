// Package notification broadcasts report notices to live subscribers.
package notification

import (
	"sync"
	"time"

	"Go2NetProfile/internal/model"

	"github.com/sirupsen/logrus"
)

// TypeReportReady is the notice type sent when a run completes.
const TypeReportReady = "report_ready"

// Notice is the message sent to subscribers when a new report is ready.
type Notice struct {
	Type         string    `json:"type"`
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Applications []string  `json:"applications"`
}

// NewNotice builds the report_ready notice for report.
func NewNotice(report *model.Report) Notice {
	return Notice{
		Type:         TypeReportReady,
		RunID:        report.RunID,
		GeneratedAt:  report.GeneratedAt,
		Applications: report.Applications,
	}
}

// Hub fans report notices out to subscribers. It implements model.Notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Notice
	next int
	log  logrus.FieldLogger
}

// NewHub creates an empty Hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{subs: make(map[int]chan Notice), log: log}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Notice, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Notice, buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Notify sends a notice for report to every subscriber. Slow subscribers
// whose buffer is full miss the notice.
func (h *Hub) Notify(report *model.Report) {
	notice := NewNotice(report)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- notice:
		default:
			h.log.WithField("subscriber", id).Debug("Subscriber is lagging, dropping notice.")
		}
	}
}
