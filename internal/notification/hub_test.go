package notification

import (
	"testing"
	"time"

	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/model"
)

func TestHub_Notify(t *testing.T) {
	h := NewHub(logging.Discard())
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(1)
	defer cancelB()

	h.Notify(&model.Report{RunID: "run-1", GeneratedAt: time.Unix(0, 0), Applications: []string{"zoom"}})

	for _, ch := range []<-chan Notice{a, b} {
		select {
		case n := <-ch:
			if n.RunID != "run-1" || n.Type != TypeReportReady {
				t.Errorf("unexpected notice %+v", n)
			}
		default:
			t.Fatal("expected a notice")
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("expected the channel to be closed after unsubscribing")
	}
	if got := h.Subscribers(); got != 1 {
		t.Errorf("expected 1 subscriber, got %d", got)
	}
}

func TestHub_DropsForSlowSubscribers(t *testing.T) {
	h := NewHub(logging.Discard())
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Notify(&model.Report{RunID: "first"})
	h.Notify(&model.Report{RunID: "second"})

	if n := <-ch; n.RunID != "first" {
		t.Errorf("expected the first notice, got %+v", n)
	}
	select {
	case n := <-ch:
		t.Errorf("expected the second notice to be dropped, got %+v", n)
	default:
	}
}
