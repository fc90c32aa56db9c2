package factory

import (
	"errors"
	"testing"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/model"

	"github.com/sirupsen/logrus"
)

type recordingWriter struct {
	name    string
	fail    bool
	written int
	closed  bool
}

func (w *recordingWriter) Write(*model.Report) error {
	if w.fail {
		return errors.New("boom")
	}
	w.written++
	return nil
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func withRegistry(t *testing.T) {
	t.Helper()
	saved := registry
	registry = make(map[string]WriterFactory)
	t.Cleanup(func() { registry = saved })
}

func TestCreate(t *testing.T) {
	withRegistry(t)
	RegisterWriter("mem", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return &recordingWriter{name: "mem"}, nil
	})
	RegisterWriter("down", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return nil, errors.New("connection refused")
	})

	cfg := &config.Config{Outputs: []config.OutputDef{
		{Type: "mem", Enabled: true},
		{Type: "mem", Enabled: false},
		{Type: "down", Enabled: true},
	}}
	writers, err := Create(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 || writers[0].Name() != "mem" {
		t.Errorf("expected only the enabled, working writer, got %v", writers)
	}

	cfg.Outputs = append(cfg.Outputs, config.OutputDef{Type: "carrier-pigeon", Enabled: true})
	if _, err := Create(cfg, logging.Discard()); err == nil {
		t.Error("expected an error for an unknown writer type")
	}
}

func TestRegisterWriter_DuplicatePanics(t *testing.T) {
	withRegistry(t)
	f := func(config.OutputDef, logrus.FieldLogger) (model.Writer, error) { return nil, nil }
	RegisterWriter("dup", f)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on duplicate registration")
		}
	}()
	RegisterWriter("dup", f)
}

func TestWriteAllAndCloseAll(t *testing.T) {
	ok := &recordingWriter{name: "ok"}
	bad := &recordingWriter{name: "bad", fail: true}
	writers := []model.Writer{bad, ok}

	err := WriteAll(writers, &model.Report{}, logging.Discard())
	if err == nil {
		t.Error("expected the failing writer's error")
	}
	if ok.written != 1 {
		t.Error("a failing writer must not stop the others")
	}

	CloseAll(writers, logging.Discard())
	if !ok.closed || !bad.closed {
		t.Error("expected every writer to be closed")
	}
}
