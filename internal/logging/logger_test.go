package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger_Levels(t *testing.T) {
	cases := map[string]logrus.Level{
		"DEBUG":   logrus.DebugLevel,
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"ERROR":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := NewLogger(in, "text").GetLevel(); got != want {
			t.Errorf("NewLogger(%q) level = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSONFormatter(t *testing.T) {
	logger := NewLogger("INFO", "json")
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", logger.Formatter)
	}
}
