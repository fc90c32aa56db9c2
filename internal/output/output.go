// Package output persists or publishes analysis reports.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/factory"
	"Go2NetProfile/internal/model"

	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("text", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewTextWriter(def.Text.Path), nil
	})
	factory.RegisterWriter("json", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewJSONWriter(def.JSON.Path), nil
	})
	factory.RegisterWriter("gob", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewGobWriter(def.Gob.Path), nil
	})
	factory.RegisterWriter("clickhouse", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, log)
	})
	factory.RegisterWriter("nats", func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error) {
		return NewNATSWriter(def.NATS, log)
	})
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// create opens path for writing, creating parent directories. An empty path
// or "-" means standard output.
func create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file '%s': %w", path, err)
	}
	return f, nil
}
