package output

import (
	"encoding/json"
	"fmt"

	"Go2NetProfile/internal/model"
)

// JSONWriter stores the full report as indented JSON.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a JSON writer for path; "" or "-" writes to stdout.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) Close() error { return nil }

func (w *JSONWriter) Write(report *model.Report) error {
	f, err := create(w.path)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode report to json: %w", err)
	}
	return f.Close()
}
