package factory

import (
	"fmt"
	"sort"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/model"

	"github.com/sirupsen/logrus"
)

// WriterFactory builds a writer from its output definition.
type WriterFactory func(def config.OutputDef, log logrus.FieldLogger) (model.Writer, error)

// registry holds the mapping of output types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new output type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the known output types, sorted.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds every enabled output of cfg. An unknown type is a
// configuration error; a writer that fails to start (an unreachable
// database, say) is logged and skipped.
func Create(cfg *config.Config, log logrus.FieldLogger) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Outputs {
		if !def.Enabled {
			continue
		}
		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		log.WithField("type", def.Type).Info("Creating writer.")
		writer, err := factory(def, log)
		if err != nil {
			log.WithError(err).WithField("type", def.Type).Warn("Failed to create writer, skipping.")
			continue
		}
		writers = append(writers, writer)
	}

	return writers, nil
}

// WriteAll hands report to every writer. It returns the first error after
// trying all of them.
func WriteAll(writers []model.Writer, report *model.Report, log logrus.FieldLogger) error {
	var firstErr error
	for _, w := range writers {
		if err := w.Write(report); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Error("Writer failed.")
			if firstErr == nil {
				firstErr = fmt.Errorf("writer '%s': %w", w.Name(), err)
			}
			continue
		}
		log.WithField("writer", w.Name()).Debug("Report written.")
	}
	return firstErr
}

// CloseAll closes every writer, logging failures.
func CloseAll(writers []model.Writer, log logrus.FieldLogger) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Warn("Failed to close writer.")
		}
	}
}
