package output

import (
	"fmt"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/model"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// publisher is the part of *nats.Conn the writer needs.
type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSWriter publishes one protobuf message per (scenario, metric,
// application) summary.
type NATSWriter struct {
	pub     publisher
	subject string
	log     logrus.FieldLogger
}

// NewNATSWriter connects to the NATS server in cfg.
func NewNATSWriter(cfg config.NATSConfig, log logrus.FieldLogger) (*NATSWriter, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("netprofile-analyzer"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	log.WithField("url", cfg.URL).Info("Connected to NATS server.")
	return newNATSWriter(nc, cfg.Subject, log), nil
}

func newNATSWriter(pub publisher, subject string, log logrus.FieldLogger) *NATSWriter {
	return &NATSWriter{pub: pub, subject: subject, log: log}
}

func (w *NATSWriter) Name() string { return "nats" }

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	if w.pub == nil {
		return nil
	}
	return w.pub.Drain()
}

// Write serializes every summary to a structpb.Struct and publishes it.
func (w *NATSWriter) Write(report *model.Report) error {
	published := 0
	for _, sr := range report.Scenarios() {
		if sr == nil {
			continue
		}
		for _, metric := range sr.MetricNames() {
			mr := sr.Metrics[metric]
			for _, label := range report.Applications {
				am, ok := mr.PerApplication[label]
				if !ok {
					continue
				}
				msg, err := summaryMessage(report, sr.Name, mr, label, am.Summary)
				if err != nil {
					return err
				}
				data, err := proto.Marshal(msg)
				if err != nil {
					return fmt.Errorf("failed to marshal summary: %w", err)
				}
				if err := w.pub.Publish(w.subject, data); err != nil {
					return fmt.Errorf("failed to publish summary: %w", err)
				}
				published++
			}
		}
	}
	w.log.WithFields(logrus.Fields{"subject": w.subject, "messages": published}).Info("Published report to NATS.")
	return nil
}

func summaryMessage(report *model.Report, scenario string, mr *model.MetricResult, label string, s model.DistributionSummary) (*structpb.Struct, error) {
	quantiles := make(map[string]any, len(s.Quantiles))
	for _, q := range s.Quantiles {
		quantiles[fmt.Sprintf("%g", q.P)] = q.Value
	}
	fields := map[string]any{
		"run_id":       report.RunID,
		"generated_at": report.GeneratedAt.Unix(),
		"scenario":     scenario,
		"metric":       string(mr.Metric),
		"application":  label,
		"count":        s.Count,
		"available":    s.Available,
	}
	if s.Available {
		fields["mean"] = s.Mean
		fields["std"] = s.Std
		fields["min"] = s.Min
		fields["max"] = s.Max
		fields["quantiles"] = quantiles
	} else {
		fields["reason"] = s.Reason
	}
	if bound, ok := mr.ClipBound.Get(); ok {
		fields["clip_bound"] = bound
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary message: %w", err)
	}
	return msg, nil
}
