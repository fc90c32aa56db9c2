// Package normalize turns raw per-application rows into PacketRecords with a
// common schema.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/model"

	"github.com/sirupsen/logrus"
)

// Columns names the source columns that carry each record field.
type Columns struct {
	Time       string
	Length     string
	SourceAddr string
	DestAddr   string
	SourcePort string
	DestPort   string
	Protocol   string
	TTL        string
	TCPFlags   string
	WindowSize string
}

// ColumnsFromConfig converts the configured column names.
func ColumnsFromConfig(c config.ColumnConfig) Columns {
	return Columns{
		Time:       c.Time,
		Length:     c.Length,
		SourceAddr: c.SourceAddr,
		DestAddr:   c.DestAddr,
		SourcePort: c.SourcePort,
		DestPort:   c.DestPort,
		Protocol:   c.Protocol,
		TTL:        c.TTL,
		TCPFlags:   c.TCPFlags,
		WindowSize: c.WindowSize,
	}
}

// Normalizer maps raw rows onto PacketRecords.
type Normalizer struct {
	columns Columns
	unknown string
	log     logrus.FieldLogger
}

// New creates a Normalizer. Values equal to unknownMarker are treated as absent.
func New(columns Columns, unknownMarker string, log logrus.FieldLogger) *Normalizer {
	return &Normalizer{columns: columns, unknown: unknownMarker, log: log}
}

// Normalize converts all rows of one application, preserving their order.
// Structurally broken rows are skipped and counted; unparsable values only
// make the affected field absent.
func (n *Normalizer) Normalize(app string, raws []model.RawRecord) ([]model.PacketRecord, model.IngestStats) {
	stats := model.IngestStats{Read: len(raws)}
	records := make([]model.PacketRecord, 0, len(raws))

	for _, raw := range raws {
		rec, invalid, ok := n.NormalizeRecord(app, raw)
		if !ok {
			stats.Malformed++
			n.log.WithFields(logrus.Fields{"application": app, "row": raw.Row}).
				Debugf("Skipping malformed row: %v", raw.Err)
			continue
		}
		if invalid > 0 {
			stats.InvalidValues += invalid
			n.log.WithFields(logrus.Fields{"application": app, "row": raw.Row}).
				Debugf("Row has %d unparsable values", invalid)
		}
		records = append(records, rec)
	}

	stats.Normalized = len(records)
	return records, stats
}

// NormalizeRecord converts a single row. It reports the number of values that
// were present but could not be parsed, and false when the row is unusable.
func (n *Normalizer) NormalizeRecord(app string, raw model.RawRecord) (model.PacketRecord, int, bool) {
	if raw.Malformed || raw.Columns == nil {
		return model.PacketRecord{}, 0, false
	}

	invalid := 0
	rec := model.PacketRecord{
		Application: app,
		Row:         raw.Row,
		SourceAddr:  n.text(raw, n.columns.SourceAddr),
		DestAddr:    n.text(raw, n.columns.DestAddr),
		SourcePort:  n.text(raw, n.columns.SourcePort),
		DestPort:    n.text(raw, n.columns.DestPort),
		Protocol:    n.text(raw, n.columns.Protocol),
	}

	if v := n.text(raw, n.columns.Time); v.Present {
		ts, err := strconv.ParseFloat(v.Value, 64)
		if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
			invalid++
		} else {
			rec.Timestamp = model.Some(ts)
		}
	}

	if v := n.text(raw, n.columns.Length); v.Present {
		if size, ok := parseSize(v.Value); ok {
			rec.Size = model.Some(size)
		} else {
			invalid++
		}
	}

	if v := n.text(raw, n.columns.TTL); v.Present {
		if ttl, ok := parseSize(v.Value); ok && ttl <= math.MaxUint8 {
			rec.TTL = model.Some(ttl)
		} else {
			invalid++
		}
	}

	// flags are exported as hex ("0x018") or as a plain decimal number
	if v := n.text(raw, n.columns.TCPFlags); v.Present {
		digits, base := v.Value, 10
		if hex, ok := strings.CutPrefix(digits, "0x"); ok {
			digits, base = hex, 16
		}
		if flags, err := strconv.ParseUint(digits, base, 16); err == nil {
			rec.TCPFlags = model.Some(uint16(flags))
		} else {
			invalid++
		}
	}

	if v := n.text(raw, n.columns.WindowSize); v.Present {
		if win, ok := parseSize(v.Value); ok {
			rec.WindowSize = model.Some(win)
		} else {
			invalid++
		}
	}

	return rec, invalid, true
}

// text returns the trimmed column value, absent when missing, empty or unknown.
func (n *Normalizer) text(raw model.RawRecord, column string) model.Field[string] {
	if column == "" {
		return model.None[string]()
	}
	v, ok := raw.Columns[column]
	if !ok {
		return model.None[string]()
	}
	v = strings.TrimSpace(v)
	if v == "" || v == n.unknown {
		return model.None[string]()
	}
	return model.Some(v)
}

// parseSize accepts non-negative integers, including integral floats such as "60.0".
func parseSize(s string) (int64, bool) {
	if size, err := strconv.ParseInt(s, 10, 64); err == nil {
		return size, size >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
