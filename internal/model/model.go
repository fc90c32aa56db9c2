package model

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInsufficientSamples marks a metric that had fewer than two qualifying values.
var ErrInsufficientSamples = errors.New("insufficient samples")

// RawRecord is one row as delivered by a trace source, before normalization.
// Columns maps a column name to its textual value; a missing key means the
// source did not carry that column for this row.
type RawRecord struct {
	Row       int
	Columns   map[string]string
	Malformed bool
	Err       error
}

// PacketRecord holds the metadata of a single observed packet.
// It is never modified after normalization.
type PacketRecord struct {
	Application string
	Row         int // position in the source, used as a stable tiebreak
	Timestamp   Field[float64]
	Size        Field[int64]
	SourceAddr  Field[string]
	DestAddr    Field[string]
	SourcePort  Field[string]
	DestPort    Field[string]
	Protocol    Field[string]
	TTL         Field[int64]
	TCPFlags    Field[uint16]
	WindowSize  Field[int64]
}

// Measurable reports whether the record can take part in time and size based analysis.
func (r PacketRecord) Measurable() bool {
	return r.Timestamp.Present && r.Size.Present
}

// FlowKey is the 128-bit fingerprint of a directional 4-tuple.
type FlowKey [16]byte

// String renders the key as lowercase hex.
func (k FlowKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler so keys serialise as hex.
func (k FlowKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (k *FlowKey) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(k) {
		return fmt.Errorf("flow key must be %d hex characters, got %d", 2*len(k), len(text))
	}
	_, err := hex.Decode(k[:], text)
	return err
}

// KeyedRecord attaches the derived flow key to a record without touching it.
type KeyedRecord struct {
	PacketRecord
	FlowKey Field[FlowKey]
}

// IngestStats counts what happened to the rows of one source.
type IngestStats struct {
	Read          int `json:"read"`
	Normalized    int `json:"normalized"`
	Malformed     int `json:"malformed"`
	InvalidValues int `json:"invalid_values"`
}

// Add accumulates other into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Read += other.Read
	s.Normalized += other.Normalized
	s.Malformed += other.Malformed
	s.InvalidValues += other.InvalidValues
}

// ApplicationDataset is the ordered record sequence of one application label.
type ApplicationDataset struct {
	Label   string
	Records []PacketRecord
	Stats   IngestStats
}

// Dataset is the unified normalized input of an analysis run.
// Applications keep the order in which they were configured.
type Dataset struct {
	Applications []ApplicationDataset
}

// Labels returns the application labels in dataset order.
func (d *Dataset) Labels() []string {
	labels := make([]string, len(d.Applications))
	for i, app := range d.Applications {
		labels[i] = app.Label
	}
	return labels
}

// FlowGroup is the set of packets sharing one (application, flow key) pair.
type FlowGroup struct {
	Application string  `json:"application"`
	Key         FlowKey `json:"key"`
	Packets     int     `json:"packets"`
	Bytes       int64   `json:"bytes"`
	FirstSeen   float64 `json:"first_seen"`
	LastSeen    float64 `json:"last_seen"`
	firstRow    int
}

// FirstRow returns the input position of the first packet of the group.
func (g *FlowGroup) FirstRow() int {
	return g.firstRow
}

// NewFlowGroup starts a group from its first packet.
func NewFlowGroup(app string, key FlowKey, rec PacketRecord) *FlowGroup {
	ts := rec.Timestamp.OrElse(0)
	return &FlowGroup{
		Application: app,
		Key:         key,
		Packets:     1,
		Bytes:       rec.Size.OrElse(0),
		FirstSeen:   ts,
		LastSeen:    ts,
		firstRow:    rec.Row,
	}
}

// Add accounts one more packet to the group.
func (g *FlowGroup) Add(rec PacketRecord) {
	g.Packets++
	g.Bytes += rec.Size.OrElse(0)
	if rec.Row < g.firstRow {
		g.firstRow = rec.Row
	}
	if ts, ok := rec.Timestamp.Get(); ok {
		if ts < g.FirstSeen {
			g.FirstSeen = ts
		}
		if ts > g.LastSeen {
			g.LastSeen = ts
		}
	}
}
