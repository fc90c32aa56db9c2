// Package aggregate computes per-application distributions over keyed packet
// records: packet sizes, inter-arrival times, packets per flow and the
// transport header mix.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"Go2NetProfile/internal/engine/statistic"
	"Go2NetProfile/internal/model"
)

// Options tunes how samples are summarised.
type Options struct {
	Quantiles      []float64
	ClipPercentile float64
	DensityPoints  int
	NumShards      uint32
}

// Engine turns per-application samples into summaries and densities.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// SizeSample returns the sizes of all records that have one, in input order.
func SizeSample(records []model.KeyedRecord) []float64 {
	sample := make([]float64, 0, len(records))
	for _, r := range records {
		if size, ok := r.Size.Get(); ok {
			sample = append(sample, float64(size))
		}
	}
	return sample
}

// TemporalOrder returns the records with a timestamp, sorted by timestamp.
// Ties keep input order.
func TemporalOrder(records []model.KeyedRecord) []model.KeyedRecord {
	timed := make([]model.KeyedRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp.Present {
			timed = append(timed, r)
		}
	}
	slices.SortStableFunc(timed, func(a, b model.KeyedRecord) int {
		if c := cmp.Compare(a.Timestamp.Value, b.Timestamp.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})
	return timed
}

// InterArrivals returns consecutive timestamp differences of one application's
// records in temporal order. The first record has no predecessor and yields no
// value, so the result is one shorter than the number of timed records.
// Callers must pass the records of a single application.
func InterArrivals(records []model.KeyedRecord) []float64 {
	timed := TemporalOrder(records)
	if len(timed) < 2 {
		return nil
	}
	deltas := make([]float64, len(timed)-1)
	for i := 1; i < len(timed); i++ {
		deltas[i-1] = timed[i].Timestamp.Value - timed[i-1].Timestamp.Value
	}
	return deltas
}

// FlowGroups groups the keyed records of one application by flow key.
// Records without a key are left out.
func (e *Engine) FlowGroups(application string, records []model.KeyedRecord) []*model.FlowGroup {
	table := NewFlowTable(application, e.opts.NumShards)
	for _, r := range records {
		table.Add(r)
	}
	return table.Groups()
}

// FlowSizes returns the packet count of every group, in group order.
func FlowSizes(groups []*model.FlowGroup) []float64 {
	sizes := make([]float64, len(groups))
	for i, g := range groups {
		sizes[i] = float64(g.Packets)
	}
	return sizes
}

// SizeSeries returns (timestamp, size) points in temporal order for records
// that carry both.
func SizeSeries(records []model.KeyedRecord) []model.SeriesPoint {
	timed := TemporalOrder(records)
	points := make([]model.SeriesPoint, 0, len(timed))
	for _, r := range timed {
		if size, ok := r.Size.Get(); ok {
			points = append(points, model.SeriesPoint{Time: r.Timestamp.Value, Size: size})
		}
	}
	return points
}

// ProtocolMix counts records per protocol name. Records without a protocol
// are counted under "unknown".
func ProtocolMix(records []model.KeyedRecord) map[string]int {
	mix := make(map[string]int)
	for _, r := range records {
		mix[r.Protocol.OrElse("unknown")]++
	}
	return mix
}

// TTLSample returns the TTL of all records that have one, in input order.
func TTLSample(records []model.KeyedRecord) []float64 {
	sample := make([]float64, 0, len(records))
	for _, r := range records {
		if ttl, ok := r.TTL.Get(); ok {
			sample = append(sample, float64(ttl))
		}
	}
	return sample
}

var flagNames = map[uint16]string{
	0x002: "SYN",
	0x010: "ACK",
	0x012: "SYN-ACK",
	0x018: "PSH-ACK",
	0x011: "FIN-ACK",
	0x004: "RST",
	0x019: "FIN-PSH-ACK",
}

// FlagName returns the conventional name of a TCP flag combination, or its
// hex value when the combination has no name.
func FlagName(flags uint16) string {
	if name, ok := flagNames[flags]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", flags)
}

// TCPFlagMix counts records per TCP flag combination. Records without flags
// are left out.
func TCPFlagMix(records []model.KeyedRecord) map[string]int {
	mix := make(map[string]int)
	for _, r := range records {
		if flags, ok := r.TCPFlags.Get(); ok {
			mix[FlagName(flags)]++
		}
	}
	return mix
}

// TLSVersions counts records whose protocol names a TLS version.
func TLSVersions(records []model.KeyedRecord) map[string]int {
	versions := make(map[string]int)
	for _, r := range records {
		if proto, ok := r.Protocol.Get(); ok && strings.HasPrefix(proto, "TLSv") {
			versions[proto]++
		}
	}
	return versions
}

// MeanWindow averages the TCP window size over the records that carry one.
func MeanWindow(records []model.KeyedRecord) model.Field[float64] {
	var sum float64
	var n int
	for _, r := range records {
		if w, ok := r.WindowSize.Get(); ok {
			sum += float64(w)
			n++
		}
	}
	if n == 0 {
		return model.None[float64]()
	}
	return model.Some(sum / float64(n))
}

// Totals returns packet and byte volume. Flows is left to the caller.
func Totals(records []model.KeyedRecord) model.ApplicationTotals {
	var t model.ApplicationTotals
	for _, r := range records {
		t.Packets++
		t.Bytes += r.Size.OrElse(0)
	}
	return t
}

// Describe summarises one application's sample for a metric.
func (e *Engine) Describe(sample []float64) *model.ApplicationMetric {
	if sample == nil {
		sample = []float64{}
	}
	return &model.ApplicationMetric{
		Summary: statistic.Summarize(sample, e.opts.Quantiles),
		Density: statistic.Density(sample, e.opts.DensityPoints),
		Sample:  sample,
	}
}

// Combine assembles per-application results for one metric and computes the
// display clip bound over the pooled sample of all applications.
func (e *Engine) Combine(metric model.Metric, labels []string, perApp []*model.ApplicationMetric) *model.MetricResult {
	result := &model.MetricResult{
		Metric:         metric,
		PerApplication: make(map[string]*model.ApplicationMetric, len(labels)),
	}
	samples := make([][]float64, 0, len(labels))
	for i, label := range labels {
		result.PerApplication[label] = perApp[i]
		samples = append(samples, perApp[i].Sample)
	}
	result.ClipBound = statistic.PooledPercentile(samples, e.opts.ClipPercentile)
	return result
}
