package aggregate

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"Go2NetProfile/internal/flowid"
	"Go2NetProfile/internal/model"
)

// benchRecords builds n keyed records spread over the given number of flows.
func benchRecords(n, flows int) []model.KeyedRecord {
	rng := rand.New(rand.NewSource(1))
	recs := make([]model.PacketRecord, n)
	for i := range recs {
		f := rng.Intn(flows)
		recs[i] = model.PacketRecord{
			Application: "bench",
			Row:         i,
			Timestamp:   model.Some(float64(i) * 0.001),
			Size:        model.Some(int64(60 + rng.Intn(1400))),
			SourceAddr:  model.Some(fmt.Sprintf("10.0.%d.%d", f/250, f%250)),
			DestAddr:    model.Some("192.168.1.10"),
			SourcePort:  model.Some(fmt.Sprint(1024 + f)),
			DestPort:    model.Some("443"),
		}
	}
	return flowid.Annotate(recs)
}

func BenchmarkFlowTable(b *testing.B) {
	keyed := benchRecords(100000, 5000)

	b.Run("Insert_Serial", func(b *testing.B) {
		table := NewFlowTable("bench", 64)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			table.Add(keyed[i%len(keyed)])
		}
	})

	b.Run("Insert_Parallel", func(b *testing.B) {
		table := NewFlowTable("bench", 64)
		var next atomic.Int64
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				i := next.Add(1)
				table.Add(keyed[int(i)%len(keyed)])
			}
		})
	})

	b.Run("Groups", func(b *testing.B) {
		table := NewFlowTable("bench", 64)
		for _, rec := range keyed {
			table.Add(rec)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			table.Groups()
		}
	})
}

func BenchmarkDescribe(b *testing.B) {
	keyed := benchRecords(100000, 5000)
	sample := SizeSample(keyed)
	e := testEngine()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Describe(sample)
	}
}
