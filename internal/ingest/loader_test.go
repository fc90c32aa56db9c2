package ingest

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/scenario"
	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/model"
	"Go2NetProfile/pkg/trace"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const zoomCSV = `Time,Length,Source IP,Destination IP,Source Port,Destination Port,Protocol
0.0,120,10.0.0.1,10.0.0.2,5000,8801,UDP
0.1,abc,10.0.0.1,10.0.0.2,5000,8801,UDP
0.2,125,10.0.0.1,10.0.0.2
0.3,130,Unknown,10.0.0.2,5000,8801,UDP
0.4,140,10.0.0.1,10.0.0.2,5000,8801,UDP,extra
`

func writePcap(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("Failed to write pcap header: %v", err)
	}
	for i := 0; i < n; i++ {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IP{10, 1, 0, 1}, DstIP: net.IP{10, 1, 0, 2}}
		udp := &layers.UDP{SrcPort: 40000, DstPort: 3478}
		udp.SetNetworkLayerForChecksum(ip)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(make([]byte, 100))); err != nil {
			t.Fatalf("Failed to serialize packet: %v", err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, 0).Add(time.Duration(i) * 20 * time.Millisecond),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := w.WritePacket(ci, buf.Bytes()); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "zoom.csv")
	if err := os.WriteFile(csvPath, []byte(zoomCSV), 0o644); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}
	pcapPath := filepath.Join(dir, "teams.pcap")
	writePcap(t, pcapPath, 4)

	cfg := &config.Config{
		Applications: []config.ApplicationSource{
			{Label: "zoom", Path: csvPath},
			{Label: "teams", Path: pcapPath},
			{Label: "missing", Path: filepath.Join(dir, "missing.csv")},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestLoader_Load(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ds, err := NewLoader(cfg, logging.Discard(), m).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	labels := ds.Labels()
	if len(labels) != 3 || labels[0] != "zoom" || labels[1] != "teams" || labels[2] != "missing" {
		t.Fatalf("expected applications in config order, got %v", labels)
	}

	zoom := ds.Applications[0]
	if zoom.Stats.Read != 5 || zoom.Stats.Normalized != 4 || zoom.Stats.Malformed != 1 || zoom.Stats.InvalidValues != 1 {
		t.Errorf("unexpected zoom stats %+v", zoom.Stats)
	}
	if zoom.Records[1].Size.Present {
		t.Error("unparsable length should be absent")
	}
	if short := zoom.Records[2]; short.Size.OrElse(0) != 125 || short.SourcePort.Present || short.DestPort.Present {
		t.Errorf("short row should keep its size and miss its ports, got %+v", short)
	}
	if zoom.Records[3].SourceAddr.Present {
		t.Error("unknown source address should be absent")
	}

	teams := ds.Applications[1]
	if len(teams.Records) != 4 {
		t.Fatalf("expected 4 pcap records, got %d", len(teams.Records))
	}
	if ts := teams.Records[3].Timestamp.OrElse(-1); ts < 0.0599 || ts > 0.0601 {
		t.Errorf("expected relative timestamp 0.06, got %v", ts)
	}
	if size := teams.Records[0].Size.OrElse(0); size != 142 {
		t.Errorf("expected frame length 142, got %d", size)
	}
	if teams.Records[0].DestPort.OrElse("") != "3478" {
		t.Errorf("expected destination port 3478, got %+v", teams.Records[0].DestPort)
	}

	if missing := ds.Applications[2]; len(missing.Records) != 0 || missing.Stats.Read != 0 {
		t.Errorf("unreadable source should yield an empty application, got %+v", missing)
	}

	if got := testutil.ToFloat64(m.RecordsRead.WithLabelValues("zoom")); got != 5 {
		t.Errorf("expected 5 records read, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsDropped.WithLabelValues("zoom", "malformed")); got != 1 {
		t.Errorf("expected 1 malformed record, got %v", got)
	}
}

func TestLoader_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(cfg, logging.Discard(), nil).Load(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoader_ShortRowsFeedFlowAgnosticStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoom.csv")
	if err := os.WriteFile(path, []byte(zoomCSV), 0o644); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}
	cfg := &config.Config{Applications: []config.ApplicationSource{{Label: "zoom", Path: path}}}
	config.ApplyDefaults(cfg)

	ds, err := NewLoader(cfg, logging.Discard(), nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	report := scenario.NewOrchestrator(cfg.Analysis, logging.Discard(), nil).Run(ds)

	// rows at t=0.0, 0.2 (short) and 0.3 carry a time and a length
	agnostic := report.FlowAgnostic
	if got := agnostic.Metrics[model.MetricPacketSize].PerApplication["zoom"].Summary.Count; got != 3 {
		t.Errorf("expected 3 packet sizes including the short row, got %d", got)
	}
	if got := len(agnostic.Metrics[model.MetricInterArrival].PerApplication["zoom"].Sample); got != 2 {
		t.Errorf("expected 2 inter-arrival deltas, got %d", got)
	}
	// the short row has no ports, the unknown address row no key
	if got := report.FlowAware.Totals["zoom"].Packets; got != 1 {
		t.Errorf("expected 1 flow-keyed packet, got %d", got)
	}
}

type failingReader struct{}

func (failingReader) ReadAll() ([]model.RawRecord, error) {
	return []model.RawRecord{{Row: 0, Columns: map[string]string{"Time": "1", "Length": "10"}}}, errors.New("unexpected EOF")
}

func (failingReader) Close() error { return nil }

func TestLoader_KeepsRecordsBeforeReadError(t *testing.T) {
	cfg := &config.Config{Applications: []config.ApplicationSource{{Label: "a", Path: "a.csv"}}}
	config.ApplyDefaults(cfg)

	l := NewLoader(cfg, logging.Discard(), nil).WithOpener(func(path, format string) (trace.Reader, error) {
		return failingReader{}, nil
	})
	ds, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := len(ds.Applications[0].Records); got != 1 {
		t.Errorf("expected the record read before the error, got %d", got)
	}
}
