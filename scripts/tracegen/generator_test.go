package main

import (
	"bytes"
	"io"
	"strconv"
	"testing"

	"Go2NetProfile/pkg/trace"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := newGenerator(profiles["zoom"], 7).generate(50)
	b := newGenerator(profiles["zoom"], 7).generate(50)
	if len(a) != 50 {
		t.Fatalf("expected 50 packets, got %d", len(a))
	}
	for i := range a {
		if a[i].Time != b[i].Time || a[i].Payload != b[i].Payload || !a[i].SrcIP.Equal(b[i].SrcIP) {
			t.Fatalf("packet %d differs between runs with the same seed", i)
		}
		if i > 0 && a[i].Time < a[i-1].Time {
			t.Fatalf("timestamps must not decrease, packet %d", i)
		}
	}
}

func TestWritePcap_ReadsBack(t *testing.T) {
	packets := newGenerator(profiles["spotify"], 3).generate(20)
	var buf bytes.Buffer
	if err := writePcap(&buf, packets); err != nil {
		t.Fatalf("writePcap failed: %v", err)
	}

	r, err := trace.NewPcapReader(io.NopCloser(&buf))
	if err != nil {
		t.Fatalf("NewPcapReader failed: %v", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 20 {
		t.Fatalf("expected 20 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Malformed || rec.Columns["Protocol"] != "TCP" {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
}

func TestWriteCSV_ReadsBack(t *testing.T) {
	packets := newGenerator(profiles["teams"], 5).generate(10)
	var buf bytes.Buffer
	if err := writeCSV(&buf, packets); err != nil {
		t.Fatalf("writeCSV failed: %v", err)
	}

	records, err := trace.NewCSVReader(io.NopCloser(&buf)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	if records[0].Columns["Protocol"] != "UDP" || records[0].Malformed {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[0].Columns["TCP Flags"] != "" || records[0].Columns["Time to Live"] == "" {
		t.Errorf("unexpected transport columns %+v", records[0].Columns)
	}
}

func TestGenerateTrace_Blend(t *testing.T) {
	packets, err := generateTrace("chrome_spotify_attacker", 101, 9)
	if err != nil {
		t.Fatalf("generateTrace failed: %v", err)
	}
	if len(packets) != 101 {
		t.Fatalf("expected 101 packets, got %d", len(packets))
	}

	client := packets[0].DstIP
	if packets[0].SrcPort != 443 && packets[0].SrcPort != 4070 {
		client = packets[0].SrcIP
	}
	ports := make(map[uint16]int)
	for i, pkt := range packets {
		if i > 0 && pkt.Time < packets[i-1].Time {
			t.Fatalf("timestamps must not decrease, packet %d", i)
		}
		if !pkt.SrcIP.Equal(client) && !pkt.DstIP.Equal(client) {
			t.Fatalf("packet %d does not involve the shared client %s", i, client)
		}
		if pkt.SrcIP.Equal(client) {
			ports[pkt.DstPort]++
		} else {
			ports[pkt.SrcPort]++
		}
	}
	if ports[443] != 51 || ports[4070] != 50 {
		t.Errorf("expected 51 chrome and 50 spotify packets, got %v", ports)
	}
}

func TestGenerateTrace_UnknownProfile(t *testing.T) {
	if _, err := generateTrace("gopher", 10, 1); err == nil {
		t.Error("expected an error for an unknown profile")
	}
}

func TestWritePcap_TLSRecords(t *testing.T) {
	packets := newGenerator(profiles["netflix"], 4).generate(20)
	var buf bytes.Buffer
	if err := writePcap(&buf, packets); err != nil {
		t.Fatalf("writePcap failed: %v", err)
	}

	r, err := trace.NewPcapReader(io.NopCloser(&buf))
	if err != nil {
		t.Fatalf("NewPcapReader failed: %v", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	for i, rec := range records {
		want := packets[i].protocolName()
		if rec.Columns["Protocol"] != want {
			t.Errorf("record %d: expected protocol %s, got %s", i, want, rec.Columns["Protocol"])
		}
		if rec.Columns["Time to Live"] != strconv.Itoa(int(packets[i].TTL)) {
			t.Errorf("record %d: unexpected TTL %s", i, rec.Columns["Time to Live"])
		}
	}
}
