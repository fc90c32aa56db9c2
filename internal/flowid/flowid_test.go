package flowid

import (
	"testing"

	"Go2NetProfile/internal/model"
)

func tuple(src, dst, sport, dport string) model.PacketRecord {
	field := func(v string) model.Field[string] {
		if v == "" {
			return model.None[string]()
		}
		return model.Some(v)
	}
	return model.PacketRecord{
		SourceAddr: field(src),
		DestAddr:   field(dst),
		SourcePort: field(sport),
		DestPort:   field(dport),
	}
}

func TestFingerprint_KnownDigest(t *testing.T) {
	// md5("A-B-80-443")
	got := Fingerprint("A", "B", "80", "443").String()
	if got != "7a049acedb6a06996905c63a99dc9374" {
		t.Fatalf("unexpected fingerprint %s", got)
	}
	if Fingerprint("A", "B", "80", "443") != Fingerprint("A", "B", "80", "443") {
		t.Error("fingerprint must be deterministic")
	}
}

func TestFingerprint_PortsHashedVerbatim(t *testing.T) {
	// md5("A-B-80.0-443.0")
	got := Fingerprint("A", "B", "80.0", "443.0")
	if got.String() != "0e2715682d66d7e77f1471ea5e7b9d97" {
		t.Fatalf("unexpected fingerprint %s", got)
	}
	if got == Fingerprint("A", "B", "80", "443") {
		t.Error("ports must not be reformatted before hashing")
	}
}

func TestFingerprint_Directional(t *testing.T) {
	forward := Fingerprint("10.0.0.1", "10.0.0.2", "51000", "443")
	reverse := Fingerprint("10.0.0.2", "10.0.0.1", "443", "51000")
	if forward == reverse {
		t.Error("reverse direction must produce a different flow key")
	}
}

func TestKey_DefinedOnlyWhenComplete(t *testing.T) {
	cases := []struct {
		name string
		rec  model.PacketRecord
		want bool
	}{
		{"complete", tuple("A", "B", "80", "443"), true},
		{"no source addr", tuple("", "B", "80", "443"), false},
		{"no dest addr", tuple("A", "", "80", "443"), false},
		{"no source port", tuple("A", "B", "", "443"), false},
		{"no dest port", tuple("A", "B", "80", ""), false},
		{"nothing", model.PacketRecord{}, false},
	}
	for _, tc := range cases {
		if got := Key(tc.rec).Present; got != tc.want {
			t.Errorf("%s: key present = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAnnotate_KeepsOriginals(t *testing.T) {
	records := []model.PacketRecord{
		tuple("A", "B", "80", "443"),
		tuple("A", "B", "80", ""),
		tuple("A", "B", "80", "443"),
	}
	records[0].Size = model.Some(int64(100))

	keyed := Annotate(records)
	if len(keyed) != 3 {
		t.Fatalf("expected 3 keyed records, got %d", len(keyed))
	}
	if keyed[0].FlowKey != keyed[2].FlowKey {
		t.Error("identical tuples must share a key")
	}
	if keyed[1].FlowKey.Present {
		t.Error("record without dest port must have no key")
	}
	if keyed[0].Size.Value != 100 {
		t.Error("annotation must carry the original fields")
	}
	if Count(keyed) != 2 {
		t.Errorf("Count = %d, want 2", Count(keyed))
	}
}
