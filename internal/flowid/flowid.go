// Package flowid derives directional flow keys from the 4-tuple of a packet.
//
// The key is directional: A:p1 -> B:p2 and B:p2 -> A:p1 are different flows.
// Reply traffic of one connection therefore lands in its own flow unless the
// caller normalizes direction before identification.
package flowid

import (
	"crypto/md5"

	"Go2NetProfile/internal/model"
)

// separator joins the tuple fields before hashing. Ports are hashed as they
// appear in the source, so ids only match digests of "src-dst-sport-dport"
// strings that spell the ports the same way ("443", not "443.0").
const separator = "-"

// Fingerprint hashes the directional 4-tuple into a FlowKey.
func Fingerprint(srcAddr, dstAddr, srcPort, dstPort string) model.FlowKey {
	buf := make([]byte, 0, len(srcAddr)+len(dstAddr)+len(srcPort)+len(dstPort)+3*len(separator))
	buf = append(buf, srcAddr...)
	buf = append(buf, separator...)
	buf = append(buf, dstAddr...)
	buf = append(buf, separator...)
	buf = append(buf, srcPort...)
	buf = append(buf, separator...)
	buf = append(buf, dstPort...)
	return model.FlowKey(md5.Sum(buf))
}

// Key returns the flow key of a record, absent if any tuple field is absent.
func Key(rec model.PacketRecord) model.Field[model.FlowKey] {
	src, ok1 := rec.SourceAddr.Get()
	dst, ok2 := rec.DestAddr.Get()
	sport, ok3 := rec.SourcePort.Get()
	dport, ok4 := rec.DestPort.Get()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return model.None[model.FlowKey]()
	}
	return model.Some(Fingerprint(src, dst, sport, dport))
}

// Annotate attaches flow keys to records. The input slice is not modified.
func Annotate(records []model.PacketRecord) []model.KeyedRecord {
	keyed := make([]model.KeyedRecord, len(records))
	for i, rec := range records {
		keyed[i] = model.KeyedRecord{PacketRecord: rec, FlowKey: Key(rec)}
	}
	return keyed
}

// Count returns how many records carry a flow key.
func Count(keyed []model.KeyedRecord) int {
	n := 0
	for _, r := range keyed {
		if r.FlowKey.Present {
			n++
		}
	}
	return n
}
