package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func buildPacket(t *testing.T, ts time.Time, transport gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()
	return buildPacketWithPayload(t, ts, transport, []byte("payload"))
}

func buildPacketWithPayload(t *testing.T, ts time.Time, transport gopacket.SerializableLayer, payload []byte) gopacket.Packet {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		TTL:     64,
		SrcIP:   net.IP{10, 0, 0, 1},
		DstIP:   net.IP{10, 0, 0, 2},
	}
	toSerialize := []gopacket.SerializableLayer{eth, ip}
	switch l := transport.(type) {
	case *layers.TCP:
		ip.Protocol = layers.IPProtocolTCP
		l.SetNetworkLayerForChecksum(ip)
		toSerialize = append(toSerialize, l)
	case *layers.UDP:
		ip.Protocol = layers.IPProtocolUDP
		l.SetNetworkLayerForChecksum(ip)
		toSerialize = append(toSerialize, l)
	case *layers.ICMPv4:
		ip.Protocol = layers.IPProtocolICMPv4
		toSerialize = append(toSerialize, l)
	}
	toSerialize = append(toSerialize, gopacket.Payload(payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, toSerialize...); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}
	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	packet.Metadata().Length = len(buf.Bytes())
	packet.Metadata().CaptureLength = len(buf.Bytes())
	return packet
}

func TestExtractColumns_TCP(t *testing.T) {
	base := time.Unix(1700000000, 0)
	packet := buildPacket(t, base.Add(1500*time.Millisecond), &layers.TCP{SrcPort: 51000, DstPort: 443})

	cols, err := ExtractColumns(packet, base)
	if err != nil {
		t.Fatalf("ExtractColumns failed: %v", err)
	}
	want := map[string]string{
		ColumnTime:       "1.5",
		ColumnSourceAddr: "10.0.0.1",
		ColumnDestAddr:   "10.0.0.2",
		ColumnSourcePort: "51000",
		ColumnDestPort:   "443",
		ColumnProtocol:   "TCP",
	}
	for k, v := range want {
		if cols[k] != v {
			t.Errorf("column %q: expected %q, got %q", k, v, cols[k])
		}
	}
	if cols[ColumnLength] != "61" {
		t.Errorf("expected wire length 61, got %q", cols[ColumnLength])
	}
}

func TestExtractColumns_UDP(t *testing.T) {
	base := time.Unix(1700000000, 0)
	packet := buildPacket(t, base, &layers.UDP{SrcPort: 40000, DstPort: 9000})

	cols, err := ExtractColumns(packet, base)
	if err != nil {
		t.Fatalf("ExtractColumns failed: %v", err)
	}
	if cols[ColumnTime] != "0" || cols[ColumnSourcePort] != "40000" || cols[ColumnDestPort] != "9000" {
		t.Errorf("unexpected columns %v", cols)
	}
	if cols[ColumnProtocol] != "UDP" {
		t.Errorf("expected protocol UDP, got %q", cols[ColumnProtocol])
	}
}

func TestExtractColumns_NoTransportPorts(t *testing.T) {
	base := time.Unix(1700000000, 0)
	packet := buildPacket(t, base, &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)})

	cols, err := ExtractColumns(packet, base)
	if err != nil {
		t.Fatalf("ExtractColumns failed: %v", err)
	}
	if _, ok := cols[ColumnSourcePort]; ok {
		t.Error("ICMP packet should not carry a source port")
	}
	if _, ok := cols[ColumnDestPort]; ok {
		t.Error("ICMP packet should not carry a destination port")
	}
	if cols[ColumnSourceAddr] != "10.0.0.1" {
		t.Errorf("expected source address, got %q", cols[ColumnSourceAddr])
	}
	if cols[ColumnProtocol] != "ICMPv4" {
		t.Errorf("expected protocol ICMPv4, got %q", cols[ColumnProtocol])
	}
}

func TestExtractColumns_TransportFields(t *testing.T) {
	base := time.Unix(1700000000, 0)
	tcp := &layers.TCP{SrcPort: 51000, DstPort: 8080, SYN: true, ACK: true, Window: 29200}
	packet := buildPacket(t, base, tcp)

	cols, err := ExtractColumns(packet, base)
	if err != nil {
		t.Fatalf("ExtractColumns failed: %v", err)
	}
	want := map[string]string{
		ColumnTTL:        "64",
		ColumnTCPFlags:   "0x012",
		ColumnWindowSize: "29200",
	}
	for k, v := range want {
		if cols[k] != v {
			t.Errorf("column %q: expected %q, got %q", k, v, cols[k])
		}
	}

	udp := buildPacket(t, base, &layers.UDP{SrcPort: 40000, DstPort: 9000})
	cols, _ = ExtractColumns(udp, base)
	if _, ok := cols[ColumnTCPFlags]; ok {
		t.Error("UDP packet should not carry TCP flags")
	}
	if cols[ColumnTTL] != "64" {
		t.Errorf("expected TTL 64 for UDP, got %q", cols[ColumnTTL])
	}
}

func TestFlags(t *testing.T) {
	cases := []struct {
		tcp  layers.TCP
		want uint16
	}{
		{layers.TCP{SYN: true}, 0x02},
		{layers.TCP{ACK: true}, 0x10},
		{layers.TCP{PSH: true, ACK: true}, 0x18},
		{layers.TCP{FIN: true, PSH: true, ACK: true}, 0x19},
		{layers.TCP{RST: true}, 0x04},
	}
	for _, c := range cases {
		if got := Flags(&c.tcp); got != c.want {
			t.Errorf("expected %#x, got %#x", c.want, got)
		}
	}
}

func TestName_TLSVersion(t *testing.T) {
	base := time.Unix(1700000000, 0)
	// one application data record, TLS 1.2 record version
	record := []byte{0x17, 0x03, 0x03, 0x00, 0x04, 0xde, 0xad, 0xbe, 0xef}
	packet := buildPacketWithPayload(t, base, &layers.TCP{SrcPort: 51000, DstPort: 443, PSH: true, ACK: true}, record)

	if got := Name(packet); got != "TLSv1.2" {
		t.Errorf("expected TLSv1.2, got %q", got)
	}
}
