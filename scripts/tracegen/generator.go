package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"time"

	"Go2NetProfile/internal/engine/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// profile describes the shape of one application's traffic.
type profile struct {
	Transport   layers.IPProtocol
	ServerPort  uint16
	Flows       int     // concurrent flows
	MeanSize    float64 // payload bytes
	StdSize     float64
	MeanGap     float64 // seconds between packets of the trace
	UpstreamPct float64 // share of packets sent by the client
	ServerTTL   uint8   // TTL of packets arriving from the server
}

var profiles = map[string]profile{
	"chrome":  {Transport: layers.IPProtocolTCP, ServerPort: 443, Flows: 24, MeanSize: 900, StdSize: 500, MeanGap: 0.004, UpstreamPct: 0.3, ServerTTL: 116},
	"spotify": {Transport: layers.IPProtocolTCP, ServerPort: 4070, Flows: 3, MeanSize: 1300, StdSize: 200, MeanGap: 0.010, UpstreamPct: 0.1, ServerTTL: 56},
	"netflix": {Transport: layers.IPProtocolTCP, ServerPort: 443, Flows: 6, MeanSize: 1400, StdSize: 80, MeanGap: 0.001, UpstreamPct: 0.05, ServerTTL: 58},
	"zoom":    {Transport: layers.IPProtocolUDP, ServerPort: 8801, Flows: 4, MeanSize: 700, StdSize: 300, MeanGap: 0.002, UpstreamPct: 0.5, ServerTTL: 52},
	"teams":   {Transport: layers.IPProtocolUDP, ServerPort: 3478, Flows: 4, MeanSize: 600, StdSize: 350, MeanGap: 0.003, UpstreamPct: 0.5, ServerTTL: 110},
}

// blends mix two profiles into one trace, as captured on a host running both
// applications at the same time.
var blends = map[string][2]string{
	"chrome_spotify_attacker": {"chrome", "spotify"},
}

const clientTTL = 64

func profileNames() []string {
	names := make([]string, 0, len(profiles)+len(blends))
	for name := range profiles {
		names = append(names, name)
	}
	for name := range blends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// generateTrace produces n packets for a profile or a blend of two profiles.
// Blended traffic shares one client address and is ordered by time.
func generateTrace(name string, n int, seed int64) ([]packet, error) {
	if p, ok := profiles[name]; ok {
		return newGenerator(p, seed).generate(n), nil
	}
	parts, ok := blends[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile '%s'", name)
	}

	first := newGenerator(profiles[parts[0]], seed)
	packets := first.generate(n - n/2)
	second := newGenerator(profiles[parts[1]], seed+1)
	second.client = first.client
	packets = append(packets, second.generate(n/2)...)

	sort.SliceStable(packets, func(i, j int) bool { return packets[i].Time < packets[j].Time })
	return packets, nil
}

// packet is one generated observation.
type packet struct {
	Time      float64
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Transport layers.IPProtocol
	TTL       uint8
	Payload   int
}

type generator struct {
	p      profile
	rnd    *rand.Rand
	client net.IP
}

func newGenerator(p profile, seed int64) *generator {
	return &generator{p: p, rnd: rand.New(rand.NewSource(seed))}
}

// generate produces n packets spread over the profile's flows.
func (g *generator) generate(n int) []packet {
	if g.client == nil {
		g.client = net.IP{192, 168, 1, byte(2 + g.rnd.Intn(200))}
	}
	client := g.client
	type flow struct {
		server     net.IP
		clientPort uint16
	}
	flows := make([]flow, g.p.Flows)
	for i := range flows {
		flows[i] = flow{
			server:     net.IP{byte(13 + g.rnd.Intn(200)), byte(g.rnd.Intn(256)), byte(g.rnd.Intn(256)), byte(1 + g.rnd.Intn(254))},
			clientPort: uint16(49152 + g.rnd.Intn(16384)),
		}
	}

	packets := make([]packet, 0, n)
	now := 0.0
	for i := 0; i < n; i++ {
		now += g.rnd.ExpFloat64() * g.p.MeanGap
		f := flows[g.rnd.Intn(len(flows))]
		pkt := packet{
			Time:      now,
			Transport: g.p.Transport,
			Payload:   g.payloadSize(),
		}
		if g.rnd.Float64() < g.p.UpstreamPct {
			pkt.SrcIP, pkt.DstIP = client, f.server
			pkt.SrcPort, pkt.DstPort = f.clientPort, g.p.ServerPort
			pkt.TTL = clientTTL
		} else {
			pkt.SrcIP, pkt.DstIP = f.server, client
			pkt.SrcPort, pkt.DstPort = g.p.ServerPort, f.clientPort
			pkt.TTL = g.p.ServerTTL
		}
		packets = append(packets, pkt)
	}
	return packets
}

func (g *generator) payloadSize() int {
	size := g.rnd.NormFloat64()*g.p.StdSize + g.p.MeanSize
	return int(math.Max(0, math.Min(1460, size)))
}

// tls reports whether pkt carries a TLS record.
func (pkt packet) tls() bool {
	return pkt.Transport == layers.IPProtocolTCP && (pkt.SrcPort == 443 || pkt.DstPort == 443) && pkt.Payload >= 5
}

// payload returns the application bytes of pkt. HTTPS payloads are framed as
// one TLS 1.2 application data record.
func (pkt packet) payload() []byte {
	data := make([]byte, pkt.Payload)
	if pkt.tls() {
		data[0] = 0x17
		data[1], data[2] = 0x03, 0x03
		data[3], data[4] = byte((pkt.Payload-5)>>8), byte(pkt.Payload-5)
	}
	return data
}

func (pkt packet) protocolName() string {
	switch {
	case pkt.Transport == layers.IPProtocolUDP:
		return "UDP"
	case pkt.tls():
		return "TLSv1.2"
	}
	return "TCP"
}

func (pkt packet) tcp() *layers.TCP {
	return &layers.TCP{
		SrcPort: layers.TCPPort(pkt.SrcPort),
		DstPort: layers.TCPPort(pkt.DstPort),
		ACK:     true,
		PSH:     pkt.Payload > 0,
		Window:  14600,
	}
}

// serialize builds the Ethernet frame for pkt.
func serialize(pkt packet) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    pkt.SrcIP,
		DstIP:    pkt.DstIP,
		Version:  4,
		TTL:      pkt.TTL,
		Protocol: pkt.Transport,
	}

	var transport gopacket.SerializableLayer
	switch pkt.Transport {
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(pkt.SrcPort), DstPort: layers.UDPPort(pkt.DstPort)}
		udp.SetNetworkLayerForChecksum(ip)
		transport = udp
	default:
		tcp := pkt.tcp()
		tcp.SetNetworkLayerForChecksum(ip)
		transport = tcp
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(pkt.payload())); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}

func writePcap(w io.Writer, packets []packet) error {
	pcapWriter := pcapgo.NewWriter(w)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	start := time.Now().Truncate(time.Second)
	for _, pkt := range packets {
		frame, err := serialize(pkt)
		if err != nil {
			return err
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(pkt.Time * float64(time.Second))),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pcapWriter.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return nil
}

// writeCSV writes the packets the way a capture viewer exports its packet list.
func writeCSV(w io.Writer, packets []packet) error {
	cw := csv.NewWriter(w)
	header := []string{
		"No.", "Time", "Source IP", "Destination IP", "Protocol", "Length",
		"Source Port", "Destination Port", "Time to Live", "TCP Flags", "Calculated Window Size",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, pkt := range packets {
		frame, err := serialize(pkt)
		if err != nil {
			return err
		}
		flags, window := "", ""
		if pkt.Transport == layers.IPProtocolTCP {
			tcp := pkt.tcp()
			flags = fmt.Sprintf("0x%03x", protocol.Flags(tcp))
			window = strconv.Itoa(int(tcp.Window))
		}
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(pkt.Time, 'f', 6, 64),
			pkt.SrcIP.String(),
			pkt.DstIP.String(),
			pkt.protocolName(),
			strconv.Itoa(len(frame)),
			strconv.Itoa(int(pkt.SrcPort)),
			strconv.Itoa(int(pkt.DstPort)),
			strconv.Itoa(int(pkt.TTL)),
			flags,
			window,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
