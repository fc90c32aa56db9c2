// Package protocol decodes captured packets into the column set of a
// Wireshark CSV export, so pcap and CSV sources normalize the same way.
package protocol

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Column names produced by ExtractColumns.
const (
	ColumnTime       = "Time"
	ColumnLength     = "Length"
	ColumnSourceAddr = "Source IP"
	ColumnDestAddr   = "Destination IP"
	ColumnSourcePort = "Source Port"
	ColumnDestPort   = "Destination Port"
	ColumnProtocol   = "Protocol"
	ColumnTTL        = "Time to Live"
	ColumnTCPFlags   = "TCP Flags"
	ColumnWindowSize = "Calculated Window Size"
)

// ExtractColumns decodes key fields of a packet. Time is expressed in seconds
// relative to base. Columns the packet does not carry are left out of the map.
func ExtractColumns(packet gopacket.Packet, base time.Time) (map[string]string, error) {
	if packet.NetworkLayer() == nil && packet.LinkLayer() == nil {
		if errLayer := packet.ErrorLayer(); errLayer != nil {
			return nil, fmt.Errorf("undecodable packet: %w", errLayer.Error())
		}
		return nil, fmt.Errorf("undecodable packet: no link or network layer")
	}

	cols := make(map[string]string, 10)
	meta := packet.Metadata()
	if meta != nil && !meta.Timestamp.IsZero() {
		rel := meta.Timestamp.Sub(base).Seconds()
		cols[ColumnTime] = strconv.FormatFloat(rel, 'f', -1, 64)
	}
	length := len(packet.Data())
	if meta != nil && meta.Length > 0 {
		length = meta.Length
	}
	cols[ColumnLength] = strconv.Itoa(length)

	// Get IPv4 or IPv6 layer
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		cols[ColumnSourceAddr] = ip.SrcIP.String()
		cols[ColumnDestAddr] = ip.DstIP.String()
		cols[ColumnTTL] = strconv.Itoa(int(ip.TTL))
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		cols[ColumnSourceAddr] = ip.SrcIP.String()
		cols[ColumnDestAddr] = ip.DstIP.String()
		cols[ColumnTTL] = strconv.Itoa(int(ip.HopLimit))
	}

	// Get TCP or UDP layer
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		cols[ColumnSourcePort] = strconv.Itoa(int(tcp.SrcPort))
		cols[ColumnDestPort] = strconv.Itoa(int(tcp.DstPort))
		cols[ColumnTCPFlags] = fmt.Sprintf("0x%03x", Flags(tcp))
		// the scale factor is only known from the handshake; report the raw window
		cols[ColumnWindowSize] = strconv.Itoa(int(tcp.Window))
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		cols[ColumnSourcePort] = strconv.Itoa(int(udp.SrcPort))
		cols[ColumnDestPort] = strconv.Itoa(int(udp.DstPort))
	}

	if name := Name(packet); name != "" {
		cols[ColumnProtocol] = name
	}
	return cols, nil
}

// Flags packs the TCP flag bits the way a capture viewer displays them.
func Flags(tcp *layers.TCP) uint16 {
	var f uint16
	for _, b := range []struct {
		set bool
		bit uint16
	}{
		{tcp.FIN, 0x001}, {tcp.SYN, 0x002}, {tcp.RST, 0x004},
		{tcp.PSH, 0x008}, {tcp.ACK, 0x010}, {tcp.URG, 0x020},
		{tcp.ECE, 0x040}, {tcp.CWR, 0x080}, {tcp.NS, 0x100},
	} {
		if b.set {
			f |= b.bit
		}
	}
	return f
}

// Name returns the name of the innermost decoded layer, the way a capture
// viewer labels a packet ("TCP", "UDP", "DNS", "ARP", "TLSv1.2", ...).
func Name(packet gopacket.Packet) string {
	pls := packet.Layers()
	for i := len(pls) - 1; i >= 0; i-- {
		switch t := pls[i].LayerType(); t {
		case gopacket.LayerTypePayload, gopacket.LayerTypeDecodeFailure, gopacket.LayerTypeFragment:
			continue
		case layers.LayerTypeTLS:
			return tlsName(pls[i].(*layers.TLS))
		default:
			return t.String()
		}
	}
	return ""
}

// tlsName labels a TLS layer by the version of its first record.
func tlsName(tls *layers.TLS) string {
	var version layers.TLSVersion
	switch {
	case len(tls.Handshake) > 0:
		version = tls.Handshake[0].Version
	case len(tls.AppData) > 0:
		version = tls.AppData[0].Version
	case len(tls.ChangeCipherSpec) > 0:
		version = tls.ChangeCipherSpec[0].Version
	case len(tls.Alert) > 0:
		version = tls.Alert[0].Version
	}
	switch version {
	case 0x0300:
		return "SSLv3"
	case 0x0301:
		return "TLSv1"
	case 0x0302:
		return "TLSv1.1"
	case 0x0303:
		return "TLSv1.2"
	case 0x0304:
		return "TLSv1.3"
	}
	return "TLS"
}
