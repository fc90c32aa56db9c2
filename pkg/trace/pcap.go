package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"Go2NetProfile/internal/engine/protocol"
	"Go2NetProfile/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng files start with a Section Header Block.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetDataReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// PcapReader reads packets from a pcap or pcapng capture.
type PcapReader struct {
	src    io.ReadCloser
	handle packetDataReader
}

// NewPcapReader detects the capture format of src and prepares to read it.
// The reader takes ownership of src.
func NewPcapReader(src io.ReadCloser) (*PcapReader, error) {
	br := bufio.NewReader(src)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var handle packetDataReader
	if bytes.Equal(magic, pcapngMagic) {
		handle, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		handle, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return &PcapReader{src: src, handle: handle}, nil
}

// ReadAll decodes every packet into the CSV export column set. Packets that
// cannot be decoded are returned as malformed records.
func (r *PcapReader) ReadAll() ([]model.RawRecord, error) {
	var (
		records []model.RawRecord
		base    time.Time
	)
	for row := 0; ; row++ {
		data, ci, err := r.handle.ReadPacketData()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to read packet %d: %w", row, err)
		}
		if row == 0 {
			base = ci.Timestamp
		}

		packet := gopacket.NewPacket(data, r.handle.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		md := packet.Metadata()
		md.CaptureInfo = ci

		cols, err := protocol.ExtractColumns(packet, base)
		if err != nil {
			records = append(records, model.RawRecord{Row: row, Malformed: true, Err: err})
			continue
		}
		records = append(records, model.RawRecord{Row: row, Columns: cols})
	}
}

// Close closes the underlying source.
func (r *PcapReader) Close() error {
	return r.src.Close()
}
