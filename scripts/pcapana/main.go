package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"Go2NetProfile/internal/engine/protocol"
	"Go2NetProfile/internal/flowid"
	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/normalize"
	"Go2NetProfile/pkg/trace"
)

func main() {
	limit := flag.Int("n", 5, "Number of packets to print")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := trace.Open(flag.Arg(0), trace.FormatPcap)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	raws, err := reader.ReadAll()
	if err != nil {
		log.Printf("Read stopped early: %v", err)
	}

	columns := normalize.Columns{
		Time:       protocol.ColumnTime,
		Length:     protocol.ColumnLength,
		SourceAddr: protocol.ColumnSourceAddr,
		DestAddr:   protocol.ColumnDestAddr,
		SourcePort: protocol.ColumnSourcePort,
		DestPort:   protocol.ColumnDestPort,
		Protocol:   protocol.ColumnProtocol,
		TTL:        protocol.ColumnTTL,
		TCPFlags:   protocol.ColumnTCPFlags,
		WindowSize: protocol.ColumnWindowSize,
	}
	n := normalize.New(columns, "Unknown", logging.Discard())

	shown := 0
	for _, raw := range raws {
		if shown >= *limit {
			break
		}
		if raw.Malformed {
			fmt.Printf("#%d malformed: %v\n", raw.Row, raw.Err)
			shown++
			continue
		}
		rec, _, _ := n.NormalizeRecord(flag.Arg(0), raw)
		key := "-"
		if k, ok := flowid.Key(rec).Get(); ok {
			key = k.String()
		}
		fmt.Printf("#%d t=%.6f %s:%s -> %s:%s proto=%s len=%d flow=%s\n",
			raw.Row,
			rec.Timestamp.OrElse(0),
			rec.SourceAddr.OrElse("?"), rec.SourcePort.OrElse("?"),
			rec.DestAddr.OrElse("?"), rec.DestPort.OrElse("?"),
			rec.Protocol.OrElse("?"), rec.Size.OrElse(0), key,
		)
		shown++
	}
	fmt.Printf("%d packets in capture\n", len(raws))
}
