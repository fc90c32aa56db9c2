package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/logging"
)

func main() {
	profileName := flag.String("profile", "chrome", "Traffic profile: "+strings.Join(profileNames(), ", "))
	outputFile := flag.String("o", "", "Output file path (defaults to <profile>.<format>)")
	format := flag.String("format", "", "Output format: pcap or csv (inferred from -o when empty)")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	log := logging.NewLogger("INFO", "text")

	if *format == "" {
		*format = "pcap"
		if *outputFile != "" {
			*format = config.InferFormat(*outputFile)
		}
	}
	if *outputFile == "" {
		*outputFile = *profileName + "." + *format
	}
	if err := os.MkdirAll(filepath.Dir(*outputFile), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	packets, err := generateTrace(*profileName, *packetCount, *seed)
	if err != nil {
		log.Fatalf("Failed to generate trace: %v", err)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	log.Infof("Writing %d %s packets into %s...", len(packets), *profileName, *outputFile)

	switch *format {
	case "pcap":
		err = writePcap(f, packets)
	case "csv":
		err = writeCSV(f, packets)
	default:
		log.Fatalf("Unsupported format '%s'", *format)
	}
	if err != nil {
		log.Fatalf("Failed to write trace: %v", err)
	}
	log.Infof("Successfully generated %d packets into %s.", len(packets), *outputFile)
}
