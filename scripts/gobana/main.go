package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"Go2NetProfile/internal/model"
	"Go2NetProfile/internal/output"
)

func main() {
	metric := flag.String("metric", "", "Only print this metric (packet_size, inter_arrival, flow_size, ttl)")
	head := flag.Int("n", 5, "Number of sample values to print per application")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/gobana [-metric m] [-n 5] <series.dat>")
		os.Exit(1)
	}

	snap, err := output.ReadSeries(flag.Arg(0))
	if err != nil {
		log.Fatalf("Unable to read snapshot: %v", err)
	}

	fmt.Printf("Run %s, scenario %s, %d applications\n", snap.RunID, snap.Scenario, len(snap.Applications))

	metrics := make([]string, 0, len(snap.Samples))
	for m := range snap.Samples {
		if *metric == "" || string(m) == *metric {
			metrics = append(metrics, string(m))
		}
	}
	sort.Strings(metrics)

	for _, name := range metrics {
		m := model.Metric(name)
		fmt.Printf("== %s ==\n", name)
		if bound, ok := snap.ClipBounds[m].Get(); ok {
			fmt.Printf("  clip bound: %.4f\n", bound)
		}
		for _, app := range snap.Applications {
			sample := snap.Samples[m][app]
			shown := sample
			if len(shown) > *head {
				shown = shown[:*head]
			}
			density := snap.Densities[m][app]
			fmt.Printf("  %-12s n=%-8d density=%-5v head=%v\n", app, len(sample), density.Available, shown)
		}
	}

	if len(snap.SizeSeries) > 0 {
		fmt.Println("== size series ==")
		for _, app := range snap.Applications {
			fmt.Printf("  %-12s points=%d\n", app, len(snap.SizeSeries[app]))
		}
	}
}
