package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/manager"
	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/output"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	printReport := flag.Bool("print", true, "Print the describe tables to stdout")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	log.WithField("applications", len(cfg.Applications)).Info("Configuration loaded successfully.")

	// 2. Initialize modules
	m, err := manager.NewManager(cfg, log, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		log.WithError(err).Fatal("Failed to create manager.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Run the analysis once; the manager is stopped on every exit path
	report, err := m.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Analysis failed.")
		m.Stop()
		os.Exit(1)
	}

	if *printReport {
		if err := output.Render(os.Stdout, report); err != nil {
			log.WithError(err).Error("Failed to print report.")
		}
	}
	m.Stop()
	log.WithField("run_id", report.RunID).Info("Analysis complete.")
}
