package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetProfile/internal/api"
	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/manager"
	"Go2NetProfile/internal/logging"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/notification"
	"Go2NetProfile/internal/query"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := manager.NewManager(cfg, log, metrics.New(reg))
	if err != nil {
		log.WithError(err).Fatal("Failed to create manager.")
	}
	hub := notification.NewHub(log)
	m.AddNotifier(hub)

	// The first report is computed before serving; a failure leaves the
	// API up so a later refresh can succeed.
	if _, err := m.Run(context.Background()); err != nil {
		log.WithError(err).Error("Initial analysis failed.")
	}
	interval, _ := cfg.API.Refresh()
	m.Start(interval)

	// Find the first enabled ClickHouse writer config for the history queries
	var querier query.Querier
	for _, def := range cfg.Outputs {
		if def.Enabled && def.Type == "clickhouse" {
			querier, err = query.NewClickHouseQuerier(def.ClickHouse)
			if err != nil {
				log.WithError(err).Warn("Failed to create querier, history endpoints disabled.")
				querier = nil
			}
			break
		}
	}

	handler := api.NewHandler(m, querier, hub, log)
	server := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           handler.Router(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("API server starting.")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("Could not listen on %s", server.Addr)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown.")
	}
	m.Stop()
	if querier != nil {
		querier.Close()
	}
	log.Info("API server exited.")
}
