package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUnknownMarker  = "Unknown"
	DefaultClipPercentile = 99.0
	DefaultDensityPoints  = 200
	DefaultNumWorkers     = 4
	DefaultNumShards      = 64
	DefaultListenAddr     = ":8080"
	DefaultLogLevel       = "INFO"
	DefaultNATSSubject    = "netprofile.summaries"
)

// DefaultQuantiles mirror the quartiles of a classic describe() table.
var DefaultQuantiles = []float64{0.25, 0.5, 0.75}

// ApplicationSource binds an application label to the trace it was captured in.
type ApplicationSource struct {
	Label  string `yaml:"label"`
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // "csv" or "pcap"; inferred from the extension when empty
}

// ColumnConfig names the source columns carrying each record field.
type ColumnConfig struct {
	Time       string `yaml:"time"`
	Length     string `yaml:"length"`
	SourceAddr string `yaml:"source_addr"`
	DestAddr   string `yaml:"dest_addr"`
	SourcePort string `yaml:"source_port"`
	DestPort   string `yaml:"dest_port"`
	Protocol   string `yaml:"protocol"`
	TTL        string `yaml:"ttl"`
	TCPFlags   string `yaml:"tcp_flags"`
	WindowSize string `yaml:"window_size"`
}

// AnalysisConfig tunes the aggregation engine.
type AnalysisConfig struct {
	UnknownMarker  string       `yaml:"unknown_marker"`
	Quantiles      []float64    `yaml:"quantiles"`
	ClipPercentile float64      `yaml:"clip_percentile"`
	DensityPoints  int          `yaml:"density_points"`
	NumWorkers     int          `yaml:"num_workers"`
	NumShards      uint32       `yaml:"num_shards"`
	Columns        ColumnConfig `yaml:"columns"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the connection settings for the NATS publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// FileConfig points a file based writer at its destination.
type FileConfig struct {
	Path string `yaml:"path"`
}

// OutputDef defines a single output adapter.
type OutputDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       FileConfig       `yaml:"text"`
	JSON       FileConfig       `yaml:"json"`
	Gob        FileConfig       `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// APIConfig configures the report API server.
type APIConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	RefreshInterval string `yaml:"refresh_interval"` // re-run the analysis periodically; empty disables
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Applications []ApplicationSource `yaml:"applications"`
	Analysis     AnalysisConfig      `yaml:"analysis"`
	Outputs      []OutputDef         `yaml:"outputs"`
	API          APIConfig           `yaml:"api"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// LoadConfig reads the configuration from a YAML file, fills in defaults and validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	a := &cfg.Analysis
	if a.UnknownMarker == "" {
		a.UnknownMarker = DefaultUnknownMarker
	}
	if len(a.Quantiles) == 0 {
		a.Quantiles = append([]float64(nil), DefaultQuantiles...)
	}
	if a.ClipPercentile == 0 {
		a.ClipPercentile = DefaultClipPercentile
	}
	if a.DensityPoints == 0 {
		a.DensityPoints = DefaultDensityPoints
	}
	if a.NumWorkers <= 0 {
		a.NumWorkers = DefaultNumWorkers
	}
	if a.NumShards == 0 {
		a.NumShards = DefaultNumShards
	}

	c := &a.Columns
	setDefault(&c.Time, "Time")
	setDefault(&c.Length, "Length")
	setDefault(&c.SourceAddr, "Source IP")
	setDefault(&c.DestAddr, "Destination IP")
	setDefault(&c.SourcePort, "Source Port")
	setDefault(&c.DestPort, "Destination Port")
	setDefault(&c.Protocol, "Protocol")
	setDefault(&c.TTL, "Time to Live")
	setDefault(&c.TCPFlags, "TCP Flags")
	setDefault(&c.WindowSize, "Calculated Window Size")

	for i := range cfg.Applications {
		app := &cfg.Applications[i]
		if app.Format == "" {
			app.Format = InferFormat(app.Path)
		}
	}

	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type == "nats" && cfg.Outputs[i].NATS.Subject == "" {
			cfg.Outputs[i].NATS.Subject = DefaultNATSSubject
		}
	}

	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = DefaultListenAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

// Validate performs minimal validation for required fields.
func Validate(cfg *Config) error {
	if len(cfg.Applications) == 0 {
		return fmt.Errorf("config must list at least one application")
	}
	seen := make(map[string]bool, len(cfg.Applications))
	for i, app := range cfg.Applications {
		if app.Label == "" {
			return fmt.Errorf("applications[%d].label is required", i)
		}
		if seen[app.Label] {
			return fmt.Errorf("duplicate application label '%s'", app.Label)
		}
		seen[app.Label] = true
		if app.Path == "" {
			return fmt.Errorf("applications[%d].path is required", i)
		}
		if app.Format != "csv" && app.Format != "pcap" {
			return fmt.Errorf("application '%s': unsupported format '%s'", app.Label, app.Format)
		}
	}
	for _, q := range cfg.Analysis.Quantiles {
		if q < 0 || q > 1 {
			return fmt.Errorf("analysis.quantiles: %v is outside [0,1]", q)
		}
	}
	if p := cfg.Analysis.ClipPercentile; p <= 0 || p > 100 {
		return fmt.Errorf("analysis.clip_percentile must be in (0,100], got %v", p)
	}
	if cfg.Analysis.DensityPoints < 2 {
		return fmt.Errorf("analysis.density_points must be at least 2")
	}
	if _, err := cfg.API.Refresh(); err != nil {
		return err
	}
	return nil
}

// Refresh parses RefreshInterval. Zero means no periodic refresh.
func (a APIConfig) Refresh() (time.Duration, error) {
	if a.RefreshInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid api.refresh_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("api.refresh_interval must not be negative")
	}
	return d, nil
}

// InferFormat guesses the source format from a file extension.
func InferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng", ".cap":
		return "pcap"
	default:
		return "csv"
	}
}

func setDefault(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
