// Package ops holds deployment-facing configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/pkg/conn"
	"main/pkg/stream"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Postgres  PostgresConfig  `json:"postgres"`
	Broker    BrokerConfig    `json:"broker"`
	Nats      NatsConfig      `json:"nats"`
	Metrics   MetricsConfig   `json:"metrics"`
	Profiler  ProfilerConfig  `json:"profiler"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// PostgresConfig describes the strategy database.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// BrokerConfig describes the trading API endpoints shared by every
// account; credentials live on the account rows.
type BrokerConfig struct {
	BaseURL        string `json:"baseUrl"`
	StreamURL      string `json:"streamUrl"`
	Source         string `json:"source"`
	HTTPTimeoutSec int    `json:"httpTimeoutSec"`
	MaxReconnect   int    `json:"maxReconnect"`
}

// NatsConfig describes the alert bus.
type NatsConfig struct {
	URL string `json:"url"`
}

// MetricsConfig describes the prometheus scrape endpoint.
type MetricsConfig struct {
	Listen string `json:"listen"`
}

// ProfilerConfig enables continuous profiling when Address is set.
type ProfilerConfig struct {
	Address string `json:"address"`
}

// SchedulerConfig controls the strategy tick cadence.
type SchedulerConfig struct {
	TickIntervalSec int `json:"tickIntervalSec"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Postgres     conn.Option
	Broker       BrokerConfig
	NatsURL      string
	MetricsAddr  string
	ProfilerAddr string
	TickInterval time.Duration
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Postgres.Host == "" {
		return Loaded{}, fmt.Errorf("postgres host is empty")
	}
	if cfg.Postgres.Database == "" {
		return Loaded{}, fmt.Errorf("postgres database is empty")
	}
	if cfg.Broker.BaseURL == "" {
		return Loaded{}, fmt.Errorf("broker baseUrl is empty")
	}

	sslMode := cfg.Postgres.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	metricsAddr := cfg.Metrics.Listen
	if metricsAddr == "" {
		metricsAddr = ":9100"
	}
	tick := cfg.Scheduler.TickIntervalSec
	if tick <= 0 {
		tick = 3
	}
	natsURL := cfg.Nats.URL
	if natsURL == "" {
		natsURL = "nats://127.0.0.1:4222"
	}

	return Loaded{
		Postgres: conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  sslMode,
		},
		Broker:       cfg.Broker,
		NatsURL:      natsURL,
		MetricsAddr:  metricsAddr,
		ProfilerAddr: cfg.Profiler.Address,
		TickInterval: time.Duration(tick) * time.Second,
	}, nil
}

// HTTPTimeout resolves the broker REST timeout.
func (b BrokerConfig) HTTPTimeout() time.Duration {
	if b.HTTPTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.HTTPTimeoutSec) * time.Second
}

// StreamBackoff is the reconnect policy for the quote stream.
func (b BrokerConfig) StreamBackoff() stream.Backoff {
	return stream.DefaultBackoff()
}
