// Package config loads the kernel's YAML configuration, following the
// teacher's tagged-struct-plus-yaml.Unmarshal convention (internal/agents's
// LoadTeamsConfig over internal/types.TeamsConfig).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the kernel's top-level configuration (spec.md §6 Persisted
// layout, §4.4 recovery rates, §4.5 routing/cost thresholds, §4.6 transfer
// thresholds).
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Routing RoutingConfig `yaml:"routing"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Transfer TransferConfig `yaml:"transfer"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig configures the HTTP/WS introspection surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig configures the memory database and artifact root.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ArtifactRoot string `yaml:"artifact_root"`
}

// NATSConfig configures the coordination event transport: the bus's mirror
// of consensus/GOAP/hint/recovery events onto NATS subjects (spec.md §4.4,
// §4.2, §4.3). When Embedded is true the kernel starts its own in-process
// NATS server on Port instead of dialing URL.
type NATSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	Port     int    `yaml:"port"`
}

// RoutingConfig configures cost-aware routing (spec.md §4.5).
type RoutingConfig struct {
	CostThreshold float64 `yaml:"cost_threshold"`
	BaselineModel string  `yaml:"baseline_model"`
}

// RecoveryConfig configures the orchestrator's recovery backpressure
// (spec.md §4.4, §5).
type RecoveryConfig struct {
	MaxRecoveryRatePerMinute int `yaml:"max_recovery_rate_per_minute"`
}

// TransferConfig configures cross-domain transfer learning thresholds
// (spec.md §4.6).
type TransferConfig struct {
	MinSimilarity          float64 `yaml:"min_similarity"`
	MaxTransferExperiences int     `yaml:"max_transfer_experiences"`
	TransferCoefficient    float64 `yaml:"transfer_coefficient"`
}

// NotificationsConfig configures escalation alerting: desktop/terminal/banner
// notifications are always on, Slack is opt-in via webhook URL.
type NotificationsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: 4850},
		Storage: StorageConfig{DatabasePath: "data/kernel.db", ArtifactRoot: ".aqe/artifacts"},
		NATS:    NATSConfig{Enabled: false, URL: "nats://127.0.0.1:4222", Embedded: true, Port: 4222},
		Routing: RoutingConfig{CostThreshold: 0, BaselineModel: "gpt-4"},
		Recovery: RecoveryConfig{MaxRecoveryRatePerMinute: 10},
		Transfer: TransferConfig{MinSimilarity: 0.6, MaxTransferExperiences: 50, TransferCoefficient: 0.5},
	}
}

// Load reads and parses a YAML configuration file, filling unset fields
// from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
