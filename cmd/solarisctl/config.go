package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MewKitBit/Solaris/internal/monitor"
	"github.com/MewKitBit/Solaris/internal/publish"
	"github.com/MewKitBit/Solaris/internal/sim"
)

// solarisctl config.toml key mapping to runtime settings.
type fileConfig struct {
	ScenarioPath       string   `toml:"scenario_path"`
	CollapseFraction   float64  `toml:"collapse_fraction"`
	SweepIntervalHours int      `toml:"sweep_interval_hours"`
	WashIntervalHours  int      `toml:"wash_interval_hours"`
	Progress           bool     `toml:"progress"`
	MonitorEnabled     bool     `toml:"monitor_enabled"`
	ListenAddr         string   `toml:"listen_addr"`
	CorsOrigins        []string `toml:"cors_origins"`
	KafkaBrokers       []string `toml:"kafka_brokers"`
	KafkaTopic         string   `toml:"kafka_topic"`
	KafkaTimeoutMs     int      `toml:"kafka_timeout_ms"`
}

// runtimeConfig is the resolved solarisctl runtime shape.
type runtimeConfig struct {
	ScenarioPath   string
	Run            sim.RunConfig
	Progress       bool
	MonitorEnabled bool
	Monitor        monitor.Config
	Publish        publish.Config
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		ScenarioPath: "cmd/solarisctl/scenario.toml",
		Run:          sim.DefaultRunConfig(),
		Progress:     true,
		Monitor:      monitor.DefaultConfig(),
		Publish:      publish.DefaultConfig(),
	}
}

// solarisctl loader for TOML config with default overlay.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load solarisctl config: %w", err)
	}

	if meta.IsDefined("scenario_path") {
		cfg.ScenarioPath = strings.TrimSpace(raw.ScenarioPath)
	}
	if meta.IsDefined("collapse_fraction") {
		cfg.Run.CollapseFraction = raw.CollapseFraction
	}
	if meta.IsDefined("sweep_interval_hours") {
		cfg.Run.SweepIntervalHours = raw.SweepIntervalHours
	}
	if meta.IsDefined("wash_interval_hours") {
		cfg.Run.WashIntervalHours = raw.WashIntervalHours
	}
	if meta.IsDefined("progress") {
		cfg.Progress = raw.Progress
	}
	if meta.IsDefined("monitor_enabled") {
		cfg.MonitorEnabled = raw.MonitorEnabled
	}
	if meta.IsDefined("listen_addr") {
		cfg.Monitor.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Monitor.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("kafka_brokers") {
		cfg.Publish.Brokers = raw.KafkaBrokers
	}
	if meta.IsDefined("kafka_topic") {
		cfg.Publish.Topic = strings.TrimSpace(raw.KafkaTopic)
	}
	if meta.IsDefined("kafka_timeout_ms") {
		cfg.Publish.Timeout = time.Duration(raw.KafkaTimeoutMs) * time.Millisecond
	}

	if strings.TrimSpace(cfg.ScenarioPath) == "" {
		return runtimeConfig{}, fmt.Errorf("load solarisctl config: scenario_path is required")
	}
	if err := cfg.Run.Validate(); err != nil {
		return runtimeConfig{}, fmt.Errorf("load solarisctl config: %w", err)
	}
	return cfg, nil
}
