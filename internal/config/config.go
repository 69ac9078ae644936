package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors config/config.yaml.
type Config struct {
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Websocket WebsocketConfig `yaml:"websocket"`
}

type SystemConfig struct {
	ListenAddress string `yaml:"listen_address"`
	DBPath        string `yaml:"db_path"`
}

type TelemetryConfig struct {
	SampleInterval   string `yaml:"sample_interval"`
	PersistQueueSize int    `yaml:"persist_queue_size"`

	SampleIntervalDuration time.Duration `yaml:"-"`
}

type MQTTConfig struct {
	ClientID    string `yaml:"client_id"`
	KeepAlive   string `yaml:"keep_alive"`
	PingTimeout string `yaml:"ping_timeout"`

	KeepAliveDuration   time.Duration `yaml:"-"`
	PingTimeoutDuration time.Duration `yaml:"-"`
}

type WebsocketConfig struct {
	SendBuffer int `yaml:"send_buffer"`
}

// Load reads the YAML config, applies defaults and parses durations.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	// Defaults
	if cfg.System.ListenAddress == "" {
		cfg.System.ListenAddress = ":8080"
	}
	if cfg.System.DBPath == "" {
		cfg.System.DBPath = "data/greenhouse.sqlite"
	}
	if cfg.Telemetry.SampleInterval == "" {
		cfg.Telemetry.SampleInterval = "60s"
	}
	if cfg.Telemetry.PersistQueueSize <= 0 {
		cfg.Telemetry.PersistQueueSize = 1000
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "greenhouse-monitor"
	}
	if cfg.MQTT.KeepAlive == "" {
		cfg.MQTT.KeepAlive = "30s"
	}
	if cfg.MQTT.PingTimeout == "" {
		cfg.MQTT.PingTimeout = "10s"
	}
	if cfg.Websocket.SendBuffer <= 0 {
		cfg.Websocket.SendBuffer = 256
	}

	if cfg.Telemetry.SampleIntervalDuration, err = time.ParseDuration(cfg.Telemetry.SampleInterval); err != nil {
		return Config{}, fmt.Errorf("invalid sample_interval: %w", err)
	}
	if cfg.MQTT.KeepAliveDuration, err = time.ParseDuration(cfg.MQTT.KeepAlive); err != nil {
		return Config{}, fmt.Errorf("invalid keep_alive: %w", err)
	}
	if cfg.MQTT.PingTimeoutDuration, err = time.ParseDuration(cfg.MQTT.PingTimeout); err != nil {
		return Config{}, fmt.Errorf("invalid ping_timeout: %w", err)
	}

	return cfg, nil
}
