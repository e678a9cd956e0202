// Package config provides configuration loading for the overlay mesh node.
package config

import "time"

// MeshConfig is the top-level configuration for a node, covering every
// option recognized by the connection manager and gossip orchestrator.
type MeshConfig struct {
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	Gossip     GossipConfig     `yaml:"gossip" json:"gossip"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Health     HealthConfig     `yaml:"health" json:"health"`
	Control    ControlConfig    `yaml:"control" json:"control"`

	MaxConnections int  `yaml:"max_connections" json:"max_connections"`
	Debug          bool `yaml:"debug" json:"debug"`
}

// ConnectionConfig governs C3/C4 transport and connection-manager behavior.
type ConnectionConfig struct {
	TimeoutMS             int64     `yaml:"timeout_ms" json:"timeout_ms"`
	MaxRetries            int       `yaml:"max_retries" json:"max_retries"`
	HeartbeatIntervalMS   int64     `yaml:"heartbeat_interval_ms" json:"heartbeat_interval_ms"`
	EnableObfuscation     bool      `yaml:"enable_obfuscation" json:"enable_obfuscation"`
	ObfuscationIntervalMS int64     `yaml:"obfuscation_interval_ms" json:"obfuscation_interval_ms"`
	RTCConfig             RTCConfig `yaml:"rtc_config" json:"rtc_config"`
	RelayServers          []string  `yaml:"relay_servers" json:"relay_servers"`
}

// RTCConfig names the ICE-style servers used for direct-transport address
// discovery.
type RTCConfig struct {
	STUNServers []string `yaml:"stun_servers" json:"stun_servers"`
}

// GossipConfig governs C5 propagation behavior.
type GossipConfig struct {
	MaxHops               int   `yaml:"max_hops" json:"max_hops"`
	IntervalMS            int64 `yaml:"interval_ms" json:"interval_ms"`
	MessageTTLMS          int64 `yaml:"message_ttl_ms" json:"message_ttl_ms"`
	EnableAutoPropagation bool  `yaml:"enable_auto_propagation" json:"enable_auto_propagation"`
	MaxConcurrentGossip   int   `yaml:"max_concurrent_gossip" json:"max_concurrent_gossip"`
}

// LoggingConfig controls internal/logger output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health exporter, which serves /health,
// /health/live and /health/ready; Path is not read by health.Server.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// ControlConfig governs the local whisper/resonate/stats control socket
// cmd/meshnode's subcommands talk to. Loopback-only by convention; it
// carries no authentication of its own.
type ControlConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Duration helpers translate the millisecond fields read from YAML/env into
// time.Duration for internal use.

func (c ConnectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c ConnectionConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c ConnectionConfig) ObfuscationInterval() time.Duration {
	return time.Duration(c.ObfuscationIntervalMS) * time.Millisecond
}

func (g GossipConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMS) * time.Millisecond
}

func (g GossipConfig) MessageTTL() time.Duration {
	return time.Duration(g.MessageTTLMS) * time.Millisecond
}

// Default returns the built-in defaults used when no YAML file or
// environment override is present.
func Default() *MeshConfig {
	return &MeshConfig{
		Connection: ConnectionConfig{
			TimeoutMS:             30_000,
			MaxRetries:            3,
			HeartbeatIntervalMS:   30_000,
			EnableObfuscation:     false,
			ObfuscationIntervalMS: 45_000,
		},
		Gossip: GossipConfig{
			MaxHops:               10,
			IntervalMS:            5_000,
			MessageTTLMS:          300_000,
			EnableAutoPropagation: true,
			MaxConcurrentGossip:   5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Addr:    ":8080",
			Path:    "/healthz",
		},
		Control: ControlConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7777",
		},
		MaxConnections: 50,
		Debug:          false,
	}
}
