package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment variable values
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables in
// every string field of the configuration that may legitimately carry one.
func SubstituteEnvVarsInConfig(cfg *MeshConfig) {
	if cfg == nil {
		return
	}
	for i := range cfg.Connection.RelayServers {
		cfg.Connection.RelayServers[i] = SubstituteEnvVars(cfg.Connection.RelayServers[i])
	}
	for i := range cfg.Connection.RTCConfig.STUNServers {
		cfg.Connection.RTCConfig.STUNServers[i] = SubstituteEnvVars(cfg.Connection.RTCConfig.STUNServers[i])
	}
	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
	cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
	cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
	cfg.Health.Addr = SubstituteEnvVars(cfg.Health.Addr)
}

// GetEnvironment returns the current environment from MESH_ENV or defaults
// to "development".
func GetEnvironment() string {
	env := os.Getenv("MESH_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// applyEnvironmentOverrides overrides config with environment variables,
// the highest-priority layer of the load cascade.
func applyEnvironmentOverrides(cfg *MeshConfig) {
	if v := os.Getenv("MESH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MESH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MESH_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnections = n
		}
	}
	if v := os.Getenv("MESH_DEBUG"); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("MESH_RELAY_SERVERS"); v != "" {
		cfg.Connection.RelayServers = strings.Split(v, ",")
	}
	if v := os.Getenv("MESH_GOSSIP_MAX_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gossip.MaxHops = n
		}
	}
}
