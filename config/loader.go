package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// DotenvPath, if set, is loaded into the process environment via
	// godotenv before overrides are applied.
	DotenvPath string
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir: "config",
	}
}

// Load loads configuration with automatic environment detection.
//
// Cascade (lowest to highest priority): built-in defaults -> config.yaml ->
// default.yaml -> <environment>.yaml -> .env file -> process environment.
func Load(opts ...LoaderOptions) (*MeshConfig, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.DotenvPath != "" {
		_ = godotenv.Load(options.DotenvPath)
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg := Default()

	for _, name := range []string{"config.yaml", "default.yaml", env + ".yaml"} {
		path := filepath.Join(options.ConfigDir, name)
		if err := mergeConfigFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// mergeConfigFile loads a single YAML config file on top of cfg. Fields
// absent from the file keep their current value, so later files in the
// cascade only override what they explicitly set.
func mergeConfigFile(cfg *MeshConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*MeshConfig, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *MeshConfig {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
