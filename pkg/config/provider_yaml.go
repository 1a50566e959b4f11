package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is prepended to every environment override, e.g. NOCTURNE_SERVER_PORT
const EnvPrefix = "NOCTURNE_"

// YAMLProvider implements ConfigProvider for YAML configuration files. Values are
// layered as defaults, then the file, then NOCTURNE_* environment variables.
type YAMLProvider struct {
	filename string
	environ  map[string]string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider. An empty filename
// loads only the defaults and the environment.
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// WithEnvironment replaces the process environment used for overrides
func (y *YAMLProvider) WithEnvironment(environ map[string]string) *YAMLProvider {
	y.environ = environ
	return y
}

// LoadConfig loads the complete configuration
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfg := Defaults()

	if y.filename != "" {
		cfgFile, err := os.ReadFile(y.filename)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", y.filename, err)
		}
		if err := yaml.UnmarshalStrict(cfgFile, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", y.filename, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if y.environ != nil {
		opts.Environment = y.environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	y.config = cfg
	return cfg, nil
}

// IsReadOnly returns true since YAML provider is read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
