package config

import (
	"fmt"
	"runtime"

	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/pkg/solar"
)

// Storage backend names
const (
	BackendNone        = ""
	BackendSQLite      = "sqlite"
	BackendTimescaleDB = "timescaledb"
)

// Defaults applied before the file and the environment are read
const (
	DefaultListenAddr = "0.0.0.0"
	DefaultPort       = 8080
	DefaultZenith     = "official"
	DefaultStrategy   = "shifted-midnight"
	DefaultDayBasis   = "local"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// LoadConfig returns the complete, validated configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server  ServerData  `yaml:"server" json:"server" envPrefix:"SERVER_"`
	Solar   SolarData   `yaml:"solar" json:"solar" envPrefix:"SOLAR_"`
	Storage StorageData `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Log     LogData     `yaml:"log" json:"log" envPrefix:"LOG_"`
}

// ServerData configures the REST listener
type ServerData struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" env:"LISTEN_ADDR"`
	Port       int    `yaml:"port" json:"port" env:"PORT"`
}

// SolarData configures how fixes are classified
type SolarData struct {
	Zenith   string `yaml:"zenith" json:"zenith" env:"ZENITH"`
	Strategy string `yaml:"strategy" json:"strategy" env:"STRATEGY"`
	DayBasis string `yaml:"day_basis" json:"day_basis" env:"DAY_BASIS"`
	Workers  int    `yaml:"workers" json:"workers" env:"WORKERS"`
}

// StorageData selects and configures the night store
type StorageData struct {
	Backend                     string `yaml:"backend" json:"backend" env:"BACKEND"`
	SQLitePath                  string `yaml:"sqlite_path" json:"sqlite_path" env:"SQLITE_PATH"`
	TimescaleDBConnectionString string `yaml:"timescaledb_connection_string" json:"timescaledb_connection_string" env:"TIMESCALEDB_CONNECTION_STRING"`
}

// LogData configures the production log level
type LogData struct {
	Level string `yaml:"level" json:"level" env:"LEVEL"`
}

// Defaults returns a configuration populated with the documented defaults
func Defaults() *ConfigData {
	return &ConfigData{
		Server: ServerData{
			ListenAddr: DefaultListenAddr,
			Port:       DefaultPort,
		},
		Solar: SolarData{
			Zenith:   DefaultZenith,
			Strategy: DefaultStrategy,
			DayBasis: DefaultDayBasis,
			Workers:  runtime.GOMAXPROCS(0),
		},
	}
}

// Validate checks every named option and the settings the selected backend needs
func (c *ConfigData) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if _, err := c.Solar.ClassifierOptions(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case BackendNone:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage backend %q requires sqlite_path", c.Storage.Backend)
		}
	case BackendTimescaleDB:
		if c.Storage.TimescaleDBConnectionString == "" {
			return fmt.Errorf("storage backend %q requires timescaledb_connection_string", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// ClassifierOptions converts the solar section into classifier options
func (s SolarData) ClassifierOptions() (nights.Options, error) {
	zenith, err := solar.ParseZenith(s.Zenith)
	if err != nil {
		return nights.Options{}, err
	}
	strategy, err := nights.ParseStrategy(s.Strategy)
	if err != nil {
		return nights.Options{}, err
	}
	basis, err := nights.ParseDayBasis(s.DayBasis)
	if err != nil {
		return nights.Options{}, err
	}
	if s.Workers < 0 {
		return nights.Options{}, fmt.Errorf("solar workers must not be negative, got %d", s.Workers)
	}

	return nights.Options{
		Zenith:   zenith,
		Strategy: strategy,
		Basis:    basis,
		Workers:  s.Workers,
	}, nil
}
