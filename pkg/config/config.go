package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/cibcore/pkg/log"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file
const (
	EnvSchemaDir       = "PCMK_schema_directory"
	EnvRemoteSchemaDir = "PCMK_remote_schema_directory"
	EnvDataDir         = "CIBCORE_DATA_DIR"
	EnvLogLevel        = "CIBCORE_LOG_LEVEL"
	EnvLogJSON         = "CIBCORE_LOG_JSON"
)

// Defaults
const (
	DefaultSchemaDir       = "/usr/share/pacemaker"
	DefaultRemoteSchemaDir = "/var/lib/pacemaker/schemas"
	DefaultDataDir         = "/var/lib/cibcore"
	DefaultListenAddr      = "127.0.0.1:9190"
)

// Config holds the settings shared by the cibcore binaries
type Config struct {
	// SchemaDir is the primary schema directory shipped with the software
	SchemaDir string `yaml:"schema_dir"`

	// RemoteSchemaDir holds schemas received from other nodes
	RemoteSchemaDir string `yaml:"remote_schema_dir"`

	// DataDir holds the revision database
	DataDir string `yaml:"data_dir"`

	Log      LogConfig      `yaml:"log"`
	Resolver ResolverConfig `yaml:"resolver"`
	Server   ServerConfig   `yaml:"server"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ResolverConfig configures attribute resolution
type ResolverConfig struct {
	// InactiveChanges folds the next-change time of blocks whose rule does
	// not currently apply into the result
	InactiveChanges bool `yaml:"inactive_changes"`
}

// ServerConfig configures the HTTP endpoint of "cibctl serve"
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SchemaDir:       DefaultSchemaDir,
		RemoteSchemaDir: DefaultRemoteSchemaDir,
		DataDir:         DefaultDataDir,
		Log:             LogConfig{Level: "info"},
		Server:          ServerConfig{ListenAddr: DefaultListenAddr},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSchemaDir); ok && v != "" {
		c.SchemaDir = v
	}
	if v, ok := lookup(EnvRemoteSchemaDir); ok && v != "" {
		c.RemoteSchemaDir = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogJSON); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLogJSON, v, err)
		}
		c.Log.JSON = b
	}
	return nil
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SchemaDir) == "" {
		return fmt.Errorf("schema directory is not set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data directory is not set")
	}
	return nil
}

// LoggerConfig converts the log settings for log.Init
func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
