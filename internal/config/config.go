package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
)

// Config holds the dictcache configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Upstream     UpstreamConfig     `yaml:"upstream"`
	Dictionaries []DictionaryConfig `yaml:"dictionaries"`
	Preload      PreloadConfig      `yaml:"preload"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`
	Events       EventsConfig       `yaml:"events"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// UpstreamConfig holds catalog API settings.
type UpstreamConfig struct {
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// DictionaryConfig declares one cached dictionary. Order is preserved.
type DictionaryConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	TTLSec int    `yaml:"ttl_sec"`
}

// PreloadConfig controls startup warm-up.
type PreloadConfig struct {
	OnStart    bool `yaml:"on_start"`
	TimeoutSec int  `yaml:"timeout_sec"`
}

// SnapshotConfig holds the optional snapshot store settings.
type SnapshotConfig struct {
	Driver           string   `yaml:"driver"` // "" (disabled) or redis
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EventsConfig holds the invalidation listener settings. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Upstream.TimeoutSec <= 0 {
		c.Upstream.TimeoutSec = 15
	}
	if c.Preload.TimeoutSec <= 0 {
		c.Preload.TimeoutSec = 60
	}
	if c.Snapshot.KeyPrefix == "" {
		c.Snapshot.KeyPrefix = domain.KeyPrefix
	}
	if c.Snapshot.TTLSec <= 0 {
		c.Snapshot.TTLSec = 7 * 24 * 3600
	}
	if c.Snapshot.ReadinessTimeout <= 0 {
		c.Snapshot.ReadinessTimeout = 10
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "dictcache.invalidate.>"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	switch c.Snapshot.Driver {
	case "":
		// disabled
	case "redis":
		if len(c.Snapshot.Addrs) == 0 {
			return fmt.Errorf("snapshot.addrs is required for driver %q", c.Snapshot.Driver)
		}
	default:
		return fmt.Errorf("snapshot.driver must be empty or \"redis\", got %q", c.Snapshot.Driver)
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds the dictionary registry. An empty dictionaries list yields the builtin catalog.
func (c *Config) Registry() (*registry.Registry, error) {
	if len(c.Dictionaries) == 0 {
		return registry.Builtin(), nil
	}
	entries := make([]registry.Entry, len(c.Dictionaries))
	for i, d := range c.Dictionaries {
		entries[i] = registry.Entry{
			Name: d.Name,
			Path: d.Path,
			TTL:  time.Duration(d.TTLSec) * time.Second,
		}
	}
	reg, err := registry.New(entries...)
	if err != nil {
		return nil, fmt.Errorf("dictionaries: %w", err)
	}
	return reg, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
