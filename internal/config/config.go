// Package config handles taskgraph configuration: defaults, the
// .taskgraph/config.yaml file, and TG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// Config represents the effective configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`
	Delete  DeleteConfig  `mapstructure:"delete" yaml:"delete" json:"delete"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

type StorageConfig struct {
	// Backend is one of file, sqlite or postgres.
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// Path overrides the snapshot location for the file and sqlite
	// backends. Relative paths resolve against the data directory.
	Path       string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	DSN        string `mapstructure:"dsn" yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Durability string `mapstructure:"durability" yaml:"durability" json:"durability"`
}

type DeleteConfig struct {
	Hierarchy string `mapstructure:"hierarchy" yaml:"hierarchy" json:"hierarchy"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    BackendFile,
			Durability: "strict",
		},
		Delete: DeleteConfig{Hierarchy: "detach"},
		Server: ServerConfig{Addr: ":3000"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Storage backend names.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// newViper returns a viper instance seeded with the defaults, bound to
// TG_* environment variables when env is set.
func newViper(env bool) *viper.Viper {
	v := viper.New()
	def := Default()
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.dsn", def.Storage.DSN)
	v.SetDefault("storage.durability", def.Storage.Durability)
	v.SetDefault("delete.hierarchy", def.Delete.Hierarchy)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

// Load reads dataDir/config.yaml over the defaults and applies TG_*
// environment overrides. A missing config file is not an error. The
// result is validated.
func Load(dataDir string) (Config, error) {
	cfg, err := read(dataDir, true)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile reads dataDir/config.yaml over the defaults, ignoring the
// environment and skipping validation. It is the starting point for
// editing the file.
func ReadFile(dataDir string) (Config, error) {
	return read(dataDir, false)
}

func read(dataDir string, env bool) (Config, error) {
	v := newViper(env)
	v.SetConfigFile(filepath.Join(dataDir, FileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write writes cfg to dataDir/config.yaml.
func Write(dataDir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to dataDir/config.yaml.
func WriteDefault(dataDir string) error {
	return Write(dataDir, Default())
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{
		"storage.backend",
		"storage.path",
		"storage.dsn",
		"storage.durability",
		"delete.hierarchy",
		"server.addr",
		"log.level",
		"log.format",
	}
}

// Get returns the value of a dotted key.
func (c *Config) Get(key string) (string, error) {
	p, err := c.field(key)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// Set assigns a dotted key and validates the result. On error c is
// unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	p, err := next.field(key)
	if err != nil {
		return err
	}
	*p = value
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Config) field(key string) (*string, error) {
	switch key {
	case "storage.backend":
		return &c.Storage.Backend, nil
	case "storage.path":
		return &c.Storage.Path, nil
	case "storage.dsn":
		return &c.Storage.DSN, nil
	case "storage.durability":
		return &c.Storage.Durability, nil
	case "delete.hierarchy":
		return &c.Delete.Hierarchy, nil
	case "server.addr":
		return &c.Server.Addr, nil
	case "log.level":
		return &c.Log.Level, nil
	case "log.format":
		return &c.Log.Format, nil
	}
	return nil, fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
}
