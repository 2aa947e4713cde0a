// Package config loads process configuration for novelkit hosts.
//
// Values are resolved in this order, later wins: built-in defaults, an
// optional YAML file, then NOVELKIT_* environment variables (".env" and
// ".env.local" are loaded into the environment first). Flags bound by the
// caller override everything.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kittclouds/novelkit/pkg/settings"
)

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "novelkit"

// Flat engine names.
const (
	EngineMemory = "memory"
	EngineFile   = "file"
	EngineRedis  = "redis"
)

// Config is the resolved process configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	DefaultType string       `mapstructure:"default-type"`
	DataDir     string       `mapstructure:"data-dir"`
	Flat        FlatConfig   `mapstructure:"flat"`
	SQLite      SQLiteConfig `mapstructure:"sqlite"`
	Redis       RedisConfig  `mapstructure:"redis"`
	Mongo       MongoConfig  `mapstructure:"mongo"`
}

type FlatConfig struct {
	Engine string `mapstructure:"engine"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadEnvFiles loads .env files into the process environment. Missing
// files are ignored and existing variables are not overwritten.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.default-type", string(settings.StorageLocal))
	v.SetDefault("storage.data-dir", "./data")
	v.SetDefault("storage.flat.engine", EngineFile)
	v.SetDefault("storage.sqlite.path", "")

	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "novelkit:")

	v.SetDefault("storage.mongo.uri", "")
	v.SetDefault("storage.mongo.database", "novelkit")
	v.SetDefault("storage.mongo.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads file into v when set and returns the validated config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = filepath.Join(cfg.Storage.DataDir, "novelkit.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := settings.ParseStorageType(c.Storage.DefaultType); !ok {
		errs = append(errs, fmt.Errorf("storage.default-type: unknown storage type %q", c.Storage.DefaultType))
	}
	switch c.Storage.Flat.Engine {
	case EngineMemory, EngineFile, EngineRedis:
	default:
		errs = append(errs, fmt.Errorf("storage.flat.engine: want memory, file or redis, got %q", c.Storage.Flat.Engine))
	}
	if c.Storage.Flat.Engine == EngineFile && c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data-dir: required by the file engine"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DefaultStorageType is the parsed storage.default-type.
func (c *Config) DefaultStorageType() settings.StorageType {
	st, _ := settings.ParseStorageType(c.Storage.DefaultType)
	return st
}
