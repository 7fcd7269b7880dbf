// Package config provides configuration loading for outfitctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendFile      = "file"
	BackendEncrypted = "encrypted"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
)

// Config holds all configuration for the CLI.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// APIConfig points the client at a backend.
type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ImageDir string        `mapstructure:"image_dir"`
}

// SessionConfig selects where the session is persisted.
type SessionConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=file encrypted sqlite redis memory"`
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase" validate:"required_if=Backend encrypted"`
}

// RedisConfig holds Redis configuration for the redis session backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// ServerConfig configures `outfitctl mock-server`.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr" validate:"required"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry" validate:"gt=0"`
	Origins   []string      `mapstructure:"origins"`
}

// Load reads .env, an optional config file and OUTFIT_* environment
// variables, in increasing order of precedence. configFile may be empty.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("OUTFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints, including the cross-section ones.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required for the redis session backend")
	}
	return nil
}

// DefaultDir returns ~/.outfit.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".outfit"), nil
}

// SessionPath returns session.path, or the backend's default file under
// DefaultDir when it is unset. It is empty for the memory and redis
// backends.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	name := ""
	switch c.Session.Backend {
	case BackendFile:
		name = "session.json"
	case BackendEncrypted:
		name = "session.enc.json"
	case BackendSQLite:
		name = "session.db"
	default:
		return ""
	}
	dir, err := DefaultDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, name)
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.image_dir", "")

	// Session defaults
	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.path", "")
	v.SetDefault("session.passphrase", "")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "outfit:session:")
	v.SetDefault("redis.ttl", "0s")

	// Log defaults
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	// Mock server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.jwt_expiry", "24h")
	v.SetDefault("server.origins", []string{"*"})
}
