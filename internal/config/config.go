package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Storage struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	Storage      Storage       `mapstructure:"storage"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	StreamBuffer int           `mapstructure:"stream_buffer"`
	AppendRate   float64       `mapstructure:"append_rate"`
	AppendBurst  int           `mapstructure:"append_burst"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_ENV defaults to "dev")
// on top of built-in defaults. MEMBERSHIP_* environment variables override
// both, e.g. MEMBERSHIP_STORAGE_DRIVER=sqlite.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("MEMBERSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.path", "./data/membership.db")
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("stream_buffer", 64)
	v.SetDefault("append_rate", 10)
	v.SetDefault("append_burst", 20)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("read_limit must be positive")
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("stream_buffer must be positive")
	}
	if c.AppendRate <= 0 || c.AppendBurst <= 0 {
		return fmt.Errorf("append_rate and append_burst must be positive")
	}
	return nil
}
