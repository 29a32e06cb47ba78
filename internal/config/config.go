package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WMSVD_SERVER_ADDR.
const EnvPrefix = "WMSVD"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxUpload caps a request body in bytes.
	MaxUpload int64 `mapstructure:"max_upload"`
	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// EmbedConfig holds the fixed parameters the server embeds with.
type EmbedConfig struct {
	Wavelet       string  `mapstructure:"wavelet"`
	Level         int     `mapstructure:"level"`
	Band          string  `mapstructure:"band"`
	Alpha         float64 `mapstructure:"alpha"`
	WatermarkPath string  `mapstructure:"watermark_path"`
}

type MetadataConfig struct {
	// MaxSize caps the metadata annotation; 0 selects the PNG chunk limit.
	MaxSize int `mapstructure:"max_size"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig configures the optional result cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads configPath when it is not empty, then applies WMSVD_*
// environment overrides on top of the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
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

// Validate checks values the server cannot start with. Embedding parameters
// are validated when the watermark processor is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.MaxUpload <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload must be positive, got %d", c.Server.MaxUpload))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit and server.rate_burst must be positive, got %v and %d", c.Server.RateLimit, c.Server.RateBurst))
	}
	if c.Metadata.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("metadata.max_size must not be negative, got %d", c.Metadata.MaxSize))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload", 32<<20)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("embed.wavelet", "db2")
	v.SetDefault("embed.level", 2)
	v.SetDefault("embed.band", "HL")
	v.SetDefault("embed.alpha", 0.12)
	v.SetDefault("embed.watermark_path", "watermark.png")

	v.SetDefault("metadata.max_size", 0)

	v.SetDefault("store.path", "wmsvd.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)
}
