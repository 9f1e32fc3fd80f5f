// Package config loads the server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"image-engine/internal/bitmap"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultHTTPAddr      = ":8080"
	DefaultCacheMaxBytes = 64 << 20
	DefaultDecodeSource  = "network"
)

type Config struct {
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	CacheMaxBytes int    `mapstructure:"CACHE_MAX_BYTES"`
	LogLevel      int    `mapstructure:"LOG_LEVEL"`
	// DecodeSource is the provenance the synthetic decoder reports:
	// memory, disk or network.
	DecodeSource string `mapstructure:"DECODE_SOURCE"`
}

func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  HTTPAddr: %s\n", c.HTTPAddr))
	sb.WriteString(fmt.Sprintf("  CacheMaxBytes: %d\n", c.CacheMaxBytes))
	sb.WriteString(fmt.Sprintf("  LogLevel: %d\n", c.LogLevel))
	sb.WriteString(fmt.Sprintf("  DecodeSource: %s\n", c.DecodeSource))
	return sb.String()
}

// LoadFromEnv reads the configuration from the environment, loading .env
// first when one exists in the working directory.
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to load .env")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("HTTP_ADDR", DefaultHTTPAddr)
	v.SetDefault("CACHE_MAX_BYTES", DefaultCacheMaxBytes)
	v.SetDefault("LOG_LEVEL", 0)
	v.SetDefault("DECODE_SOURCE", DefaultDecodeSource)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "unable to decode config")
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.CacheMaxBytes <= 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig,
			"CACHE_MAX_BYTES must be positive, got %d", c.CacheMaxBytes)
	}
	if c.HTTPAddr == "" {
		return platformerrors.New(platformerrors.CodeInvalidConfig, "HTTP_ADDR must not be empty")
	}
	if c.LogLevel < 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "LOG_LEVEL must not be negative, got %d", c.LogLevel)
	}
	if _, err := c.Provenance(); err != nil {
		return err
	}
	return nil
}

// Provenance returns DecodeSource as a bitmap.LoadedFrom.
func (c *Config) Provenance() (bitmap.LoadedFrom, error) {
	from, ok := bitmap.ParseLoadedFrom(strings.ToLower(c.DecodeSource))
	if !ok {
		return 0, platformerrors.Newf(platformerrors.CodeInvalidConfig,
			"DECODE_SOURCE must be memory, disk or network, got %q", c.DecodeSource)
	}
	return from, nil
}
