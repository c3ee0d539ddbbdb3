// Package config loads the bridge configuration file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/security"
)

type Config struct {
	Serial struct {
		InclinePort string `mapstructure:"incline_port"`
		Baud        int    `mapstructure:"baud"`
	} `mapstructure:"serial"`
	Ant struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"ant"`
	Security struct {
		AuthorizedDevices []string `mapstructure:"authorized_devices"`
		AllowedOpcodes    []int    `mapstructure:"allowed_opcodes"`
		RateLimitSeconds  float64  `mapstructure:"rate_limit_seconds"`
	} `mapstructure:"security"`
	History struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"history"`
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Bike struct {
		GearRatio float64 `mapstructure:"gear_ratio"`
	} `mapstructure:"bike"`
}

// Load reads config.yaml from path. The security section has no
// defaults on purpose: a bridge without a complete gate must not
// start, so those keys stay fatal when absent (checked by the gate
// constructor).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	// Nested keys map to env vars with underscores, e.g.
	// serial.incline_port -> SERIAL_INCLINE_PORT.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("history.dir", "./rides")
	v.SetDefault("server.port", 8080)
	v.SetDefault("bike.gear_ratio", 2.5)
}

// SecurityConfig converts the raw security section into the gate's
// config type.
func (c *Config) SecurityConfig() security.Config {
	ops := make([]byte, 0, len(c.Security.AllowedOpcodes))
	for _, op := range c.Security.AllowedOpcodes {
		ops = append(ops, byte(op))
	}
	return security.Config{
		AuthorizedDevices: c.Security.AuthorizedDevices,
		AllowedOpcodes:    ops,
		Cooldown:          time.Duration(c.Security.RateLimitSeconds * float64(time.Second)),
	}
}
