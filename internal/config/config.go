// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mcp-health-profile/internal/models"
)

type Config struct {
	Server   Server   `mapstructure:"server"`
	Store    Store    `mapstructure:"store"`
	Calendar Calendar `mapstructure:"calendar"`
	RabbitMQ RabbitMQ `mapstructure:"rabbitmq"`
	Log      Log      `mapstructure:"log"`
}

type Server struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

type Store struct {
	DBPath string   `mapstructure:"db_path"`
	Deny   []string `mapstructure:"deny"` // object types whose authorization comes back denied
	Source string   `mapstructure:"source"`
}

type Calendar struct {
	Timezone string `mapstructure:"timezone"`
}

type RabbitMQ struct {
	Addr  string `mapstructure:"addr"` // empty disables publishing
	Queue string `mapstructure:"queue"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const (
	defaultConfigName = "health-profile"
	envPrefix         = "HEALTH_PROFILE"
)

// Load reads the config file at path, or health-profile.yaml from the
// working directory when path is empty. A missing default file is not an
// error. Environment variables such as HEALTH_PROFILE_SERVER_PORT override
// file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8012)
	v.SetDefault("server.api_key", "")
	v.SetDefault("store.db_path", "/data/health-profile.db")
	v.SetDefault("store.deny", []string{})
	v.SetDefault("store.source", "mcp-health-profile")
	v.SetDefault("calendar.timezone", "Local")
	v.SetDefault("rabbitmq.addr", "")
	v.SetDefault("rabbitmq.queue", "measures_queue")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, t := range c.Store.Deny {
		if !models.ObjectType(t).IsSupported() {
			return fmt.Errorf("store.deny: unknown type %q", t)
		}
	}
	return nil
}

// Location resolves the calendar time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar.timezone: %w", err)
	}
	return loc, nil
}

// DeniedTypes returns the deny list as object types.
func (c *Config) DeniedTypes() []models.ObjectType {
	types := make([]models.ObjectType, 0, len(c.Store.Deny))
	for _, t := range c.Store.Deny {
		types = append(types, models.ObjectType(t))
	}
	return types
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
