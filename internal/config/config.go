package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "FURRYFRIENDS"
	defaultHTTPAddress    = "127.0.0.1:8080"
	defaultDatabasePath   = "furryfriends.db"
	defaultRedisURL       = "redis://127.0.0.1:6379/0"
	defaultLogLevel       = "info"
	defaultTokenTTLMin    = 30
	defaultRefreshTTLHour = 720
	defaultOwnerCode      = "12345678"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	RedisURL      string
	SigningSecret string
	TokenTTL      time.Duration
	RefreshTTL    time.Duration
	OwnerCode     string
	LogLevel      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("redis.url", defaultRedisURL)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("session.refresh_ttl_hours", defaultRefreshTTLHour)
	configViper.SetDefault("owner.access_code", defaultOwnerCode)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		RedisURL:      configViper.GetString("redis.url"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:      time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		RefreshTTL:    time.Duration(configViper.GetInt("session.refresh_ttl_hours")) * time.Hour,
		OwnerCode:     configViper.GetString("owner.access_code"),
		LogLevel:      configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis.url is required")
	}
	if strings.TrimSpace(c.OwnerCode) == "" {
		return fmt.Errorf("owner.access_code is required")
	}
	return nil
}
