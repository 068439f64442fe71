package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "FORMLEDGER"
	defaultDatabasePath     = "formledger.db"
	defaultLogLevel         = "info"
	defaultBearerTTLMinutes = 30
)

// AppConfig captures runtime configuration for the formledger tooling.
type AppConfig struct {
	DatabasePath        string
	LogLevel            string
	BearerSigningSecret string
	BearerTTL           time.Duration
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

	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("bearer.ttl_minutes", defaultBearerTTLMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		BearerSigningSecret: configViper.GetString("bearer.signing_secret"),
		BearerTTL:           time.Duration(configViper.GetInt("bearer.ttl_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.BearerTTL < 0 {
		return fmt.Errorf("bearer.ttl_minutes must not be negative")
	}
	return nil
}
