package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nextgenvending/kiosk-agent/internal/api/http"
)

type Config struct {
	Log     LogConfig
	Http    http.Config
	Backend BackendConfig
	Machine MachineConfig
	Store   StoreConfig
	Pairing PairingConfig
	Checkin CheckinConfig
	Catalog CatalogConfig
}

type BackendConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AuthToken string `mapstructure:"auth_token"`
}

type MachineConfig struct {
	Name         string `mapstructure:"name"`
	Location     string `mapstructure:"location"`
	AutoRegister bool   `mapstructure:"auto_register"`
}

type StoreConfig struct {
	// Backend selects the identity store: "file", "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type PairingConfig struct {
	AdminBaseURL        string `mapstructure:"admin_base_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

type CheckinConfig struct {
	IntervalMinutes    int    `mapstructure:"interval_minutes"`
	MaxRetries         uint64 `mapstructure:"max_retries"`
	BackoffBaseSeconds int    `mapstructure:"backoff_base_seconds"`
}

type CatalogConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RefreshSeconds int  `mapstructure:"refresh_seconds"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/kiosk-agent")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("backend.auth_token", "BACKEND_AUTH_TOKEN")
	_ = viper.BindEnv("http.admin_api_key", "ADMIN_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	// Initialize logger with configured log level
	initLogger(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
