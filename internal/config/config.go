package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port    int
		BaseURL string `mapstructure:"base_url"`
	}
	SMTP struct {
		Host     string
		Port     int
		From     string
		Password string
	}
	Slack struct {
		WebhookURL string `mapstructure:"webhook_url"`
	}
	Webhook struct {
		URL            string
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
	}
	Storage struct {
		LogPath string `mapstructure:"log_path"`
	}
	Alerting struct {
		MaxAlertsPerHour int `mapstructure:"max_alerts_per_hour"`
	}
}

// LoadConfig loads the configuration from config.yaml
func LoadConfig() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("smtp.host", "")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "")
	viper.SetDefault("smtp.password", "")
	viper.SetDefault("slack.webhook_url", "")
	viper.SetDefault("webhook.url", "")
	viper.SetDefault("webhook.timeout_seconds", 30)
	viper.SetDefault("storage.log_path", "logs/aggregated")
	viper.SetDefault("alerting.max_alerts_per_hour", 10)

	var config Config

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Ensure log storage directory exists before first start
			if err := os.MkdirAll(viper.GetString("storage.log_path"), 0755); err != nil {
				fmt.Printf("Warning: Failed to create log directory: %v\n", err)
			}

			if err := viper.SafeWriteConfig(); err != nil {
				fmt.Printf("Warning: Failed to write default config: %v\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Printf("Error unmarshaling config: %v\n", err)
	}

	return &config
}
