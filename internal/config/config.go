package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// WhatsApp Cloud API credentials. All three are required.
	WhatsAppAccessToken   string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID string `mapstructure:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppVerifyToken   string `mapstructure:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAPIBaseURL    string `mapstructure:"WHATSAPP_API_BASE_URL"`

	// Events API (guest/event source of truth).
	EventsAPIBaseURL string `mapstructure:"EVENTS_API_BASE_URL"`

	// Admin endpoints bearer token. Empty disables the admin surface.
	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	// Inbound message dedup log. Empty runs the responder stateless.
	DedupDBPath string `mapstructure:"DEDUP_DB_PATH"`

	MaxRequestsPerMin int `mapstructure:"MAX_REQUESTS_PER_MIN"`
}

// LoadConfig reads configuration from config.yaml (if present) and the
// environment, with environment variables taking precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v21.0")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 120)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every variable required to serve webhook traffic is set.
// A missing WhatsApp credential makes the whole service unusable, so this is
// checked before the server starts and again at request entry.
func (c *Config) Validate() error {
	missing := []string{}
	if c.WhatsAppAccessToken == "" {
		missing = append(missing, "WHATSAPP_ACCESS_TOKEN")
	}
	if c.WhatsAppPhoneNumberID == "" {
		missing = append(missing, "WHATSAPP_PHONE_NUMBER_ID")
	}
	if c.WhatsAppVerifyToken == "" {
		missing = append(missing, "WHATSAPP_VERIFY_TOKEN")
	}
	if c.EventsAPIBaseURL == "" {
		missing = append(missing, "EVENTS_API_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
