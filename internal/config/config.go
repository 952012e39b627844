package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Deep-link URL sources selectable through DEEPLINK_SOURCE.
const (
	SourceNative = "native"
	SourceWeb    = "web"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string        `mapstructure:"BADGERDB_PATH"`
	BadgerGCInterval time.Duration `mapstructure:"BADGER_GC_INTERVAL"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`

	APIBaseURL string        `mapstructure:"API_BASE_URL"`
	APITimeout time.Duration `mapstructure:"API_TIMEOUT"`
	// APIToken seeds the stored session token at startup when set.
	APIToken string `mapstructure:"API_TOKEN"`

	DeepLinkSource         string        `mapstructure:"DEEPLINK_SOURCE"`
	DeepLinkDispatchDelay  time.Duration `mapstructure:"DEEPLINK_DISPATCH_DELAY"`
	DeepLinkInternalMarker string        `mapstructure:"DEEPLINK_INTERNAL_MARKER"`
	// DeepLinkWebHosts lists the hosts the web source may open; required
	// when DEEPLINK_SOURCE is web. Comma-separated in the environment.
	DeepLinkWebHosts    []string      `mapstructure:"DEEPLINK_WEB_HOSTS"`
	DeepLinkPageTimeout time.Duration `mapstructure:"DEEPLINK_PAGE_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("BADGERDB_PATH", "./badger_data")
	v.SetDefault("BADGER_GC_INTERVAL", 5*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("API_TIMEOUT", 10*time.Second)
	v.SetDefault("API_TOKEN", "")
	v.SetDefault("DEEPLINK_SOURCE", SourceNative)
	v.SetDefault("DEEPLINK_DISPATCH_DELAY", 300*time.Millisecond)
	v.SetDefault("DEEPLINK_INTERNAL_MARKER", "(tabs)")
	v.SetDefault("DEEPLINK_WEB_HOSTS", []string{})
	v.SetDefault("DEEPLINK_PAGE_TIMEOUT", 15*time.Second)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults make every key known to viper, so AutomaticEnv can override
	// keys that are absent from the file.
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = v.ReadInConfig()
	if err != nil {
		// A missing file is fine, env vars may carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is not set")
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.DeepLinkDispatchDelay < 0 {
		return fmt.Errorf("DEEPLINK_DISPATCH_DELAY must not be negative, got %s", c.DeepLinkDispatchDelay)
	}
	switch c.DeepLinkSource {
	case SourceNative:
	case SourceWeb:
		if len(c.DeepLinkWebHosts) == 0 {
			return fmt.Errorf("DEEPLINK_WEB_HOSTS must list the web app hosts when DEEPLINK_SOURCE is %q", SourceWeb)
		}
		if c.DeepLinkPageTimeout <= 0 {
			return fmt.Errorf("DEEPLINK_PAGE_TIMEOUT must be positive, got %s", c.DeepLinkPageTimeout)
		}
	default:
		return fmt.Errorf("DEEPLINK_SOURCE must be %q or %q, got %q", SourceNative, SourceWeb, c.DeepLinkSource)
	}
	return nil
}
