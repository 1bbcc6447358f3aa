package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"contently/internal/scraper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	RapidAPIKey     string        `mapstructure:"RAPIDAPI_KEY"`
	ScraperEndpoint string        `mapstructure:"SCRAPER_ENDPOINT"`
	ScraperHost     string        `mapstructure:"SCRAPER_HOST"`
	ScraperTimeout  time.Duration `mapstructure:"SCRAPER_TIMEOUT"`

	HTTPAddr   string `mapstructure:"HTTP_ADDR"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	AppVersion string `mapstructure:"APP_VERSION"`

	BadgerDBPath string        `mapstructure:"BADGERDB_PATH"`
	ResultTTL    time.Duration `mapstructure:"RESULT_TTL"`

	PreviewRunes int `mapstructure:"PREVIEW_RUNES"`
	PreviewLines int `mapstructure:"PREVIEW_LINES"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Proxies whose X-Forwarded-For is believed. Empty means none.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	// Optional; the Telegram front end only starts when set.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
}

var defaults = map[string]any{
	"RAPIDAPI_KEY":       "",
	"SCRAPER_ENDPOINT":   scraper.DefaultEndpoint,
	"SCRAPER_HOST":       scraper.DefaultHost,
	"SCRAPER_TIMEOUT":    "0s",
	"HTTP_ADDR":          ":8080",
	"LOG_LEVEL":          "info",
	"APP_VERSION":        "dev",
	"BADGERDB_PATH":      "./badger_data",
	"RESULT_TTL":         "1h",
	"PREVIEW_RUNES":      1200,
	"PREVIEW_LINES":      20,
	"RATE_LIMIT_RPS":     0,
	"RATE_LIMIT_BURST":   5,
	"TRUSTED_PROXIES":    []string{},
	"TELEGRAM_BOT_TOKEN": "",
}

// LoadConfig reads config.yaml from path, if present, and the environment.
// Environment variables win over the file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Every key needs a default so Unmarshal sees env-only values.
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RapidAPIKey) == "" {
		return fmt.Errorf("RAPIDAPI_KEY is not set")
	}
	if c.ScraperEndpoint == "" {
		return fmt.Errorf("SCRAPER_ENDPOINT must not be empty")
	}
	if c.ScraperTimeout < 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
