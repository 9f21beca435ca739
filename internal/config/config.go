package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups in minimal containers

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fxwatch/internal/domain"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables;
// nested keys map to upper-case env names with '.' replaced by '_'
// (llm.api_key -> LLM_API_KEY).
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Watch    WatchConfig    `mapstructure:"watch"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Email    EmailConfig    `mapstructure:"email"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	NATS     NATSConfig     `mapstructure:"nats"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Sources  SourcesConfig  `mapstructure:"sources"`

	// Timezone is the IANA zone used for the daily briefing and calendar days.
	Timezone string `mapstructure:"timezone"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type StorageConfig struct {
	Path         string `mapstructure:"path"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// BriefingTime is the wall-clock "HH:MM" of the daily briefing.
	BriefingTime string `mapstructure:"briefing_time"`
}

// LLMConfig points at an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`

	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
}

// Enabled reports whether AI features can be used.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

type EmailConfig struct {
	To           []string `mapstructure:"to"`
	From         string   `mapstructure:"from"`
	ResendAPIKey string   `mapstructure:"resend_api_key"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScraperConfig selects the full-page article extractor.
type ScraperConfig struct {
	// Mode is "http" (plain fetch + DOM heuristics) or "rod" (headless browser).
	Mode      string        `mapstructure:"mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type CalendarConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SourcesConfig struct {
	// Disabled lists built-in source ids that must not be registered.
	Disabled []string    `mapstructure:"disabled"`
	RSS      []RSSSource `mapstructure:"rss"`
}

// RSSSource declares an additional feed-backed source.
type RSSSource struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
	Kind string `mapstructure:"kind"`
	// Match keeps only items whose title contains it, ignoring case.
	Match string `mapstructure:"match"`
}

const (
	DefaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultCalendarURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.xml"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("storage.path", "./badger_data")
	v.SetDefault("storage.history_limit", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("watch.interval", 30*time.Minute)
	v.SetDefault("watch.briefing_time", "08:00")
	v.SetDefault("timezone", "Europe/Paris")
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_backoff", 500*time.Millisecond)
	v.SetDefault("llm.retry_max_delay", 30*time.Second)
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.from", "FX Watch <onboarding@resend.dev>")
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "fxwatch.articles")
	v.SetDefault("http.addr", "")
	v.SetDefault("scraper.mode", "http")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.user_agent", DefaultUserAgent)
	v.SetDefault("calendar.url", DefaultCalendarURL)
	v.SetDefault("calendar.timeout", 10*time.Second)
	v.SetDefault("sources.disabled", []string{})
}

// LoadConfig reads configuration from a config file, a .env file and the
// environment. path is either a directory holding config.yaml or a file.
func LoadConfig(path string) (Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	// Legacy variable names.
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("email.resend_api_key", "EMAIL_RESEND_API_KEY", "RESEND_API_KEY")
	_ = v.BindEnv("email.to", "EMAIL_TO", "EMAIL_RECIPIENTS")

	if err := v.ReadInConfig(); err != nil {
		// Env vars alone are a valid setup; only a broken file is an error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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

// Validate checks values that do not depend on which command runs.
// Credentials are checked lazily with Require* by the features that need them.
func (c *Config) Validate() error {
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	if _, err := time.Parse("15:04", c.Watch.BriefingTime); err != nil {
		return fmt.Errorf("watch.briefing_time must be HH:MM, got %q", c.Watch.BriefingTime)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	switch c.Scraper.Mode {
	case "http", "rod":
	default:
		return fmt.Errorf("scraper.mode must be http or rod, got %q", c.Scraper.Mode)
	}
	for i, src := range c.Sources.RSS {
		if src.ID == "" || src.URL == "" {
			return fmt.Errorf("sources.rss[%d]: id and url are required", i)
		}
		if src.Kind != "" && !domain.SourceKind(src.Kind).Valid() {
			return fmt.Errorf("sources.rss[%d]: unknown kind %q", i, src.Kind)
		}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./badger_data"
		fmt.Fprintln(os.Stderr, "storage.path not set, using default:", c.Storage.Path)
	}
	return nil
}

// Location returns the configured time zone. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RequireTelegram fails when the bot token is missing.
func (c Config) RequireTelegram(feature string) error {
	if c.Telegram.BotToken == "" {
		return &domain.ConfigError{Key: "TELEGRAM_BOT_TOKEN", Feature: feature}
	}
	return nil
}

// RequireLLM fails when no LLM API key is configured.
func (c Config) RequireLLM(feature string) error {
	if !c.LLM.Enabled() {
		return &domain.ConfigError{Key: "LLM_API_KEY", Feature: feature}
	}
	return nil
}

// EmailEnabled reports whether a newsletter can be sent at all.
func (c Config) EmailEnabled() bool {
	return len(c.Email.To) > 0 && (c.Email.ResendAPIKey != "" || c.SMTP.Host != "")
}
