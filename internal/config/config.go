package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultLineAPIURL     = "https://api.line.me"
	DefaultLineDataAPIURL = "https://api-data.line.me"
	DefaultAIBaseURL      = "https://api.dify.ai/v1"
	DefaultStorageBucket  = "hookline-media"

	DefaultForwardTimeoutSeconds  = 10
	DefaultUpstreamTimeoutSeconds = 10
	DefaultAITimeoutSeconds       = 30
	DefaultURLTTLSeconds          = 900
	DefaultSweepIntervalSeconds   = 600
	DefaultStagedMaxAgeSeconds    = 3600
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Line    LineConfig    `toml:"line"`
	Forward ForwardConfig `toml:"forward"`
	AI      AIConfig      `toml:"ai"`
	Storage StorageConfig `toml:"storage"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LineConfig holds the upstream platform credentials and endpoints. The
// channel secret signs webhook callbacks; the channel token authenticates
// content downloads and replies.
type LineConfig struct {
	ChannelSecret  string `toml:"channel_secret" validate:"required"`
	ChannelToken   string `toml:"channel_token" validate:"required"`
	APIBaseURL     string `toml:"api_base_url" validate:"omitempty,url"`
	DataAPIBaseURL string `toml:"data_api_base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"omitempty,min=1"`
}

func (c LineConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, DefaultUpstreamTimeoutSeconds)
}

// DestinationConfig describes one downstream receiver of forwarded webhook
// bodies.
type DestinationConfig struct {
	URL              string `toml:"url" validate:"required,url"`
	IncludeSignature bool   `toml:"include_signature"`
}

type ForwardConfig struct {
	Primary        DestinationConfig `toml:"primary"`
	Secondary      DestinationConfig `toml:"secondary"`
	TimeoutSeconds int               `toml:"timeout_seconds" validate:"omitempty,min=1"`
}

func (c ForwardConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, DefaultForwardTimeoutSeconds)
}

type AIConfig struct {
	BaseURL        string `toml:"base_url" validate:"omitempty,url"`
	APIKey         string `toml:"api_key" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"omitempty,min=1"`
}

func (c AIConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, DefaultAITimeoutSeconds)
}

// StorageConfig holds the S3-compatible staging store settings. Leaving the
// endpoint or credentials empty disables media staging.
type StorageConfig struct {
	Endpoint             string `toml:"endpoint"`
	AccessKey            string `toml:"access_key"`
	SecretKey            string `toml:"secret_key"`
	Bucket               string `toml:"bucket"`
	UseTLS               bool   `toml:"use_tls"`
	URLTTLSeconds        int    `toml:"url_ttl_seconds" validate:"omitempty,min=1"`
	SweepIntervalSeconds int    `toml:"sweep_interval_seconds" validate:"omitempty,min=1"`
	MaxAgeSeconds        int    `toml:"max_age_seconds" validate:"omitempty,min=1"`
}

func (c StorageConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != ""
}

func (c StorageConfig) URLTTL() time.Duration {
	return secondsOrDefault(c.URLTTLSeconds, DefaultURLTTLSeconds)
}

func (c StorageConfig) SweepInterval() time.Duration {
	return secondsOrDefault(c.SweepIntervalSeconds, DefaultSweepIntervalSeconds)
}

func (c StorageConfig) MaxAge() time.Duration {
	return secondsOrDefault(c.MaxAgeSeconds, DefaultStagedMaxAgeSeconds)
}

func secondsOrDefault(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// Load reads configuration from path (or DefaultConfigPath), layering file
// values over defaults and environment overrides over both. A missing file is
// not an error; the relay can run on environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Line: LineConfig{
			APIBaseURL:     DefaultLineAPIURL,
			DataAPIBaseURL: DefaultLineDataAPIURL,
			TimeoutSeconds: DefaultUpstreamTimeoutSeconds,
		},
		Forward: ForwardConfig{
			Primary:        DestinationConfig{IncludeSignature: true},
			Secondary:      DestinationConfig{IncludeSignature: false},
			TimeoutSeconds: DefaultForwardTimeoutSeconds,
		},
		AI: AIConfig{
			BaseURL:        DefaultAIBaseURL,
			TimeoutSeconds: DefaultAITimeoutSeconds,
		},
		Storage: StorageConfig{
			Bucket:               DefaultStorageBucket,
			URLTTLSeconds:        DefaultURLTTLSeconds,
			SweepIntervalSeconds: DefaultSweepIntervalSeconds,
			MaxAgeSeconds:        DefaultStagedMaxAgeSeconds,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.Line.ChannelSecret, "LINE_CHANNEL_SECRET")
	overrideString(&cfg.Line.ChannelToken, "LINE_CHANNEL_ACCESS_TOKEN")
	overrideString(&cfg.Forward.Primary.URL, "PRIMARY_FORWARD_URL")
	overrideString(&cfg.Forward.Secondary.URL, "SECONDARY_FORWARD_URL")
	overrideString(&cfg.AI.APIKey, "AI_API_KEY")
	overrideString(&cfg.AI.BaseURL, "AI_BASE_URL")
	overrideString(&cfg.Server.Addr, "HOOKLINE_ADDR")
	overrideString(&cfg.Log.Level, "HOOKLINE_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "HOOKLINE_LOG_FORMAT")
	overrideString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	overrideString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	overrideString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	overrideString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// MissingSettings reports the required settings that are still empty, in a
// stable order suitable for health output. The storage section is optional
// and never appears here.
func (c Config) MissingSettings() []string {
	checks := []struct {
		name  string
		value string
	}{
		{"line.channel_secret", c.Line.ChannelSecret},
		{"line.channel_token", c.Line.ChannelToken},
		{"forward.primary.url", c.Forward.Primary.URL},
		{"forward.secondary.url", c.Forward.Secondary.URL},
		{"ai.api_key", c.AI.APIKey},
	}
	var missing []string
	for _, check := range checks {
		if strings.TrimSpace(check.value) == "" {
			missing = append(missing, check.name)
		}
	}
	return missing
}

// Validate checks field formats beyond presence, such as URL shape.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}
