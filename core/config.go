package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "https://api.renderlink.io"
	DefaultSignatureHeader = "X-Renderlink-Signature"

	DefaultPollIntervalMS = 2000
	DefaultTimeoutMS      = 60000
	MinTimeoutMS          = 5000
	MaxTimeoutMS          = 120000

	DefaultHTTPTimeoutMS = 30000
)

type PollingConfig struct {
	IntervalMS   int `koanf:"interval_ms" mapstructure:"interval_ms" yaml:"interval_ms"`
	TimeoutMS    int `koanf:"timeout_ms" mapstructure:"timeout_ms" yaml:"timeout_ms"`
	MinTimeoutMS int `koanf:"min_timeout_ms" mapstructure:"min_timeout_ms" yaml:"min_timeout_ms"`
	MaxTimeoutMS int `koanf:"max_timeout_ms" mapstructure:"max_timeout_ms" yaml:"max_timeout_ms"`
}

type HTTPConfig struct {
	TimeoutMS            int   `koanf:"timeout_ms" mapstructure:"timeout_ms" yaml:"timeout_ms"`
	MaxResponseBodyBytes int64 `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes" yaml:"max_response_body_bytes"`
}

type WebhookConfig struct {
	Secret string `koanf:"secret" mapstructure:"secret" yaml:"secret"`
	Header string `koanf:"header" mapstructure:"header" yaml:"header"`
	// ReplayWindowMS enables timestamp staleness checks when > 0.
	ReplayWindowMS int `koanf:"replay_window_ms" mapstructure:"replay_window_ms" yaml:"replay_window_ms"`
}

// CacheConfig enables caching of finished render snapshots when
// StatusTTLMS > 0.
type CacheConfig struct {
	StatusTTLMS int `koanf:"status_ttl_ms" mapstructure:"status_ttl_ms" yaml:"status_ttl_ms"`
}

type Config struct {
	BaseURL   string        `koanf:"base_url" mapstructure:"base_url" yaml:"base_url"`
	APIKey    string        `koanf:"api_key" mapstructure:"api_key" yaml:"api_key"`
	APISecret string        `koanf:"api_secret" mapstructure:"api_secret" yaml:"api_secret"`
	SignLinks bool          `koanf:"sign_links" mapstructure:"sign_links" yaml:"sign_links"`
	Polling   PollingConfig `koanf:"polling" mapstructure:"polling" yaml:"polling"`
	HTTP      HTTPConfig    `koanf:"http" mapstructure:"http" yaml:"http"`
	Webhook   WebhookConfig `koanf:"webhook" mapstructure:"webhook" yaml:"webhook"`
	Cache     CacheConfig   `koanf:"cache" mapstructure:"cache" yaml:"cache"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Polling: PollingConfig{
			IntervalMS:   DefaultPollIntervalMS,
			TimeoutMS:    DefaultTimeoutMS,
			MinTimeoutMS: MinTimeoutMS,
			MaxTimeoutMS: MaxTimeoutMS,
		},
		HTTP: HTTPConfig{
			TimeoutMS:            DefaultHTTPTimeoutMS,
			MaxResponseBodyBytes: 10 << 20,
		},
		Webhook: WebhookConfig{
			Header: DefaultSignatureHeader,
		},
	}
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return fmt.Errorf("core: base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("core: base_url %q is invalid", base)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("core: api_key is required")
	}
	if c.SignLinks && strings.TrimSpace(c.APISecret) == "" {
		return fmt.Errorf("core: api_secret is required when sign_links is enabled")
	}
	if c.Polling.IntervalMS < 0 {
		return fmt.Errorf("core: polling.interval_ms must not be negative")
	}
	if c.Polling.MinTimeoutMS > 0 && c.Polling.MaxTimeoutMS > 0 && c.Polling.MinTimeoutMS > c.Polling.MaxTimeoutMS {
		return fmt.Errorf("core: polling.min_timeout_ms must not exceed polling.max_timeout_ms")
	}
	if c.Webhook.ReplayWindowMS < 0 {
		return fmt.Errorf("core: webhook.replay_window_ms must not be negative")
	}
	if c.Cache.StatusTTLMS < 0 {
		return fmt.Errorf("core: cache.status_ttl_ms must not be negative")
	}
	return nil
}

// NormalizedBaseURL returns the base url without trailing slashes.
func (c Config) NormalizedBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

func (c Config) PollInterval() time.Duration {
	if c.Polling.IntervalMS <= 0 {
		return DefaultPollIntervalMS * time.Millisecond
	}
	return time.Duration(c.Polling.IntervalMS) * time.Millisecond
}

func (c Config) DefaultTimeout() time.Duration {
	if c.Polling.TimeoutMS <= 0 {
		return DefaultTimeoutMS * time.Millisecond
	}
	return time.Duration(c.Polling.TimeoutMS) * time.Millisecond
}

// TimeoutBounds returns the accepted inclusive deadline range for polling.
func (c Config) TimeoutBounds() (time.Duration, time.Duration) {
	minimum := c.Polling.MinTimeoutMS
	if minimum <= 0 {
		minimum = MinTimeoutMS
	}
	maximum := c.Polling.MaxTimeoutMS
	if maximum <= 0 {
		maximum = MaxTimeoutMS
	}
	return time.Duration(minimum) * time.Millisecond, time.Duration(maximum) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	if c.HTTP.TimeoutMS <= 0 {
		return DefaultHTTPTimeoutMS * time.Millisecond
	}
	return time.Duration(c.HTTP.TimeoutMS) * time.Millisecond
}

func (c Config) SignatureHeader() string {
	if header := strings.TrimSpace(c.Webhook.Header); header != "" {
		return header
	}
	return DefaultSignatureHeader
}

func (c Config) ReplayWindow() time.Duration {
	if c.Webhook.ReplayWindowMS <= 0 {
		return 0
	}
	return time.Duration(c.Webhook.ReplayWindowMS) * time.Millisecond
}

func (c Config) StatusCacheTTL() time.Duration {
	if c.Cache.StatusTTLMS <= 0 {
		return 0
	}
	return time.Duration(c.Cache.StatusTTLMS) * time.Millisecond
}
