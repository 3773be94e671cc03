package config

import (
	"time"

	"github.com/dkozlov/pulseboard/internal/model"
)

// Config is the root configuration for a pulseboard instance.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Upstream    UpstreamConfig     `yaml:"upstream"`
	Stream      StreamConfig       `yaml:"stream"`
	Poller      PollerConfig       `yaml:"poller"`
	Cache       CacheConfig        `yaml:"cache"`
	Alerts      AlertsConfig       `yaml:"alerts"`
	Instruments []model.Instrument `yaml:"instruments"`
	Cities      []string           `yaml:"cities"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds third-party REST API settings.
type UpstreamConfig struct {
	CoinGeckoURL   string `yaml:"coingecko_url"`
	OpenWeatherURL string `yaml:"openweather_url"`
	NewsDataURL    string `yaml:"newsdata_url"`

	// API keys, normally supplied via ${OPENWEATHER_API_KEY} and
	// ${NEWSDATA_API_KEY} expansion. An empty key fails the first
	// upstream call, never startup.
	OpenWeatherKey string `yaml:"openweather_api_key"`
	NewsDataKey    string `yaml:"newsdata_api_key"`

	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds the push-feed connection settings.
type StreamConfig struct {
	URL                  string        `yaml:"url"`
	SubscribeTimeout     time.Duration `yaml:"subscribe_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	MessageBufferSize    int           `yaml:"message_buffer_size"`
}

// PollerConfig holds snapshot poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig holds per-class TTL overrides.
type CacheConfig struct {
	LiveTTL       time.Duration `yaml:"live_ttl"`
	HistoricalTTL time.Duration `yaml:"historical_ttl"`
	NewsTTL       time.Duration `yaml:"news_ttl"`
}

// AlertsConfig holds significant-move alert settings.
type AlertsConfig struct {
	// Threshold is the fractional price change that triggers an alert
	// (0.005 = 0.5%).
	Threshold float64 `yaml:"threshold"`
}
