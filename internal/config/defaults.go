package config

import (
	"time"

	"github.com/dkozlov/pulseboard/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second

	DefaultCoinGeckoURL    = "https://api.coingecko.com/api/v3"
	DefaultOpenWeatherURL  = "https://api.openweathermap.org"
	DefaultNewsDataURL     = "https://newsdata.io/api/1"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxRetries      = 3

	DefaultStreamURL            = "wss://stream.binance.com:9443/ws"
	DefaultSubscribeTimeout     = 10 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultMessageBufferSize    = 1000

	DefaultPollInterval = 5 * time.Minute
	DefaultPollTimeout  = 10 * time.Second

	DefaultLiveTTL       = 60 * time.Second
	DefaultHistoricalTTL = 5 * time.Minute
	DefaultNewsTTL       = 15 * time.Minute

	DefaultAlertThreshold = 0.005 // 0.5%
)

// DefaultInstruments is the fixed instrument list tracked when none is configured.
var DefaultInstruments = []model.Instrument{
	{ID: "bitcoin", Pair: "btcusdt"},
	{ID: "ethereum", Pair: "ethusdt"},
	{ID: "dogecoin", Pair: "dogeusdt"},
}

// DefaultCities is the fixed city list served by the aggregate weather endpoint.
var DefaultCities = []string{"New York", "London", "Tokyo"}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Upstream defaults
	if c.Upstream.CoinGeckoURL == "" {
		c.Upstream.CoinGeckoURL = DefaultCoinGeckoURL
	}
	if c.Upstream.OpenWeatherURL == "" {
		c.Upstream.OpenWeatherURL = DefaultOpenWeatherURL
	}
	if c.Upstream.NewsDataURL == "" {
		c.Upstream.NewsDataURL = DefaultNewsDataURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.SubscribeTimeout == 0 {
		c.Stream.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.MessageBufferSize == 0 {
		c.Stream.MessageBufferSize = DefaultMessageBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Cache defaults
	if c.Cache.LiveTTL == 0 {
		c.Cache.LiveTTL = DefaultLiveTTL
	}
	if c.Cache.HistoricalTTL == 0 {
		c.Cache.HistoricalTTL = DefaultHistoricalTTL
	}
	if c.Cache.NewsTTL == 0 {
		c.Cache.NewsTTL = DefaultNewsTTL
	}

	// Alerts defaults
	if c.Alerts.Threshold == 0 {
		c.Alerts.Threshold = DefaultAlertThreshold
	}

	// Tracked instruments and cities
	if len(c.Instruments) == 0 {
		c.Instruments = append(c.Instruments, DefaultInstruments...)
	}
	if len(c.Cities) == 0 {
		c.Cities = append(c.Cities, DefaultCities...)
	}
}
