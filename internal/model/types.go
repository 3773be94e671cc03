package model

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Price State Types
// -----------------------------------------------------------------------------

// Source identifies where a price value came from.
type Source string

const (
	// SourceSnapshot marks a value from a periodic REST pull.
	SourceSnapshot Source = "snapshot"

	// SourceStream marks a value from the live push feed.
	SourceStream Source = "stream"
)

// Instrument pairs a CoinGecko coin id with its Binance trading pair.
type Instrument struct {
	ID   string `yaml:"id" json:"id"`     // CoinGecko id (e.g., "bitcoin")
	Pair string `yaml:"pair" json:"pair"` // Binance pair (e.g., "btcusdt")
}

// Symbol returns the canonical upper-case pair id (e.g., "BTCUSDT").
func (i Instrument) Symbol() string {
	return strings.ToUpper(i.Pair)
}

// Channel returns the Binance stream channel name for this instrument.
func (i Instrument) Channel() string {
	return strings.ToLower(i.Pair) + "@ticker"
}

// InstrumentPrice is the reconciled per-instrument price state.
type InstrumentPrice struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	PreviousPrice    *float64  `json:"previous_price"`     // nil until a second value is seen
	PercentChange24h *float64  `json:"percent_change_24h"` // nil when upstream omits it
	LastUpdated      time.Time `json:"last_updated"`
	Source           Source    `json:"source"`

	// Stale is set when the streaming subsystem has exhausted reconnect
	// attempts; a stale STREAM value yields authority back to snapshots.
	Stale bool `json:"stale,omitempty"`
}

// PriceTick is a normalized price event from the push feed.
type PriceTick struct {
	Symbol           string    // Canonical upper-case pair id
	Price            float64   // Last trade price
	PercentChange24h *float64  // 24h change percent, nil if absent
	EventTime        time.Time // Exchange event time
}

// SignificantMove is emitted when a price change crosses the alert threshold.
type SignificantMove struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousPrice float64   `json:"previous"`
	ChangePercent float64   `json:"change"`
	At            time.Time `json:"at"`
}

// -----------------------------------------------------------------------------
// Weather Types
// -----------------------------------------------------------------------------

// CityConditions holds current weather for one city.
type CityConditions struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Temp          float64 `json:"temp"`
	MinTemp       float64 `json:"minTemp"`
	MaxTemp       float64 `json:"maxTemp"`
	Humidity      int     `json:"humidity"`
	Pressure      int     `json:"pressure"`
	Condition     string  `json:"condition"`
	Icon          string  `json:"icon"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection int     `json:"windDirection"`
	Sunrise       int64   `json:"sunrise"`
	Sunset        int64   `json:"sunset"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
}

// ForecastEntry is one forecast slot in a weather history response.
type ForecastEntry struct {
	Date      int64   `json:"date"` // Milliseconds since epoch
	Temp      float64 `json:"temp"`
	Humidity  int     `json:"humidity"`
	Condition string  `json:"condition"`
}

// WeatherHistory combines current conditions with the upcoming forecast.
type WeatherHistory struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Current  CurrentSummary  `json:"current"`
	Forecast []ForecastEntry `json:"forecast"`
}

// CurrentSummary is the abbreviated current-conditions block in WeatherHistory.
type CurrentSummary struct {
	Temp      float64 `json:"temp"`
	Humidity  int     `json:"humidity"`
	Condition string  `json:"condition"`
	Icon      string  `json:"icon"`
	WindSpeed float64 `json:"windSpeed"`
}

// AirQuality holds the air pollution reading for one city.
type AirQuality struct {
	City       string             `json:"city"`
	AQI        int                `json:"aqi"` // 1 (good) to 5 (very poor)
	Components map[string]float64 `json:"components"`
}

// -----------------------------------------------------------------------------
// Crypto Market Types
// -----------------------------------------------------------------------------

// CoinMarket is a market summary row for the tracked instrument list.
type CoinMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             float64  `json:"current_price"`
	High24h                  float64  `json:"high_24h"`
	Low24h                   float64  `json:"low_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  *float64 `json:"price_change_percentage_7d"`
	MarketCap                float64  `json:"market_cap"`
	Image                    string   `json:"image"`
	LastUpdated              string   `json:"last_updated"`
}

// CoinDetail is the flattened detail object for a single coin.
type CoinDetail struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	HashingAlgorithm *string    `json:"hashing_algorithm"`
	Image            string     `json:"image"`
	MarketData       MarketData `json:"market_data"`
	Homepage         string     `json:"homepage"`
	GenesisDate      *string    `json:"genesis_date"`
	SentimentUpPct   *float64   `json:"sentiment_votes_up_percentage"`
	SentimentDownPct *float64   `json:"sentiment_votes_down_percentage"`
	BlockchainSite   string     `json:"blockchain_site"`
	TotalSupply      *float64   `json:"total_supply"`
	LastUpdated      string     `json:"last_updated"`
}

// MarketData holds USD-denominated market figures for a coin.
type MarketData struct {
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	High24h                  *float64 `json:"high_24h"`
	Low24h                   *float64 `json:"low_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  *float64 `json:"price_change_percentage_7d"`
	PriceChangePercentage30d *float64 `json:"price_change_percentage_30d"`
	PriceChangePercentage1y  *float64 `json:"price_change_percentage_1y"`
}

// MarketChart holds historical chart series for a coin.
type MarketChart struct {
	ID           string       `json:"id"`
	Days         int          `json:"days"`
	Prices       []ChartPrice `json:"prices"`
	MarketCaps   []ChartCap   `json:"market_caps"`
	TotalVolumes []ChartVol   `json:"total_volumes"`
}

// ChartPrice is one price sample in a MarketChart.
type ChartPrice struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// ChartCap is one market cap sample in a MarketChart.
type ChartCap struct {
	Timestamp int64   `json:"timestamp"`
	MarketCap float64 `json:"market_cap"`
}

// ChartVol is one volume sample in a MarketChart.
type ChartVol struct {
	Timestamp int64   `json:"timestamp"`
	Volume    float64 `json:"volume"`
}

// -----------------------------------------------------------------------------
// News Types
// -----------------------------------------------------------------------------

// Article is a normalized news article.
type Article struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	PublishedAt string   `json:"publishedAt"`
	Image       string   `json:"image"`
	Keywords    []string `json:"keywords,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
}
