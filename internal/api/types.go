package api

// Upstream response shapes. Only the fields the proxy endpoints serve are
// decoded; everything else in the upstream payload is ignored.

// -----------------------------------------------------------------------------
// CoinGecko
// -----------------------------------------------------------------------------

// simplePriceEntry is one currency block in a /simple/price response.
type simplePriceEntry struct {
	USD          float64  `json:"usd"`
	USDChange24h *float64 `json:"usd_24h_change"`
}

// geckoMarket is one row in a /coins/markets response.
type geckoMarket struct {
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

// geckoCoin is a /coins/{id} response.
type geckoCoin struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description struct {
		EN string `json:"en"`
	} `json:"description"`
	HashingAlgorithm *string `json:"hashing_algorithm"`
	Image            struct {
		Large string `json:"large"`
	} `json:"image"`
	Links struct {
		Homepage       []string `json:"homepage"`
		BlockchainSite []string `json:"blockchain_site"`
	} `json:"links"`
	MarketData       *geckoMarketData `json:"market_data"`
	GenesisDate      *string          `json:"genesis_date"`
	SentimentUpPct   *float64         `json:"sentiment_votes_up_percentage"`
	SentimentDownPct *float64         `json:"sentiment_votes_down_percentage"`
	LastUpdated      string           `json:"last_updated"`
}

// geckoMarketData is the nested market_data block of a /coins/{id} response.
// Prices come keyed by currency; the proxy flattens them to USD.
type geckoMarketData struct {
	CurrentPrice             map[string]float64 `json:"current_price"`
	MarketCap                map[string]float64 `json:"market_cap"`
	TotalVolume              map[string]float64 `json:"total_volume"`
	High24h                  map[string]float64 `json:"high_24h"`
	Low24h                   map[string]float64 `json:"low_24h"`
	PriceChangePercentage24h *float64           `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  *float64           `json:"price_change_percentage_7d"`
	PriceChangePercentage30d *float64           `json:"price_change_percentage_30d"`
	PriceChangePercentage1y  *float64           `json:"price_change_percentage_1y"`
	TotalSupply              *float64           `json:"total_supply"`
}

// geckoChart is a /coins/{id}/market_chart response. Each sample is a
// [timestamp_ms, value] pair.
type geckoChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// -----------------------------------------------------------------------------
// OpenWeather
// -----------------------------------------------------------------------------

// owmWeather is a /data/2.5/weather response.
type owmWeather struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Main string `json:"main"`
		Icon string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		TempMin  float64 `json:"temp_min"`
		TempMax  float64 `json:"temp_max"`
		Pressure int     `json:"pressure"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

// owmForecast is a /data/2.5/forecast response.
type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

// owmGeo is one entry in a /geo/1.0/direct response.
type owmGeo struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// owmAirPollution is a /data/2.5/air_pollution response.
type owmAirPollution struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// -----------------------------------------------------------------------------
// NewsData
// -----------------------------------------------------------------------------

// newsResponse is a /news response.
type newsResponse struct {
	Status  string        `json:"status"`
	Results []newsArticle `json:"results"`
}

// newsArticle is one article in a NewsData response.
type newsArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SourceID    string   `json:"source_id"`
	Link        string   `json:"link"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	Keywords    []string `json:"keywords"`
}
