package api

import (
	"strings"

	"github.com/dkozlov/pulseboard/internal/model"
)

// Conversion from upstream response shapes to canonical model types.

// cityID derives the stable city identifier used in proxy responses.
func cityID(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "-")
}

func toCityConditions(city string, raw owmWeather) model.CityConditions {
	cond := model.CityConditions{
		ID:            cityID(city),
		Name:          city,
		Temp:          raw.Main.Temp,
		MinTemp:       raw.Main.TempMin,
		MaxTemp:       raw.Main.TempMax,
		Humidity:      raw.Main.Humidity,
		Pressure:      raw.Main.Pressure,
		Condition:     raw.Weather[0].Main,
		Icon:          raw.Weather[0].Icon,
		WindSpeed:     raw.Wind.Speed,
		WindDirection: raw.Wind.Deg,
		Sunrise:       raw.Sys.Sunrise,
		Sunset:        raw.Sys.Sunset,
		Lat:           raw.Coord.Lat,
		Lon:           raw.Coord.Lon,
	}

	// Widen narrow min/max spreads so the dashboard's range bar stays legible.
	if cond.MaxTemp-cond.MinTemp < 4 {
		cond.MaxTemp += 4
		cond.MinTemp -= 1.5
	}

	return cond
}

func toCoinMarket(raw geckoMarket) model.CoinMarket {
	return model.CoinMarket{
		ID:                       raw.ID,
		Symbol:                   raw.Symbol,
		Name:                     raw.Name,
		CurrentPrice:             raw.CurrentPrice,
		High24h:                  raw.High24h,
		Low24h:                   raw.Low24h,
		PriceChangePercentage24h: raw.PriceChangePercentage24h,
		PriceChangePercentage7d:  raw.PriceChangePercentage7d,
		MarketCap:                raw.MarketCap,
		Image:                    raw.Image,
		LastUpdated:              raw.LastUpdated,
	}
}

func toCoinDetail(raw geckoCoin) model.CoinDetail {
	detail := model.CoinDetail{
		ID:               raw.ID,
		Symbol:           raw.Symbol,
		Name:             raw.Name,
		Description:      raw.Description.EN,
		HashingAlgorithm: raw.HashingAlgorithm,
		Image:            raw.Image.Large,
		GenesisDate:      raw.GenesisDate,
		SentimentUpPct:   raw.SentimentUpPct,
		SentimentDownPct: raw.SentimentDownPct,
		LastUpdated:      raw.LastUpdated,
	}

	if len(raw.Links.Homepage) > 0 {
		detail.Homepage = raw.Links.Homepage[0]
	}
	if len(raw.Links.BlockchainSite) > 0 {
		detail.BlockchainSite = raw.Links.BlockchainSite[0]
	}

	if md := raw.MarketData; md != nil {
		detail.MarketData = model.MarketData{
			CurrentPrice:             usdValue(md.CurrentPrice),
			MarketCap:                usdValue(md.MarketCap),
			TotalVolume:              usdValue(md.TotalVolume),
			High24h:                  usdValue(md.High24h),
			Low24h:                   usdValue(md.Low24h),
			PriceChangePercentage24h: md.PriceChangePercentage24h,
			PriceChangePercentage7d:  md.PriceChangePercentage7d,
			PriceChangePercentage30d: md.PriceChangePercentage30d,
			PriceChangePercentage1y:  md.PriceChangePercentage1y,
		}
		detail.TotalSupply = md.TotalSupply
	}

	return detail
}

// usdValue extracts the USD entry from a currency-keyed price map.
func usdValue(m map[string]float64) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m["usd"]
	if !ok {
		return nil
	}
	return &v
}

func toMarketChart(id string, days int, raw geckoChart) model.MarketChart {
	chart := model.MarketChart{
		ID:           id,
		Days:         days,
		Prices:       make([]model.ChartPrice, 0, len(raw.Prices)),
		MarketCaps:   make([]model.ChartCap, 0, len(raw.MarketCaps)),
		TotalVolumes: make([]model.ChartVol, 0, len(raw.TotalVolumes)),
	}

	for _, p := range raw.Prices {
		chart.Prices = append(chart.Prices, model.ChartPrice{
			Timestamp: int64(p[0]),
			Price:     p[1],
		})
	}
	for _, c := range raw.MarketCaps {
		chart.MarketCaps = append(chart.MarketCaps, model.ChartCap{
			Timestamp: int64(c[0]),
			MarketCap: c[1],
		})
	}
	for _, v := range raw.TotalVolumes {
		chart.TotalVolumes = append(chart.TotalVolumes, model.ChartVol{
			Timestamp: int64(v[0]),
			Volume:    v[1],
		})
	}

	return chart
}

func toArticle(raw newsArticle, search bool) model.Article {
	article := model.Article{
		Title:       raw.Title,
		Description: raw.Description,
		Source:      raw.SourceID,
		URL:         raw.Link,
		PublishedAt: raw.PubDate,
		Image:       raw.ImageURL,
	}

	if search {
		article.Keywords = raw.Keywords
		if article.Keywords == nil {
			article.Keywords = []string{}
		}
		// NewsData's free tier carries no sentiment field.
		article.Sentiment = "neutral"
	}

	return article
}
