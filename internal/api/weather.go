package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dkozlov/pulseboard/internal/model"
)

// OpenWeather provides access to the OpenWeather REST API.
type OpenWeather struct {
	c      *Client
	apiKey string
}

// NewOpenWeather creates an OpenWeather client. An empty API key is
// allowed at construction; calls fail with an unavailable error instead.
func NewOpenWeather(baseURL, apiKey string, opts ...ClientOption) *OpenWeather {
	return &OpenWeather{c: NewClient(baseURL, opts...), apiKey: apiKey}
}

func (w *OpenWeather) keyedQuery() (url.Values, error) {
	if w.apiKey == "" {
		return nil, unavailable("openweather api key not configured")
	}
	query := url.Values{}
	query.Set("appid", w.apiKey)
	return query, nil
}

// CurrentByCity fetches current conditions for a city by name.
func (w *OpenWeather) CurrentByCity(ctx context.Context, city string) (model.CityConditions, error) {
	query, err := w.keyedQuery()
	if err != nil {
		return model.CityConditions{}, err
	}
	query.Set("q", city)
	query.Set("units", "metric")

	var raw owmWeather
	if err := w.c.get(ctx, "/data/2.5/weather", query, &raw); err != nil {
		if IsNotFound(err) {
			return model.CityConditions{}, notFound("city %q not found", city)
		}
		return model.CityConditions{}, fmt.Errorf("current weather: %w", err)
	}
	if len(raw.Weather) == 0 {
		return model.CityConditions{}, malformed("weather response for %q missing conditions", city)
	}

	return toCityConditions(city, raw), nil
}

// Forecast fetches the 5-day forecast for the given coordinates.
func (w *OpenWeather) Forecast(ctx context.Context, lat, lon float64) ([]model.ForecastEntry, error) {
	query, err := w.keyedQuery()
	if err != nil {
		return nil, err
	}
	query.Set("lat", formatCoord(lat))
	query.Set("lon", formatCoord(lon))
	query.Set("units", "metric")

	var raw owmForecast
	if err := w.c.get(ctx, "/data/2.5/forecast", query, &raw); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	entries := make([]model.ForecastEntry, 0, len(raw.List))
	for _, slot := range raw.List {
		condition := ""
		if len(slot.Weather) > 0 {
			condition = slot.Weather[0].Main
		}
		entries = append(entries, model.ForecastEntry{
			Date:      slot.Dt * 1000, // Seconds to milliseconds
			Temp:      slot.Main.Temp,
			Humidity:  slot.Main.Humidity,
			Condition: condition,
		})
	}
	return entries, nil
}

// Geocode resolves a city name to coordinates.
func (w *OpenWeather) Geocode(ctx context.Context, city string) (lat, lon float64, err error) {
	query, err := w.keyedQuery()
	if err != nil {
		return 0, 0, err
	}
	query.Set("q", city)
	query.Set("limit", "1")

	var results []owmGeo
	if err := w.c.get(ctx, "/geo/1.0/direct", query, &results); err != nil {
		return 0, 0, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, notFound("city %q not found", city)
	}

	return results[0].Lat, results[0].Lon, nil
}

// AirPollution fetches the air pollution reading for the given coordinates.
func (w *OpenWeather) AirPollution(ctx context.Context, lat, lon float64) (aqi int, components map[string]float64, err error) {
	query, err := w.keyedQuery()
	if err != nil {
		return 0, nil, err
	}
	query.Set("lat", formatCoord(lat))
	query.Set("lon", formatCoord(lon))

	var raw owmAirPollution
	if err := w.c.get(ctx, "/data/2.5/air_pollution", query, &raw); err != nil {
		return 0, nil, fmt.Errorf("air pollution: %w", err)
	}
	if len(raw.List) == 0 {
		return 0, nil, malformed("air pollution response missing readings")
	}

	return raw.List[0].Main.AQI, raw.List[0].Components, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
