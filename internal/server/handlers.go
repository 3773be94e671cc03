package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dkozlov/pulseboard/internal/cache"
	"github.com/dkozlov/pulseboard/internal/model"
)

const (
	defaultChartDays  = 7
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// cityFromID recovers the upstream query string from a path id
// ("new-york" -> "new york").
func cityFromID(cityID string) string {
	return strings.ReplaceAll(strings.ToLower(cityID), "-", " ")
}

func (s *Server) handleWeatherList(w http.ResponseWriter, r *http.Request) {
	key := cache.Key("weather", "all")
	s.serveCached(w, r, key, cache.ClassLive, func(ctx context.Context) (any, error) {
		conditions := make([]model.CityConditions, len(s.cities))

		g, gctx := errgroup.WithContext(ctx)
		for i, city := range s.cities {
			g.Go(func() error {
				c, err := s.weather.CurrentByCity(gctx, city)
				if err != nil {
					return err
				}
				conditions[i] = c
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		return conditions, nil
	})
}

func (s *Server) handleWeatherCity(w http.ResponseWriter, r *http.Request) {
	cityID := r.PathValue("cityId")

	key := cache.Key("weather", cityID)
	s.serveCached(w, r, key, cache.ClassLive, func(ctx context.Context) (any, error) {
		return s.weather.CurrentByCity(ctx, cityFromID(cityID))
	})
}

func (s *Server) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	cityID := r.PathValue("cityId")

	key := cache.Key("weather_history", cityID)
	s.serveCached(w, r, key, cache.ClassHistorical, func(ctx context.Context) (any, error) {
		current, err := s.weather.CurrentByCity(ctx, cityFromID(cityID))
		if err != nil {
			return nil, err
		}

		forecast, err := s.weather.Forecast(ctx, current.Lat, current.Lon)
		if err != nil {
			return nil, err
		}

		return model.WeatherHistory{
			ID:   current.ID,
			Name: current.Name,
			Current: model.CurrentSummary{
				Temp:      current.Temp,
				Humidity:  current.Humidity,
				Condition: current.Condition,
				Icon:      current.Icon,
				WindSpeed: current.WindSpeed,
			},
			Forecast: forecast,
		}, nil
	})
}

func (s *Server) handleAirPollution(w http.ResponseWriter, r *http.Request) {
	cityID := r.PathValue("cityId")
	city := cityFromID(cityID)

	key := cache.Key("air_pollution", cityID)
	s.serveCached(w, r, key, cache.ClassLive, func(ctx context.Context) (any, error) {
		lat, lon, err := s.weather.Geocode(ctx, city)
		if err != nil {
			return nil, err
		}

		aqi, components, err := s.weather.AirPollution(ctx, lat, lon)
		if err != nil {
			return nil, err
		}

		return model.AirQuality{
			City:       city,
			AQI:        aqi,
			Components: components,
		}, nil
	})
}

func (s *Server) handleCryptoList(w http.ResponseWriter, r *http.Request) {
	key := cache.Key("crypto", "all")
	s.serveCached(w, r, key, cache.ClassLive, func(ctx context.Context) (any, error) {
		ids := make([]string, 0, len(s.instruments))
		for _, inst := range s.instruments {
			ids = append(ids, inst.ID)
		}
		return s.crypto.Markets(ctx, ids)
	})
}

func (s *Server) handleCryptoDetail(w http.ResponseWriter, r *http.Request) {
	cryptoID := r.PathValue("cryptoId")

	key := cache.Key("crypto", cryptoID)
	s.serveCached(w, r, key, cache.ClassLive, func(ctx context.Context) (any, error) {
		return s.crypto.CoinDetail(ctx, cryptoID)
	})
}

func (s *Server) handleCryptoHistory(w http.ResponseWriter, r *http.Request) {
	cryptoID := r.PathValue("cryptoId")

	days, ok := parseDays(r.URL.Query().Get("days"))
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	key := cache.Key("crypto_history", cryptoID, strconv.Itoa(days))
	s.serveCached(w, r, key, cache.ClassHistorical, func(ctx context.Context) (any, error) {
		return s.crypto.MarketChart(ctx, cryptoID, days)
	})
}

func (s *Server) handleCryptoChart(w http.ResponseWriter, r *http.Request) {
	cryptoID := r.URL.Query().Get("cryptoId")
	if cryptoID == "" {
		cryptoID = "bitcoin"
	}

	days, ok := parseDays(r.URL.Query().Get("days"))
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	key := cache.Key("crypto_chart", cryptoID, strconv.Itoa(days))
	s.serveCached(w, r, key, cache.ClassHistorical, func(ctx context.Context) (any, error) {
		return s.crypto.MarketChartRaw(ctx, cryptoID, days)
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	key := cache.Key("news", "top")
	s.serveCached(w, r, key, cache.ClassNews, func(ctx context.Context) (any, error) {
		return s.news.TopHeadlines(ctx)
	})
}

func (s *Server) handleNewsSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	size := defaultSearchSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchSize {
			writeError(w, http.StatusBadRequest, "size must be between 1 and 50")
			return
		}
		size = n
	}

	language := r.URL.Query().Get("language")
	if language == "" {
		language = "en"
	}

	key := cache.Key("news_search", query, strconv.Itoa(size), language)
	s.serveCached(w, r, key, cache.ClassNews, func(ctx context.Context) (any, error) {
		return s.news.Search(ctx, query, size, language)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":        "ok",
		"cache_entries": s.cache.Len(),
	}

	if s.health.StreamState != nil {
		state := s.health.StreamState()
		resp["stream"] = state
		if state == "disconnected" {
			resp["status"] = "degraded"
		}
	}
	if s.health.PriceCount != nil {
		resp["prices"] = s.health.PriceCount()
	}
	if s.health.ClientCount != nil {
		resp["clients"] = s.health.ClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseDays validates the days query parameter, defaulting when absent.
func parseDays(raw string) (int, bool) {
	if raw == "" {
		return defaultChartDays, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
