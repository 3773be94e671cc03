package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkozlov/pulseboard/internal/cache"
	"github.com/dkozlov/pulseboard/internal/model"
)

// WeatherSource provides current conditions, forecasts, and air quality.
type WeatherSource interface {
	CurrentByCity(ctx context.Context, city string) (model.CityConditions, error)
	Forecast(ctx context.Context, lat, lon float64) ([]model.ForecastEntry, error)
	Geocode(ctx context.Context, city string) (lat, lon float64, err error)
	AirPollution(ctx context.Context, lat, lon float64) (aqi int, components map[string]float64, err error)
}

// CryptoSource provides market summaries, coin detail, and chart data.
type CryptoSource interface {
	Markets(ctx context.Context, ids []string) ([]model.CoinMarket, error)
	CoinDetail(ctx context.Context, id string) (model.CoinDetail, error)
	MarketChart(ctx context.Context, id string, days int) (model.MarketChart, error)
	MarketChartRaw(ctx context.Context, id string, days int) (json.RawMessage, error)
}

// NewsSource provides crypto news headlines and search.
type NewsSource interface {
	TopHeadlines(ctx context.Context) ([]model.Article, error)
	Search(ctx context.Context, query string, size int, language string) ([]model.Article, error)
}

// Health reports component status for the health endpoint. Nil fields
// are reported as unavailable.
type Health struct {
	StreamState func() string
	PriceCount  func() int
	ClientCount func() int
}

// Config holds HTTP server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the HTTP frontend: the proxy endpoints, the health
// endpoint, and the browser WebSocket entry point.
type Server struct {
	cfg    Config
	logger *slog.Logger

	weather WeatherSource
	crypto  CryptoSource
	news    NewsSource
	cache   *cache.Cache
	health  Health

	instruments []model.Instrument
	cities      []string

	wsHandler http.Handler

	httpServer *http.Server
}

// Deps bundles the Server's collaborators.
type Deps struct {
	Weather     WeatherSource
	Crypto      CryptoSource
	News        NewsSource
	Cache       *cache.Cache
	Health      Health
	Instruments []model.Instrument
	Cities      []string
	WSHandler   http.Handler
}

// New creates a Server.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger.With("component", "server"),
		weather:     deps.Weather,
		crypto:      deps.Crypto,
		news:        deps.News,
		cache:       deps.Cache,
		health:      deps.Health,
		instruments: deps.Instruments,
		cities:      deps.Cities,
		wsHandler:   deps.WSHandler,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the route table, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /weather", s.handleWeatherList)
	mux.HandleFunc("GET /weather/{cityId}", s.handleWeatherCity)
	mux.HandleFunc("GET /weather/history/{cityId}", s.handleWeatherHistory)
	mux.HandleFunc("GET /air_pollution/{cityId}", s.handleAirPollution)

	mux.HandleFunc("GET /crypto", s.handleCryptoList)
	mux.HandleFunc("GET /crypto/chat", s.handleCryptoChart)
	mux.HandleFunc("GET /crypto/{cryptoId}", s.handleCryptoDetail)
	mux.HandleFunc("GET /crypto/history/{cryptoId}", s.handleCryptoHistory)

	mux.HandleFunc("GET /news", s.handleNews)
	mux.HandleFunc("GET /news/search", s.handleNewsSearch)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.wsHandler != nil {
		mux.Handle("GET /ws", s.wsHandler)
	}

	return mux
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
