package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dkozlov/pulseboard/internal/model"
)

// CoinGecko provides access to the CoinGecko REST API.
// CoinGecko's public tier needs no API key.
type CoinGecko struct {
	c *Client
}

// NewCoinGecko creates a CoinGecko client for the given base URL.
func NewCoinGecko(baseURL string, opts ...ClientOption) *CoinGecko {
	return &CoinGecko{c: NewClient(baseURL, opts...)}
}

// SimplePrice is a minimal USD price quote for one coin.
type SimplePrice struct {
	ID           string
	USD          float64
	USDChange24h *float64
	FetchedAt    time.Time
}

// SimplePrices fetches current USD prices for the given coin ids.
func (g *CoinGecko) SimplePrices(ctx context.Context, ids []string) (map[string]SimplePrice, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")

	var raw map[string]simplePriceEntry
	if err := g.c.get(ctx, "/simple/price", query, &raw); err != nil {
		return nil, fmt.Errorf("simple price: %w", err)
	}

	now := time.Now()
	prices := make(map[string]SimplePrice, len(raw))
	for id, entry := range raw {
		if entry.USD <= 0 {
			return nil, malformed("simple price for %q missing usd value", id)
		}
		prices[id] = SimplePrice{
			ID:           id,
			USD:          entry.USD,
			USDChange24h: entry.USDChange24h,
			FetchedAt:    now,
		}
	}
	return prices, nil
}

// Markets fetches market summaries for the given coin ids.
func (g *CoinGecko) Markets(ctx context.Context, ids []string) ([]model.CoinMarket, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", strings.Join(ids, ","))
	query.Set("order", "market_cap_desc")
	query.Set("per_page", "100")
	query.Set("page", "1")
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	var rows []geckoMarket
	if err := g.c.get(ctx, "/coins/markets", query, &rows); err != nil {
		return nil, fmt.Errorf("coin markets: %w", err)
	}

	markets := make([]model.CoinMarket, 0, len(rows))
	for _, row := range rows {
		markets = append(markets, toCoinMarket(row))
	}
	return markets, nil
}

// CoinDetail fetches the full detail object for one coin and flattens
// its market data to USD scalars.
func (g *CoinGecko) CoinDetail(ctx context.Context, id string) (model.CoinDetail, error) {
	query := url.Values{}
	query.Set("localization", "false")
	query.Set("tickers", "false")
	query.Set("market_data", "true")
	query.Set("community_data", "false")
	query.Set("developer_data", "false")
	query.Set("sparkline", "false")

	var coin geckoCoin
	err := g.c.get(ctx, "/coins/"+url.PathEscape(id), query, &coin)
	if err != nil {
		if IsNotFound(err) {
			return model.CoinDetail{}, notFound("cryptocurrency with ID %q not found", id)
		}
		return model.CoinDetail{}, fmt.Errorf("coin detail: %w", err)
	}
	if coin.ID == "" {
		return model.CoinDetail{}, malformed("coin detail for %q missing id", id)
	}

	return toCoinDetail(coin), nil
}

// MarketChart fetches the historical chart series for one coin.
func (g *CoinGecko) MarketChart(ctx context.Context, id string, days int) (model.MarketChart, error) {
	var chart geckoChart
	err := g.c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", chartQuery(days), &chart)
	if err != nil {
		if IsNotFound(err) {
			return model.MarketChart{}, notFound("cryptocurrency with ID %q not found", id)
		}
		return model.MarketChart{}, fmt.Errorf("market chart: %w", err)
	}

	return toMarketChart(id, days, chart), nil
}

// MarketChartRaw fetches the chart series as an unshaped upstream payload.
func (g *CoinGecko) MarketChartRaw(ctx context.Context, id string, days int) (json.RawMessage, error) {
	raw, err := g.c.getRaw(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", chartQuery(days))
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("cryptocurrency with ID %q not found", id)
		}
		return nil, fmt.Errorf("market chart: %w", err)
	}
	return raw, nil
}

func chartQuery(days int) url.Values {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", strconv.Itoa(days))
	return query
}
