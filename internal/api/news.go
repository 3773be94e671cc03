package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dkozlov/pulseboard/internal/model"
)

// topHeadlinesQuery matches the dashboard's fixed crypto news feed.
const topHeadlinesQuery = "cryptocurrency OR bitcoin OR ethereum OR crypto"

// NewsData provides access to the NewsData.io REST API.
type NewsData struct {
	c      *Client
	apiKey string
}

// NewNewsData creates a NewsData client. An empty API key is allowed at
// construction; calls fail with an unavailable error instead.
func NewNewsData(baseURL, apiKey string, opts ...ClientOption) *NewsData {
	return &NewsData{c: NewClient(baseURL, opts...), apiKey: apiKey}
}

// TopHeadlines fetches the fixed top crypto headlines feed.
func (n *NewsData) TopHeadlines(ctx context.Context) ([]model.Article, error) {
	if n.apiKey == "" {
		return nil, unavailable("newsdata api key not configured")
	}

	query := url.Values{}
	query.Set("apikey", n.apiKey)
	query.Set("q", topHeadlinesQuery)
	query.Set("language", "en")
	query.Set("size", "5")

	var raw newsResponse
	if err := n.c.get(ctx, "/news", query, &raw); err != nil {
		return nil, fmt.Errorf("top headlines: %w", err)
	}

	articles := make([]model.Article, 0, len(raw.Results))
	for _, a := range raw.Results {
		articles = append(articles, toArticle(a, false))
	}
	return articles, nil
}

// Search fetches business-category articles matching the query.
func (n *NewsData) Search(ctx context.Context, searchQuery string, size int, language string) ([]model.Article, error) {
	if n.apiKey == "" {
		return nil, unavailable("newsdata api key not configured")
	}

	query := url.Values{}
	query.Set("apikey", n.apiKey)
	query.Set("q", searchQuery)
	query.Set("language", language)
	query.Set("size", strconv.Itoa(size))
	query.Set("category", "business")

	var raw newsResponse
	if err := n.c.get(ctx, "/news", query, &raw); err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}

	articles := make([]model.Article, 0, len(raw.Results))
	for _, a := range raw.Results {
		articles = append(articles, toArticle(a, true))
	}
	return articles, nil
}
