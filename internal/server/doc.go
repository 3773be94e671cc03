// Package server is the HTTP frontend: proxy endpoints for weather,
// air quality, crypto markets, and news, plus the health endpoint and
// the browser WebSocket entry point. Every endpoint answers from the
// TTL cache when it can and fetches upstream on a miss; failures map
// to a uniform {"error": message} body.
package server
