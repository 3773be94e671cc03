// Package api provides clients for the third-party REST APIs pulseboard
// proxies: CoinGecko (crypto market data), OpenWeather (conditions,
// forecast, air pollution), and NewsData (crypto news).
//
// All providers share one core Client with retries, timeouts, and
// structured error classification. Provider wrappers translate upstream
// JSON into the canonical model shapes.
package api
