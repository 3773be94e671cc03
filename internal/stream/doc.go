// Package stream maintains the live WebSocket price feed.
//
// A Client wraps a single WebSocket connection; the Manager owns the
// connection lifecycle: it dials, subscribes the configured instrument
// channels, decodes 24hrTicker frames into price ticks, and reconnects
// with exponential backoff when the connection drops. Control messages
// (SUBSCRIBE/UNSUBSCRIBE) are correlated with their acks by request id.
//
// When the reconnect attempt cap is reached the Manager closes its
// Exhausted channel and stays disconnected; the rest of the pipeline
// then serves prices from periodic snapshots alone.
package stream
