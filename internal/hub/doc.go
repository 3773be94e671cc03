// Package hub pushes reconciled price events to connected browsers
// over WebSocket. Every reconciled tick becomes a price_update event
// and every significant move a price_alert event. Clients may narrow
// their feed with subscribe_crypto control messages; clients that stop
// reading are dropped rather than allowed to stall the pipeline.
package hub
