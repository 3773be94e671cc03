// Package reconcile merges periodic snapshot prices with live stream
// ticks into one authoritative per-instrument view.
//
// Precedence rules: a stream value always beats a snapshot unless the
// stream value has been marked stale; a tick is rejected when the held
// stream value carries an equal or newer event time; non-positive and
// non-finite prices are rejected outright. Price changes crossing the
// alert threshold emit SignificantMove events on a buffered channel.
package reconcile
