// Package model defines the canonical data types shared across the
// pulseboard pipeline: reconciled instrument prices, normalized stream
// ticks, and the shaped responses served by the HTTP proxy endpoints.
//
// Types here carry no behavior beyond cheap derivations (symbol and
// channel names); all mutation happens in the owning components.
package model
