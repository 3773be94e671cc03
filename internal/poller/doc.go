// Package poller periodically fetches REST price snapshots and feeds
// them to the reconciled price state. Snapshots seed the state at
// startup and keep it fresh whenever the live stream is down.
package poller
