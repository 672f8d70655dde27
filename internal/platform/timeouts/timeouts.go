// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time allowed for a single query or ingest request.
const Request = 10 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StorageOp caps a single storage round trip outside request scope,
// such as worker claims and checkpoint batch commits.
const StorageOp = 30 * time.Second

// NATSConnect caps the wait time when dialing the message broker.
const NATSConnect = 5 * time.Second
