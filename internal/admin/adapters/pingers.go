// Package adapters bridges concrete infrastructure clients to the probe
// interface the admin handler runs for readiness checks.
package adapters

import (
	"context"
	"database/sql"
)

// HealthChecker is the probe surface the platform's client wrappers expose.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// PingFunc adapts a bare probe function to the admin handler's Pinger
// interface. Clients whose ping already has this shape (kafka's Ping,
// sql.DB's PingContext) wire in directly.
type PingFunc func(ctx context.Context) error

// Ping runs the probe.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DatabasePinger probes a sql.DB connection pool.
type DatabasePinger struct {
	db *sql.DB
}

// NewDatabasePinger creates an adapter wrapping a database handle.
func NewDatabasePinger(db *sql.DB) *DatabasePinger {
	return &DatabasePinger{db: db}
}

// Ping verifies the pool can reach the database.
func (p *DatabasePinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// HealthPinger adapts a client with a Health method to the admin Pinger
// interface.
type HealthPinger struct {
	client HealthChecker
}

// NewHealthPinger creates an adapter wrapping a health-checkable client.
func NewHealthPinger(client HealthChecker) *HealthPinger {
	return &HealthPinger{client: client}
}

// Ping delegates to the client's health check.
func (p *HealthPinger) Ping(ctx context.Context) error {
	return p.client.Health(ctx)
}

// AlwaysReady reports success without probing anything. The in-memory
// backends have no connection to lose, so their readiness is constant.
type AlwaysReady struct{}

// Ping reports ready.
func (AlwaysReady) Ping(context.Context) error { return nil }
