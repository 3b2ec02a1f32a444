// Package health provides readiness checks for the discovery API's
// external dependencies.
package health

import (
	"context"
	"fmt"
)

// contextPinger is satisfied by *sql.DB.
type contextPinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker checks the event database.
type DBChecker struct {
	db contextPinger
}

// NewDBChecker creates a database checker. Pass the *sql.DB behind the
// event store.
func NewDBChecker(db contextPinger) *DBChecker {
	return &DBChecker{db: db}
}

// Name implements api.HealthChecker.
func (d *DBChecker) Name() string { return "database" }

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
