package ports

import "context"

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name returns the dependency name, e.g. "postgresql" or "nats".
	Name() string
}
