package health

import "context"

// DBPinger checks cache store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// DependencyChecker checks an embedding adapter or an upstream service.
type DependencyChecker interface {
	HealthCheck(ctx context.Context) error
}
