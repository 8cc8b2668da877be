package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/saferoute/internal/core/usecases"
)

// Pinger is implemented by backing services that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is implemented by upstream HTTP services with a health route.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Catalog and the
// backing services are optional; nil ones are reported as not configured.
type Dependencies struct {
	Planner     *usecases.Planner
	Catalog     *usecases.RiskCatalogService
	NATS        *nats.Conn
	DB          Pinger
	Cache       Pinger
	RiskService HealthChecker
}
