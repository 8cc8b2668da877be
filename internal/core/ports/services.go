package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

// Geocoder resolves free text to a coordinate using the first candidate.
type Geocoder interface {
	Resolve(ctx context.Context, place domain.Place) (domain.Coordinate, error)
}

// RouteProvider returns the driving polyline between two coordinates.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Coordinate, error)
}

// DistrictResolver reverse geocodes a coordinate to its administrative region.
type DistrictResolver interface {
	ResolveDistrict(ctx context.Context, point domain.Coordinate) (domain.District, error)
}

// RiskClassifier returns the classification for a (state, district) pair.
type RiskClassifier interface {
	Classify(ctx context.Context, district domain.District) (*domain.RiskScore, error)
}

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes plan outcome events to a message broker.
type EventPublisher interface {
	PublishPlanCompleted(ctx context.Context, req domain.PlanRequest, result *domain.PlanResult) error
	PublishPlanFailed(ctx context.Context, planID string, req domain.PlanRequest, err error) error
}
