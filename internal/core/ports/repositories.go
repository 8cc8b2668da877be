package ports

import (
	"context"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

// RiskScoreRepository persists district risk classifications.
type RiskScoreRepository interface {
	UpsertBatch(ctx context.Context, scores []domain.RiskScore) error
	Get(ctx context.Context, state, district string) (*domain.RiskScore, error)
	List(ctx context.Context, state string) ([]domain.RiskScore, error)
	ListStates(ctx context.Context) ([]string, error)
	ListDistricts(ctx context.Context, state string) ([]string, error)
}
