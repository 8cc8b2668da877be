package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/ports"
)

// RiskCatalogService exposes the stored district classifications.
type RiskCatalogService struct {
	scores ports.RiskScoreRepository
}

// NewRiskCatalogService creates a new RiskCatalogService.
func NewRiskCatalogService(scores ports.RiskScoreRepository) *RiskCatalogService {
	return &RiskCatalogService{scores: scores}
}

// Location returns the classification of one district.
func (s *RiskCatalogService) Location(ctx context.Context, state, district string) (*domain.RiskScore, error) {
	state, district = strings.TrimSpace(state), strings.TrimSpace(district)
	if state == "" || district == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "state and district are required", nil)
	}
	return s.scores.Get(ctx, state, district)
}

// Scores lists classifications, optionally filtered by state.
func (s *RiskCatalogService) Scores(ctx context.Context, state string) ([]domain.RiskScore, error) {
	return s.scores.List(ctx, strings.TrimSpace(state))
}

// States lists the states that have at least one classified district.
func (s *RiskCatalogService) States(ctx context.Context) ([]string, error) {
	return s.scores.ListStates(ctx)
}

// Districts lists the classified districts of a state.
func (s *RiskCatalogService) Districts(ctx context.Context, state string) ([]string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "state is required", nil)
	}
	districts, err := s.scores.ListDistricts(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(districts) == 0 {
		return nil, domain.NewError(domain.KindUnknownRegion, fmt.Sprintf("no districts found for state: %s", state), nil)
	}
	return districts, nil
}

// Import validates and stores a batch of classifications. Rows without a
// category get one from their safety score.
func (s *RiskCatalogService) Import(ctx context.Context, scores []domain.RiskScore) (int, error) {
	valid := make([]domain.RiskScore, 0, len(scores))
	for i, sc := range scores {
		sc.State = strings.TrimSpace(sc.State)
		sc.District = strings.TrimSpace(sc.District)
		if err := (domain.District{State: sc.State, District: sc.District}).Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		if sc.SafetyScore < 0 || sc.SafetyScore > 100 {
			return 0, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("row %d: safety score %.2f out of range [0,100]", i+1, sc.SafetyScore), nil)
		}
		if sc.Category == "" {
			sc.Category = domain.CategoryForScore(sc.SafetyScore)
		} else {
			sc.Category = domain.ParseRiskCategory(string(sc.Category))
		}
		valid = append(valid, sc)
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := s.scores.UpsertBatch(ctx, valid); err != nil {
		return 0, fmt.Errorf("upsert risk scores: %w", err)
	}
	return len(valid), nil
}
