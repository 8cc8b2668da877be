package usecases_test

import (
	"context"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/ports"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	resolveFn func(ctx context.Context, place domain.Place) (domain.Coordinate, error)
}

func (m *mockGeocoder) Resolve(ctx context.Context, place domain.Place) (domain.Coordinate, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, place)
	}
	return domain.Coordinate{}, domain.ErrNoMatchFound
}

// --- Mock RouteProvider ---

type mockRouter struct {
	routeFn func(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Coordinate, error)
}

func (m *mockRouter) Route(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Coordinate, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, origin, destination)
	}
	return nil, nil
}

// --- Mock DistrictResolver ---

type mockDistricts struct {
	resolveDistrictFn func(ctx context.Context, point domain.Coordinate) (domain.District, error)
}

func (m *mockDistricts) ResolveDistrict(ctx context.Context, point domain.Coordinate) (domain.District, error) {
	if m.resolveDistrictFn != nil {
		return m.resolveDistrictFn(ctx, point)
	}
	return domain.District{State: "Delhi", District: "New Delhi"}, nil
}

// --- Mock RiskClassifier ---

type mockClassifier struct {
	classifyFn func(ctx context.Context, d domain.District) (*domain.RiskScore, error)
}

func (m *mockClassifier) Classify(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, d)
	}
	return &domain.RiskScore{State: d.State, District: d.District, SafetyScore: 85, Category: domain.RiskLow}, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	completedFn func(ctx context.Context, req domain.PlanRequest, result *domain.PlanResult) error
	failedFn    func(ctx context.Context, planID string, req domain.PlanRequest, err error) error
}

func (m *mockPublisher) PublishPlanCompleted(ctx context.Context, req domain.PlanRequest, result *domain.PlanResult) error {
	if m.completedFn != nil {
		return m.completedFn(ctx, req, result)
	}
	return nil
}

func (m *mockPublisher) PublishPlanFailed(ctx context.Context, planID string, req domain.PlanRequest, err error) error {
	if m.failedFn != nil {
		return m.failedFn(ctx, planID, req, err)
	}
	return nil
}

// --- Mock RiskScoreRepository ---

type mockRiskRepo struct {
	upsertBatchFn   func(ctx context.Context, scores []domain.RiskScore) error
	getFn           func(ctx context.Context, state, district string) (*domain.RiskScore, error)
	listFn          func(ctx context.Context, state string) ([]domain.RiskScore, error)
	listStatesFn    func(ctx context.Context) ([]string, error)
	listDistrictsFn func(ctx context.Context, state string) ([]string, error)
}

func (m *mockRiskRepo) UpsertBatch(ctx context.Context, scores []domain.RiskScore) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, scores)
	}
	return nil
}

func (m *mockRiskRepo) Get(ctx context.Context, state, district string) (*domain.RiskScore, error) {
	if m.getFn != nil {
		return m.getFn(ctx, state, district)
	}
	return nil, domain.ErrUnknownRegion
}

func (m *mockRiskRepo) List(ctx context.Context, state string) ([]domain.RiskScore, error) {
	if m.listFn != nil {
		return m.listFn(ctx, state)
	}
	return nil, nil
}

func (m *mockRiskRepo) ListStates(ctx context.Context) ([]string, error) {
	if m.listStatesFn != nil {
		return m.listStatesFn(ctx)
	}
	return nil, nil
}

func (m *mockRiskRepo) ListDistricts(ctx context.Context, state string) ([]string, error) {
	if m.listDistrictsFn != nil {
		return m.listDistrictsFn(ctx, state)
	}
	return nil, nil
}

// line returns n points spaced evenly northwards from (28.6, 77.2).
func line(n int) []domain.Coordinate {
	out := make([]domain.Coordinate, n)
	for i := range out {
		out[i] = domain.Coordinate{Lat: 28.6 + float64(i)*0.00045, Lng: 77.2}
	}
	return out
}
