package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/ports"
	"github.com/samirrijal/saferoute/internal/pkg/metrics"
)

// RiskService classifies districts through a RiskClassifier, with an
// optional cache in front of it.
type RiskService struct {
	classifier ports.RiskClassifier
	cache      ports.CacheService
	ttlSeconds int
}

// NewRiskService creates a new RiskService. cache may be nil; a ttlSeconds of
// zero disables caching.
func NewRiskService(classifier ports.RiskClassifier, cache ports.CacheService, ttlSeconds int) *RiskService {
	return &RiskService{classifier: classifier, cache: cache, ttlSeconds: ttlSeconds}
}

// Classify returns the risk classification of a district. A district without
// a state or sub-region fails with UnresolvedRegion before any lookup. The
// classifier's label is normalised so only known categories or Unknown leave
// this method.
func (s *RiskService) Classify(ctx context.Context, district domain.District) (*domain.RiskScore, error) {
	if err := district.Validate(); err != nil {
		return nil, err
	}

	cacheKey := riskCacheKey(district)
	if s.cacheEnabled() {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var score domain.RiskScore
			if err := json.Unmarshal(data, &score); err == nil {
				metrics.CacheHits.WithLabelValues("risk").Inc()
				return &score, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("risk").Inc()
	}

	score, err := s.classifier.Classify(ctx, district)
	if err != nil {
		return nil, fmt.Errorf("classify %s/%s: %w", district.State, district.District, err)
	}
	if score == nil {
		return nil, domain.NewError(domain.KindUnknownRegion,
			fmt.Sprintf("no classification for %s, %s", district.District, district.State), nil)
	}

	out := *score
	out.Category = out.Category.Normalize()
	if out.State == "" {
		out.State = district.State
	}
	if out.District == "" {
		out.District = district.District
	}

	if s.cacheEnabled() {
		if data, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttlSeconds)
		}
	}

	return &out, nil
}

// Invalidate drops a cached classification, if any.
func (s *RiskService) Invalidate(ctx context.Context, district domain.District) error {
	if s.cache == nil {
		return nil
	}
	err := s.cache.Delete(ctx, riskCacheKey(district))
	if errors.Is(err, ports.ErrCacheMiss) {
		return nil
	}
	return err
}

func (s *RiskService) cacheEnabled() bool {
	return s.cache != nil && s.ttlSeconds > 0
}

func riskCacheKey(d domain.District) string {
	return "risk:" + strings.ToLower(strings.TrimSpace(d.State)) + ":" + strings.ToLower(strings.TrimSpace(d.District))
}
