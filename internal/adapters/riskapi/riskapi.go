// Package riskapi adapts the remote district risk classification service to
// the RiskClassifier port.
package riskapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samirrijal/saferoute/internal/adapters/upstream"
	"github.com/samirrijal/saferoute/internal/core/domain"
)

// Client implements ports.RiskClassifier.
type Client struct {
	baseURL string
	http    *upstream.Client
}

// New creates a risk service client.
func New(baseURL string, opts ...upstream.Option) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    upstream.New("risk", opts...),
	}
}

type classifyRequest struct {
	State    string `json:"state"`
	District string `json:"district"`
}

type classifyResponse struct {
	State        string  `json:"state"`
	District     string  `json:"district"`
	SafetyScore  float64 `json:"safety_score"`
	RiskCategory string  `json:"risk_category"`
}

// Classify posts the district and maps the returned risk_category label.
// A 404 or a response without a label means the service has no data for the
// pair.
func (c *Client) Classify(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
	var res classifyResponse
	status, err := c.http.PostJSON(ctx, c.baseURL+"/api/v1/risk/classify",
		classifyRequest{State: d.State, District: d.District}, &res)
	if status == http.StatusNotFound {
		return nil, domain.NewError(domain.KindUnknownRegion,
			fmt.Sprintf("no classification for %s, %s", d.District, d.State), nil)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.RiskCategory) == "" {
		return nil, domain.NewError(domain.KindUnknownRegion,
			fmt.Sprintf("empty classification for %s, %s", d.District, d.State), nil)
	}

	return &domain.RiskScore{
		State:       res.State,
		District:    res.District,
		SafetyScore: res.SafetyScore,
		Category:    domain.ParseRiskCategory(res.RiskCategory),
	}, nil
}

// Health checks the service is up.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.http.GetJSON(ctx, c.baseURL+"/health", nil); err != nil {
		return fmt.Errorf("risk service health: %w", err)
	}
	return nil
}
