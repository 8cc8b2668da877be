package riskapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/saferoute/internal/adapters/riskapi"
	"github.com/samirrijal/saferoute/internal/core/domain"
)

func newRiskServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/risk/classify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var in struct{ State, District string }
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		switch in.District {
		case "Shahdara":
			_, _ = w.Write([]byte(`{"state":"Delhi","district":"Shahdara","safety_score":38.2,"risk_category":"High Risk"}`))
		case "Odd":
			_, _ = w.Write([]byte(`{"state":"Delhi","district":"Odd","safety_score":50,"risk_category":"Spicy"}`))
		case "Blank":
			_, _ = w.Write([]byte(`{"state":"Delhi","district":"Blank"}`))
		case "Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Location not found"}`))
		}
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClassify(t *testing.T) {
	c := riskapi.New(newRiskServer(t).URL)

	score, err := c.Classify(context.Background(), domain.District{State: "Delhi", District: "Shahdara"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Category != domain.RiskHigh {
		t.Errorf("expected High, got %s", score.Category)
	}
	if score.SafetyScore != 38.2 {
		t.Errorf("expected safety score 38.2, got %.1f", score.SafetyScore)
	}
}

func TestClassify_UnrecognisedLabelIsUnknown(t *testing.T) {
	c := riskapi.New(newRiskServer(t).URL)

	score, err := c.Classify(context.Background(), domain.District{State: "Delhi", District: "Odd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Category != domain.RiskUnknown {
		t.Errorf("expected Unknown, got %s", score.Category)
	}
}

func TestClassify_Errors(t *testing.T) {
	c := riskapi.New(newRiskServer(t).URL)

	tests := []struct {
		district string
		want     error
	}{
		{"Nowhere", domain.ErrUnknownRegion},
		{"Blank", domain.ErrUnknownRegion},
		{"Broken", domain.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.district, func(t *testing.T) {
			_, err := c.Classify(context.Background(), domain.District{State: "Delhi", District: tt.district})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	if err := riskapi.New(newRiskServer(t).URL).Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
