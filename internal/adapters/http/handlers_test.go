package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/saferoute/internal/adapters/http"
	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

// ---- Mock ports ----

type mockGeocoder struct {
	resolveFn func(ctx context.Context, place domain.Place) (domain.Coordinate, error)
}

func (m *mockGeocoder) Resolve(ctx context.Context, place domain.Place) (domain.Coordinate, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, place)
	}
	if place == "Connaught Place" {
		return domain.Coordinate{Lat: 28.6, Lng: 77.2}, nil
	}
	return domain.Coordinate{Lat: 28.6045, Lng: 77.2}, nil
}

type mockRouter struct {
	routeFn func(ctx context.Context, o, d domain.Coordinate) ([]domain.Coordinate, error)
}

func (m *mockRouter) Route(ctx context.Context, o, d domain.Coordinate) ([]domain.Coordinate, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, o, d)
	}
	return line(21), nil
}

type mockDistricts struct {
	resolveFn func(ctx context.Context, p domain.Coordinate) (domain.District, error)
}

func (m *mockDistricts) ResolveDistrict(ctx context.Context, p domain.Coordinate) (domain.District, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, p)
	}
	return domain.District{State: "Delhi", District: "New Delhi"}, nil
}

type mockClassifier struct {
	classifyFn func(ctx context.Context, d domain.District) (*domain.RiskScore, error)
}

func (m *mockClassifier) Classify(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, d)
	}
	return &domain.RiskScore{State: d.State, District: d.District, SafetyScore: 85, Category: domain.RiskLow}, nil
}

type mockRiskRepo struct {
	getFn           func(ctx context.Context, state, district string) (*domain.RiskScore, error)
	listFn          func(ctx context.Context, state string) ([]domain.RiskScore, error)
	listStatesFn    func(ctx context.Context) ([]string, error)
	listDistrictsFn func(ctx context.Context, state string) ([]string, error)
}

func (m *mockRiskRepo) UpsertBatch(ctx context.Context, s []domain.RiskScore) error { return nil }
func (m *mockRiskRepo) Get(ctx context.Context, state, district string) (*domain.RiskScore, error) {
	if m.getFn != nil {
		return m.getFn(ctx, state, district)
	}
	return nil, domain.NewError(domain.KindUnknownRegion, "location not found", nil)
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

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

// line returns n points about 50 m apart heading north.
func line(n int) []domain.Coordinate {
	pts := make([]domain.Coordinate, n)
	for i := range pts {
		pts[i] = domain.Coordinate{Lat: 28.6 + float64(i)*0.00045, Lng: 77.2}
	}
	return pts
}

type planMocks struct {
	geocoder   *mockGeocoder
	router     *mockRouter
	districts  *mockDistricts
	classifier *mockClassifier
}

func newPlanner(m planMocks) *usecases.Planner {
	if m.geocoder == nil {
		m.geocoder = &mockGeocoder{}
	}
	if m.router == nil {
		m.router = &mockRouter{}
	}
	if m.districts == nil {
		m.districts = &mockDistricts{}
	}
	if m.classifier == nil {
		m.classifier = &mockClassifier{}
	}
	cfg := usecases.DefaultPlannerConfig()
	cfg.Timeout = 5 * time.Second
	return usecases.NewPlanner(m.geocoder, m.router, m.districts, m.classifier, nil, cfg)
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps, handler.RouterConfig{Version: "test", PlanTimeout: 10 * time.Second})
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Planner: newPlanner(planMocks{}),
		Catalog: usecases.NewRiskCatalogService(&mockRiskRepo{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func postPlan(t *testing.T, app *fiber.App, target, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ---- Plan handler tests ----

func TestPlan_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postPlan(t, app, "/v1/plans", `{"origin":"Connaught Place","destination":"India Gate"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		ID          string            `json:"id"`
		Segments    []domain.Segment  `json:"segments"`
		DistanceM   float64           `json:"distance_m"`
		RiskSummary map[string]int    `json:"risk_summary"`
		Polyline    string            `json:"polyline"`
		Origin      domain.Coordinate `json:"origin"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.ID == "" {
		t.Error("expected plan id")
	}
	// 21 points at stride 10 keep indices 0, 10, 20.
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Segments[0].Risk != domain.RiskLow || result.Segments[0].District.District != "New Delhi" {
		t.Errorf("unexpected first segment: %+v", result.Segments[0])
	}
	if result.RiskSummary["Low"] != 2 {
		t.Errorf("expected 2 Low in summary, got %v", result.RiskSummary)
	}
	if result.Polyline == "" {
		t.Error("expected encoded polyline")
	}
	if result.DistanceM < 900 || result.DistanceM > 1100 {
		t.Errorf("expected about 1000 m, got %.1f", result.DistanceM)
	}
}

func TestPlan_NoStoreHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/plans", strings.NewReader(`{"origin":"a","destination":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
}

func TestPlan_Stride(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postPlan(t, app, "/v1/plans", `{"origin":"a","destination":"b","stride":5}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result domain.PlanResult
	json.Unmarshal(body, &result)
	if len(result.Segments) != 4 {
		t.Errorf("expected 4 segments at stride 5, got %d", len(result.Segments))
	}
}

func TestPlan_GeoJSON(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/plans?format=geojson", strings.NewReader(`{"origin":"a","destination":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
		PlanID   string            `json:"plan_id"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %s", fc.Type)
	}
	// 2 segments + origin + destination
	if len(fc.Features) != 4 {
		t.Errorf("expected 4 features, got %d", len(fc.Features))
	}
	if fc.PlanID == "" {
		t.Error("expected plan_id member")
	}
}

func TestPlan_BadFormat(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := postPlan(t, app, "/v1/plans?format=kml", `{"origin":"a","destination":"b"}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPlan_BadBody(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postPlan(t, app, "/v1/plans", `{"origin":`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	var apiErr apiError
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestPlan_PlaceTooLong(t *testing.T) {
	app := setupApp(makeDeps())

	long := strings.Repeat("x", 201)
	status, _ := postPlan(t, app, "/v1/plans", fmt.Sprintf(`{"origin":%q,"destination":"b"}`, long))
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPlan_PlaceLengthCountsCharacters(t *testing.T) {
	app := setupApp(makeDeps())

	// 200 Devanagari characters are 600 bytes of UTF-8.
	name := strings.Repeat("द", 200)
	status, body := postPlan(t, app, "/v1/plans", fmt.Sprintf(`{"origin":%q,"destination":"Connaught Place"}`, name))
	if status != 200 {
		t.Fatalf("expected 200 for a 200-character place, got %d: %s", status, body)
	}

	status, _ = postPlan(t, app, "/v1/plans", fmt.Sprintf(`{"origin":%q,"destination":"Connaught Place"}`, name+"द"))
	if status != 400 {
		t.Fatalf("expected 400 for a 201-character place, got %d", status)
	}
}

func TestPlan_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		mocks  planMocks
		body   string
		status int
		code   string
		stage  string
	}{
		{
			name:   "empty place",
			body:   `{"origin":"  ","destination":"b"}`,
			status: 400,
			code:   "invalid_input",
			stage:  "idle",
		},
		{
			name: "no match",
			mocks: planMocks{geocoder: &mockGeocoder{resolveFn: func(ctx context.Context, p domain.Place) (domain.Coordinate, error) {
				return domain.Coordinate{}, domain.NewError(domain.KindNoMatchFound, "nothing for "+string(p), nil)
			}}},
			status: 404,
			code:   "no_match_found",
			stage:  "geocoding",
		},
		{
			name: "no route",
			mocks: planMocks{router: &mockRouter{routeFn: func(ctx context.Context, o, d domain.Coordinate) ([]domain.Coordinate, error) {
				return nil, domain.NewError(domain.KindNoRouteFound, "zero routes", nil)
			}}},
			status: 422,
			code:   "no_route_found",
			stage:  "routing",
		},
		{
			name: "unresolved region",
			mocks: planMocks{districts: &mockDistricts{resolveFn: func(ctx context.Context, p domain.Coordinate) (domain.District, error) {
				return domain.District{}, domain.NewError(domain.KindUnresolvedRegion, "no district for point", nil)
			}}},
			status: 422,
			code:   "unresolved_region",
			stage:  "segmenting",
		},
		{
			name: "unknown region",
			mocks: planMocks{classifier: &mockClassifier{classifyFn: func(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
				return nil, domain.NewError(domain.KindUnknownRegion, "location not found", nil)
			}}},
			status: 422,
			code:   "unknown_region",
			stage:  "segmenting",
		},
		{
			name: "upstream down",
			mocks: planMocks{router: &mockRouter{routeFn: func(ctx context.Context, o, d domain.Coordinate) ([]domain.Coordinate, error) {
				return nil, domain.NewError(domain.KindUpstreamUnavailable, "osrm: status 503", nil)
			}}},
			status: 502,
			code:   "upstream_unavailable",
			stage:  "routing",
		},
		{
			name: "unexpected",
			mocks: planMocks{classifier: &mockClassifier{classifyFn: func(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
				return nil, errors.New("boom")
			}}},
			status: 500,
			code:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(func(d *handler.Dependencies) {
				d.Planner = newPlanner(tt.mocks)
			}))

			body := tt.body
			if body == "" {
				body = `{"origin":"a","destination":"b"}`
			}
			status, raw := postPlan(t, app, "/v1/plans", body)
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, status, raw)
			}

			var apiErr apiError
			if err := json.Unmarshal(raw, &apiErr); err != nil {
				t.Fatal(err)
			}
			if apiErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apiErr.Code)
			}
			if apiErr.Stage != tt.stage {
				t.Errorf("expected stage %q, got %q", tt.stage, apiErr.Stage)
			}
			if apiErr.Message == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

func TestPlan_InternalErrorHidesDetail(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Planner = newPlanner(planMocks{classifier: &mockClassifier{classifyFn: func(ctx context.Context, dd domain.District) (*domain.RiskScore, error) {
			return nil, errors.New("pq: password authentication failed")
		}}})
	}))

	_, raw := postPlan(t, app, "/v1/plans", `{"origin":"a","destination":"b"}`)
	if bytes.Contains(raw, []byte("password")) {
		t.Errorf("internal detail leaked: %s", raw)
	}
	if !bytes.Contains(raw, []byte("unable to calculate route")) {
		t.Errorf("expected generic message, got %s", raw)
	}
}

// ---- Risk catalog handler tests ----

func TestRiskLocation_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			getFn: func(ctx context.Context, state, district string) (*domain.RiskScore, error) {
				return &domain.RiskScore{State: state, District: district, SafetyScore: 62.5, Category: domain.RiskModerate}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/risk/location?state=Maharashtra&district=Pune", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var score domain.RiskScore
	json.NewDecoder(resp.Body).Decode(&score)
	if score.Category != domain.RiskModerate || score.District != "Pune" {
		t.Errorf("unexpected score: %+v", score)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("expected hour-long caching, got %q", cc)
	}
	if resp.Header.Get("ETag") == "" {
		t.Error("expected ETag header")
	}
}

func TestRiskLocation_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/risk/location?state=Atlantis&district=Nowhere", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr apiError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

func TestRiskLocation_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/risk/location?state=Delhi", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRiskLocation_NoCatalog(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Catalog = nil }))

	req := httptest.NewRequest("GET", "/v1/risk/location?state=Delhi&district=New+Delhi", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRiskScores_Pagination(t *testing.T) {
	scores := make([]domain.RiskScore, 5)
	for i := range scores {
		scores[i] = domain.RiskScore{State: "Kerala", District: fmt.Sprintf("D%d", i), SafetyScore: 80, Category: domain.RiskLow}
	}
	var gotState string
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			listFn: func(ctx context.Context, state string) ([]domain.RiskScore, error) {
				gotState = state
				return scores, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/risk/scores?state=Kerala&offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotState != "Kerala" {
		t.Errorf("expected state filter Kerala, got %q", gotState)
	}

	var result struct {
		Data       []domain.RiskScore `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 || result.Data[0].District != "D2" {
		t.Errorf("unexpected page: %+v", result.Data)
	}

	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
	if !strings.Contains(link, "state=Kerala") {
		t.Errorf("expected state filter kept in links, got %s", link)
	}
}

func TestRiskStates(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			listStatesFn: func(ctx context.Context) ([]string, error) {
				return []string{"Delhi", "Kerala"}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/risk/states", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		States []string `json:"states"`
		Count  int      `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Count != 2 || result.States[1] != "Kerala" {
		t.Errorf("unexpected states: %+v", result)
	}
}

func TestRiskDistricts(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			listDistrictsFn: func(ctx context.Context, state string) ([]string, error) {
				if state != "Kerala" {
					return nil, nil
				}
				return []string{"Ernakulam", "Kollam"}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/risk/districts?state=Kerala", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		State     string   `json:"state"`
		Districts []string `json:"districts"`
		Count     int      `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.State != "Kerala" || result.Count != 2 {
		t.Errorf("unexpected districts: %+v", result)
	}

	req = httptest.NewRequest("GET", "/v1/risk/districts?state=Goa", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown state, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/v1/risk/districts", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 without state, got %d", resp.StatusCode)
	}
}

func TestLegacyRiskRoute_Deprecated(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			getFn: func(ctx context.Context, state, district string) (*domain.RiskScore, error) {
				return &domain.RiskScore{State: state, District: district, SafetyScore: 40, Category: domain.RiskHigh}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/risk/location?state=Bihar&district=Patna", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "/v1/risk/location") {
		t.Errorf("expected successor link, got %q", link)
	}
}

// ---- Health tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", body["status"])
	}
}

func TestReady_LocalCatalog(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["risk_service"] != "local" {
		t.Errorf("expected local risk service, got %q", body.Checks["risk_service"])
	}
	if body.Checks["database"] != "not configured" {
		t.Errorf("expected database not configured, got %q", body.Checks["database"])
	}
}

func TestReady_NoRiskService(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Catalog = nil }))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestReady_CacheDown(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Cache = mockPinger{err: errors.New("connection refused")}
	}))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)

	if v := resp.Header.Get("X-API-Version"); v != "test" {
		t.Errorf("expected X-API-Version test, got %q", v)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

// ---- GraphQL tests ----

func graphqlQuery(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestGraphQL_Plan(t *testing.T) {
	app := setupApp(makeDeps())

	out := graphqlQuery(t, app, `{ plan(origin: "Connaught Place", destination: "India Gate") {
		id distance_m polyline
		segments { risk district { state district } from { lat lng } }
		risk_summary { category count }
	} }`)
	if errs, ok := out["errors"]; ok {
		t.Fatalf("unexpected errors: %v", errs)
	}

	plan := out["data"].(map[string]any)["plan"].(map[string]any)
	segments := plan["segments"].([]any)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	first := segments[0].(map[string]any)
	if first["risk"] != "Low" {
		t.Errorf("expected Low, got %v", first["risk"])
	}
	summary := plan["risk_summary"].([]any)
	if len(summary) != 1 || summary[0].(map[string]any)["count"].(float64) != 2 {
		t.Errorf("unexpected summary: %v", summary)
	}
	if plan["polyline"] == "" {
		t.Error("expected polyline")
	}
}

func TestGraphQL_PlanError(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Planner = newPlanner(planMocks{router: &mockRouter{routeFn: func(ctx context.Context, o, dd domain.Coordinate) ([]domain.Coordinate, error) {
			return nil, domain.NewError(domain.KindNoRouteFound, "zero routes", nil)
		}}})
	}))

	out := graphqlQuery(t, app, `{ plan(origin: "a", destination: "b") { id } }`)
	errs, ok := out["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatal("expected errors")
	}
	msg := errs[0].(map[string]any)["message"].(string)
	if !strings.HasPrefix(msg, "no_route_found") {
		t.Errorf("expected kind prefix, got %q", msg)
	}
}

func TestGraphQL_RiskStates(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewRiskCatalogService(&mockRiskRepo{
			listStatesFn: func(ctx context.Context) ([]string, error) { return []string{"Goa"}, nil },
		})
	})
	app := setupApp(deps)

	out := graphqlQuery(t, app, `{ riskStates }`)
	states := out["data"].(map[string]any)["riskStates"].([]any)
	if len(states) != 1 || states[0] != "Goa" {
		t.Errorf("unexpected states: %v", states)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
