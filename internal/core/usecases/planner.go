package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/ports"
	"github.com/samirrijal/saferoute/internal/pkg/metrics"
	"github.com/samirrijal/saferoute/internal/pkg/telemetry"
)

// PlannerConfig tunes a Planner.
type PlannerConfig struct {
	Stride          int
	Workers         int
	Timeout         time.Duration // whole pipeline; zero means no deadline
	CallTimeout     time.Duration // each external call; zero means no deadline
	KeepDestination bool
}

// DefaultPlannerConfig mirrors the configuration defaults.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Stride:          DefaultStride,
		Workers:         4,
		Timeout:         30 * time.Second,
		CallTimeout:     10 * time.Second,
		KeepDestination: true,
	}
}

// Planner runs the route risk-annotation pipeline:
// geocoding → routing → simplifying → segmenting. It keeps no state between
// runs; every call to Plan owns its own pipeline state.
type Planner struct {
	geocoder  ports.Geocoder
	router    ports.RouteProvider
	districts ports.DistrictResolver
	risk      ports.RiskClassifier
	events    ports.EventPublisher
	cfg       PlannerConfig
}

// NewPlanner creates a new Planner. events may be nil.
func NewPlanner(
	geocoder ports.Geocoder,
	router ports.RouteProvider,
	districts ports.DistrictResolver,
	risk ports.RiskClassifier,
	events ports.EventPublisher,
	cfg PlannerConfig,
) *Planner {
	if cfg.Stride < 1 {
		cfg.Stride = DefaultStride
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Planner{
		geocoder:  geocoder,
		router:    router,
		districts: districts,
		risk:      risk,
		events:    events,
		cfg:       cfg,
	}
}

// PlanOption customises a single Plan call.
type PlanOption func(*planRun)

// WithObserver registers a callback invoked on every stage transition.
func WithObserver(fn func(domain.StageEvent)) PlanOption {
	return func(r *planRun) { r.observers = append(r.observers, fn) }
}

// WithPlanID sets the plan ID instead of generating one.
func WithPlanID(id string) PlanOption {
	return func(r *planRun) {
		if id != "" {
			r.id = id
		}
	}
}

// WithLogger sets the logger used for this run.
func WithLogger(l *slog.Logger) PlanOption {
	return func(r *planRun) {
		if l != nil {
			r.logger = l
		}
	}
}

type planRun struct {
	id        string
	observers []func(domain.StageEvent)
	logger    *slog.Logger
}

func (r *planRun) emit(stage domain.PlanStage, err error) {
	ev := domain.StageEvent{PlanID: r.id, Stage: stage, Err: err, At: time.Now()}
	for _, fn := range r.observers {
		fn(ev)
	}
}

// Plan resolves both places, fetches the route, decimates it and tags each
// segment with the risk of its leading waypoint. Any stage failure aborts the
// run: the caller gets either the complete result or a *domain.StageError
// wrapping the originating error, never a partial result.
func (p *Planner) Plan(ctx context.Context, req domain.PlanRequest, opts ...PlanOption) (*domain.PlanResult, error) {
	run := &planRun{id: uuid.NewString(), logger: slog.Default()}
	for _, o := range opts {
		o(run)
	}
	run.logger = run.logger.With("plan_id", run.id)

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "planner.Plan", trace.WithAttributes(
		attribute.String("plan.id", run.id),
	))
	defer span.End()

	run.emit(domain.StageIdle, nil)
	start := time.Now()

	result, err := p.execute(ctx, run, req)
	if err != nil {
		kind := domain.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		metrics.PlansTotal.WithLabelValues("failed", string(kind)).Inc()
		stage := domain.StageIdle
		var se *domain.StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		run.logger.Warn("plan failed", "stage", stage, "kind", kind, "error", err, "elapsed", time.Since(start).String())
		run.emit(domain.StageFailed, err)
		p.publishFailed(ctx, run, req, err)
		return nil, err
	}

	metrics.PlansTotal.WithLabelValues("done", "").Inc()
	for _, s := range result.Segments {
		metrics.SegmentsEmitted.WithLabelValues(string(s.Risk)).Inc()
	}
	span.SetAttributes(attribute.Int("plan.segments", len(result.Segments)))
	run.logger.Info("plan done", "segments", len(result.Segments), "elapsed", time.Since(start).String())
	run.emit(domain.StageDone, nil)
	p.publishCompleted(ctx, run, req, result)
	return result, nil
}

func (p *Planner) execute(ctx context.Context, run *planRun, req domain.PlanRequest) (*domain.PlanResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, &domain.StageError{Stage: domain.StageIdle, Err: err}
	}

	var origin, destination domain.Coordinate
	err := p.stage(ctx, run, domain.StageGeocoding, func(ctx context.Context) error {
		var err error
		origin, destination, err = p.ResolvePlaces(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	var polyline []domain.Coordinate
	err = p.stage(ctx, run, domain.StageRouting, func(ctx context.Context) error {
		var err error
		polyline, err = p.FetchRoute(ctx, origin, destination)
		return err
	})
	if err != nil {
		return nil, err
	}

	var waypoints []domain.Coordinate
	err = p.stage(ctx, run, domain.StageSimplifying, func(context.Context) error {
		waypoints = p.Waypoints(polyline, req.Stride)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var scores []domain.RiskScore
	err = p.stage(ctx, run, domain.StageSegmenting, func(ctx context.Context) error {
		var err error
		scores, err = p.ClassifyWaypoints(ctx, waypoints)
		return err
	})
	if err != nil {
		return nil, err
	}

	return BuildResult(run.id, origin, destination, waypoints, scores), nil
}

func (p *Planner) stage(ctx context.Context, run *planRun, stage domain.PlanStage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &domain.StageError{Stage: stage, Err: err}
	}
	run.emit(stage, nil)

	ctx, span := telemetry.Tracer().Start(ctx, "planner."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.StageError{Stage: stage, Err: err}
	}
	return nil
}

// ValidateRequest rejects requests with an empty origin or destination.
func ValidateRequest(req domain.PlanRequest) error {
	if err := req.Origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := req.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if req.Stride < 0 {
		return domain.NewError(domain.KindInvalidInput, "stride must not be negative", nil)
	}
	return nil
}

// ResolvePlaces geocodes origin then destination, one after the other.
func (p *Planner) ResolvePlaces(ctx context.Context, req domain.PlanRequest) (domain.Coordinate, domain.Coordinate, error) {
	origin, err := p.geocode(ctx, req.Origin)
	if err != nil {
		return domain.Coordinate{}, domain.Coordinate{}, fmt.Errorf("geocode origin: %w", err)
	}
	destination, err := p.geocode(ctx, req.Destination)
	if err != nil {
		return domain.Coordinate{}, domain.Coordinate{}, fmt.Errorf("geocode destination: %w", err)
	}
	return origin, destination, nil
}

func (p *Planner) geocode(ctx context.Context, place domain.Place) (domain.Coordinate, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	c, err := p.geocoder.Resolve(ctx, place)
	if err != nil {
		return domain.Coordinate{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.Coordinate{}, domain.NewError(domain.KindUpstreamUnavailable, "geocoder returned an invalid coordinate", err)
	}
	return c, nil
}

// FetchRoute returns the driving polyline between two coordinates.
func (p *Planner) FetchRoute(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Coordinate, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	polyline, err := p.router.Route(ctx, origin, destination)
	if err != nil {
		return nil, fmt.Errorf("route %s → %s: %w", origin, destination, err)
	}
	if len(polyline) < 2 {
		return nil, domain.NewError(domain.KindNoRouteFound,
			fmt.Sprintf("route %s → %s has %d points", origin, destination, len(polyline)), nil)
	}
	return polyline, nil
}

// Waypoints decimates a polyline with the configured stride unless stride
// overrides it.
func (p *Planner) Waypoints(polyline []domain.Coordinate, stride int) []domain.Coordinate {
	if stride < 1 {
		stride = p.cfg.Stride
	}
	return Simplify(polyline, stride, p.cfg.KeepDestination)
}

// ClassifyWaypoints resolves the district and risk of every leading waypoint
// (all but the last) on a bounded worker pool. The returned slice is indexed
// like waypoints regardless of completion order. The first failure cancels
// the remaining lookups and is returned alone.
func (p *Planner) ClassifyWaypoints(ctx context.Context, waypoints []domain.Coordinate) ([]domain.RiskScore, error) {
	if len(waypoints) < 2 {
		return []domain.RiskScore{}, nil
	}

	leading := waypoints[:len(waypoints)-1]
	scores := make([]domain.RiskScore, len(leading))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, wp := range leading {
		i, wp := i, wp
		g.Go(func() error {
			score, err := p.classifyPoint(gctx, wp)
			if err != nil {
				return fmt.Errorf("waypoint %d (%s): %w", i, wp, err)
			}
			scores[i] = *score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (p *Planner) classifyPoint(ctx context.Context, point domain.Coordinate) (*domain.RiskScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dctx, cancel := p.callContext(ctx)
	district, err := p.districts.ResolveDistrict(dctx, point)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolve district: %w", err)
	}

	rctx, cancel := p.callContext(ctx)
	defer cancel()
	return p.risk.Classify(rctx, district)
}

func (p *Planner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// BuildResult assembles the final plan. scores[i] must be the classification
// of waypoints[i]; both the risk and the district of segment i come from it.
func BuildResult(id string, origin, destination domain.Coordinate, waypoints []domain.Coordinate, scores []domain.RiskScore) *domain.PlanResult {
	next := 0
	segments := Assemble(waypoints, func(domain.Coordinate) domain.RiskCategory {
		i := next
		next++
		if i >= len(scores) {
			return domain.RiskUnknown
		}
		return scores[i].Category
	})

	result := &domain.PlanResult{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		Segments:    segments,
		RiskSummary: make(map[domain.RiskCategory]int),
	}
	for i := range segments {
		if i < len(scores) {
			segments[i].District = domain.District{State: scores[i].State, District: scores[i].District}
		}
		result.DistanceMeters += segments[i].DistanceMeters
		result.RiskSummary[segments[i].Risk]++
	}
	return result
}

func (p *Planner) publishCompleted(ctx context.Context, run *planRun, req domain.PlanRequest, result *domain.PlanResult) {
	if p.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.events.PublishPlanCompleted(ctx, req, result); err != nil {
		run.logger.Warn("publish plan completed", "error", err)
	}
}

func (p *Planner) publishFailed(ctx context.Context, run *planRun, req domain.PlanRequest, planErr error) {
	if p.events == nil || errors.Is(planErr, context.Canceled) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.events.PublishPlanFailed(ctx, run.id, req, planErr); err != nil {
		run.logger.Warn("publish plan failed", "error", err)
	}
}
