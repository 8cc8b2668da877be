package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

// TaskQueue is the default queue plan workers poll.
const TaskQueue = "plan-queue"

// QueryStage returns the current pipeline stage of a running plan.
const QueryStage = "stage"

// PlanInput is the input of PlanRouteWorkflow. Stride and KeepDestination
// are the worker-independent simplification settings; a positive
// Request.Stride still overrides Stride.
type PlanInput struct {
	PlanID          string             `json:"plan_id"`
	Request         domain.PlanRequest `json:"request"`
	Stride          int                `json:"stride"`
	KeepDestination bool               `json:"keep_destination"`
}

// NewPlanInput builds a workflow input from the planner configuration.
func NewPlanInput(planID string, req domain.PlanRequest, cfg usecases.PlannerConfig) PlanInput {
	return PlanInput{
		PlanID:          planID,
		Request:         req,
		Stride:          cfg.Stride,
		KeepDestination: cfg.KeepDestination,
	}
}

// PlanRouteWorkflow runs the pipeline as a durable workflow: each external
// stage is one activity, simplification and assembly run in the workflow.
// Activities are not retried; a failure ends the workflow with an
// ApplicationError typed by error kind and carrying the failed stage.
func PlanRouteWorkflow(ctx workflow.Context, in PlanInput) (*domain.PlanResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting plan workflow", "planID", in.PlanID)

	stage := domain.StageIdle
	if err := workflow.SetQueryHandler(ctx, QueryStage, func() (domain.PlanStage, error) {
		return stage, nil
	}); err != nil {
		return nil, err
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	fail := func(err error) (*domain.PlanResult, error) {
		failed := stage
		stage = domain.StageFailed
		kind, msg := failureOf(err)
		logger.Warn("plan failed", "stage", failed, "kind", kind, "error", msg)
		if kind != domain.KindCanceled {
			pubCtx, cancel := workflow.NewDisconnectedContext(ctx)
			defer cancel()
			_ = workflow.ExecuteActivity(pubCtx, ActivityPublishPlanFailed, in.PlanID, in.Request, failed, kind, msg).Get(pubCtx, nil)
		}
		return nil, temporal.NewNonRetryableApplicationError(msg, string(kind), nil, failed)
	}

	if err := usecases.ValidateRequest(in.Request); err != nil {
		return fail(err)
	}

	// Step 1: Geocode both places
	stage = domain.StageGeocoding
	var ep Endpoints
	if err := workflow.ExecuteActivity(ctx, ActivityGeocodePlaces, in.Request).Get(ctx, &ep); err != nil {
		return fail(err)
	}

	// Step 2: Fetch the route
	stage = domain.StageRouting
	var polyline []domain.Coordinate
	if err := workflow.ExecuteActivity(ctx, ActivityFetchRoute, ep).Get(ctx, &polyline); err != nil {
		return fail(err)
	}

	// Step 3: Decimate
	stage = domain.StageSimplifying
	stride := in.Request.Stride
	if stride < 1 {
		stride = in.Stride
	}
	if stride < 1 {
		stride = usecases.DefaultStride
	}
	waypoints := usecases.Simplify(polyline, stride, in.KeepDestination)

	// Step 4: Classify leading waypoints
	stage = domain.StageSegmenting
	classifyCtx := workflow.WithStartToCloseTimeout(ctx, 2*time.Minute)
	var scores []domain.RiskScore
	if err := workflow.ExecuteActivity(classifyCtx, ActivityClassifyWaypoints, waypoints).Get(classifyCtx, &scores); err != nil {
		return fail(err)
	}
	if len(waypoints) >= 2 && len(scores) != len(waypoints)-1 {
		return fail(domain.NewError(domain.KindInternal, "classification count does not match waypoints", nil))
	}

	result := usecases.BuildResult(in.PlanID, ep.Origin, ep.Destination, waypoints, scores)
	stage = domain.StageDone

	if err := workflow.ExecuteActivity(ctx, ActivityPublishPlanCompleted, in.Request, result).Get(ctx, nil); err != nil {
		logger.Warn("publish plan completed", "error", err)
	}

	logger.Info("Plan workflow done", "segments", len(result.Segments))
	return result, nil
}

// failureOf recovers the error kind from an activity failure.
func failureOf(err error) (domain.ErrorKind, string) {
	var appErr *temporal.ApplicationError
	switch {
	case errors.As(err, &appErr):
		return domain.ErrorKind(appErr.Type()), appErr.Error()
	case temporal.IsTimeoutError(err):
		return domain.KindUpstreamUnavailable, err.Error()
	case temporal.IsCanceledError(err):
		return domain.KindCanceled, err.Error()
	}
	return domain.KindOf(err), err.Error()
}

// PlanError converts a PlanRouteWorkflow failure back into a
// *domain.StageError so callers can map it like a synchronous plan error.
func PlanError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	var stage domain.PlanStage
	if appErr.HasDetails() {
		_ = appErr.Details(&stage)
	}
	return &domain.StageError{
		Stage: stage,
		Err:   domain.NewError(domain.ErrorKind(appErr.Type()), appErr.Error(), nil),
	}
}
