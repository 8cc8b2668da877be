package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/ports"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityGeocodePlaces        = "GeocodePlaces"
	ActivityFetchRoute           = "FetchRoute"
	ActivityClassifyWaypoints    = "ClassifyWaypoints"
	ActivityPublishPlanCompleted = "PublishPlanCompleted"
	ActivityPublishPlanFailed    = "PublishPlanFailed"
)

// Endpoints are the geocoded origin and destination of a plan.
type Endpoints struct {
	Origin      domain.Coordinate `json:"origin"`
	Destination domain.Coordinate `json:"destination"`
}

// PlanActivities runs the external stages of the pipeline. Events may be nil.
type PlanActivities struct {
	Planner *usecases.Planner
	Events  ports.EventPublisher
}

// GeocodePlaces resolves origin then destination.
func (a *PlanActivities) GeocodePlaces(ctx context.Context, req domain.PlanRequest) (Endpoints, error) {
	origin, destination, err := a.Planner.ResolvePlaces(ctx, req)
	if err != nil {
		return Endpoints{}, applicationError(err)
	}
	return Endpoints{Origin: origin, Destination: destination}, nil
}

// FetchRoute returns the driving polyline between the endpoints.
func (a *PlanActivities) FetchRoute(ctx context.Context, ep Endpoints) ([]domain.Coordinate, error) {
	polyline, err := a.Planner.FetchRoute(ctx, ep.Origin, ep.Destination)
	if err != nil {
		return nil, applicationError(err)
	}
	activity.GetLogger(ctx).Info("route fetched", "points", len(polyline))
	return polyline, nil
}

// ClassifyWaypoints resolves the district and risk of every leading waypoint.
func (a *PlanActivities) ClassifyWaypoints(ctx context.Context, waypoints []domain.Coordinate) ([]domain.RiskScore, error) {
	scores, err := a.Planner.ClassifyWaypoints(ctx, waypoints)
	if err != nil {
		return nil, applicationError(err)
	}
	return scores, nil
}

// PublishPlanCompleted announces a finished plan.
func (a *PlanActivities) PublishPlanCompleted(ctx context.Context, req domain.PlanRequest, result *domain.PlanResult) error {
	if a.Events == nil {
		return nil
	}
	if err := a.Events.PublishPlanCompleted(ctx, req, result); err != nil {
		return fmt.Errorf("publish plan completed: %w", err)
	}
	return nil
}

// PublishPlanFailed announces a failed plan. kind and message describe the
// failure as the workflow saw it.
func (a *PlanActivities) PublishPlanFailed(ctx context.Context, planID string, req domain.PlanRequest, stage domain.PlanStage, kind domain.ErrorKind, message string) error {
	if a.Events == nil {
		return nil
	}
	planErr := &domain.StageError{Stage: stage, Err: domain.NewError(kind, message, nil)}
	if err := a.Events.PublishPlanFailed(ctx, planID, req, planErr); err != nil {
		return fmt.Errorf("publish plan failed: %w", err)
	}
	return nil
}

// applicationError turns a pipeline error into a non-retryable Temporal error
// whose type is the error kind. Retrying is the caller's decision, not ours.
func applicationError(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), string(domain.KindOf(err)), nil)
}
