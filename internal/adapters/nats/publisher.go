package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

const (
	StreamPlanEvents      = "PLAN_EVENTS"
	SubjectPlanCompleted  = "saferoute.events.plan.completed"
	SubjectPlanFailed     = "saferoute.events.plan.failed"
	subjectPlanEventsWild = "saferoute.events.plan.>"
)

// PlanCompletedEvent is published after a successful plan.
type PlanCompletedEvent struct {
	PlanID         string                      `json:"plan_id"`
	Origin         domain.Place                `json:"origin"`
	Destination    domain.Place                `json:"destination"`
	Segments       int                         `json:"segments"`
	DistanceMeters float64                     `json:"distance_m"`
	RiskSummary    map[domain.RiskCategory]int `json:"risk_summary"`
	At             time.Time                   `json:"at"`
}

// PlanFailedEvent is published when a plan fails.
type PlanFailedEvent struct {
	PlanID      string           `json:"plan_id"`
	Origin      domain.Place     `json:"origin"`
	Destination domain.Place     `json:"destination"`
	Stage       domain.PlanStage `json:"stage,omitempty"`
	Kind        domain.ErrorKind `json:"kind"`
	Message     string           `json:"message"`
	At          time.Time        `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream and ensures the plan
// events stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamPlanEvents,
		Subjects:  []string{subjectPlanEventsWild},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishPlanCompleted publishes a summary of a successful plan.
func (p *Publisher) PublishPlanCompleted(ctx context.Context, req domain.PlanRequest, result *domain.PlanResult) error {
	return p.publish(ctx, SubjectPlanCompleted, PlanCompletedEvent{
		PlanID:         result.ID,
		Origin:         req.Origin,
		Destination:    req.Destination,
		Segments:       len(result.Segments),
		DistanceMeters: result.DistanceMeters,
		RiskSummary:    result.RiskSummary,
		At:             time.Now().UTC(),
	})
}

// PublishPlanFailed publishes the failure kind and stage of a plan.
func (p *Publisher) PublishPlanFailed(ctx context.Context, planID string, req domain.PlanRequest, planErr error) error {
	return p.publish(ctx, SubjectPlanFailed, NewPlanFailedEvent(planID, req, planErr))
}

// NewPlanFailedEvent builds the event published for a failed plan.
func NewPlanFailedEvent(planID string, req domain.PlanRequest, planErr error) PlanFailedEvent {
	return PlanFailedEvent{
		PlanID:      planID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Kind:        domain.KindOf(planErr),
		Stage:       stageOf(planErr),
		Message:     planErr.Error(),
		At:          time.Now().UTC(),
	}
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %v", p.conn.Status())
	}
	return nil
}

// Conn exposes the underlying connection for request/reply use.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("saferoute"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
