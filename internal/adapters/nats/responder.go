package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

const (
	SubjectPlanRequest = "saferoute.plan.request"
	QueuePlanners      = "planners"
)

// Planner is the subset of *usecases.Planner the responder needs.
type Planner interface {
	Plan(ctx context.Context, req domain.PlanRequest, opts ...usecases.PlanOption) (*domain.PlanResult, error)
}

// PlanMessage is the request payload.
type PlanMessage struct {
	ID string `json:"id,omitempty"`
	domain.PlanRequest
}

// ReplyError is the error half of a reply.
type ReplyError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Stage   domain.PlanStage `json:"stage,omitempty"`
	Message string           `json:"message"`
}

func (e *ReplyError) Error() string { return string(e.Kind) + ": " + e.Message }

// PlanReply is the response payload: exactly one of Result and Error is set.
type PlanReply struct {
	Result *domain.PlanResult `json:"result,omitempty"`
	Error  *ReplyError        `json:"error,omitempty"`
}

// DefaultConcurrency is the number of plans a Responder serves at once
// unless WithConcurrency says otherwise.
const DefaultConcurrency = 4

// Responder answers plan requests on a NATS queue group so several planner
// processes share the load. Within one process requests run on a bounded
// pool of workers.
type Responder struct {
	conn        *nats.Conn
	planner     Planner
	timeout     time.Duration
	concurrency int
	sub         *nats.Subscription
	workers     errgroup.Group
}

// ResponderOption customises a Responder.
type ResponderOption func(*Responder)

// WithConcurrency caps the number of plans served at once.
func WithConcurrency(n int) ResponderOption {
	return func(r *Responder) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewResponder creates a responder. timeout bounds each request.
func NewResponder(conn *nats.Conn, planner Planner, timeout time.Duration, opts ...ResponderOption) *Responder {
	r := &Responder{conn: conn, planner: planner, timeout: timeout, concurrency: DefaultConcurrency}
	for _, o := range opts {
		o(r)
	}
	r.workers.SetLimit(r.concurrency)
	return r
}

// Start subscribes to SubjectPlanRequest in the QueuePlanners group. Requests
// are served until ctx is done or Close is called.
func (r *Responder) Start(ctx context.Context) error {
	sub, err := r.conn.QueueSubscribe(SubjectPlanRequest, QueuePlanners, func(msg *nats.Msg) {
		if msg.Reply == "" {
			return
		}
		r.Serve(ctx, msg.Data, msg.Respond)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectPlanRequest, err)
	}
	r.sub = sub
	return nil
}

// Serve runs one request on the worker pool and hands the reply to respond.
// It blocks while every worker is busy, which holds back further deliveries
// from the subscription.
func (r *Responder) Serve(ctx context.Context, data []byte, respond func([]byte) error) {
	r.workers.Go(func() error {
		if err := respond(r.Handle(ctx, data)); err != nil {
			slog.Warn("nats respond failed", "error", err)
		}
		return nil
	})
}

// Handle runs one plan request and encodes the reply.
func (r *Responder) Handle(ctx context.Context, data []byte) []byte {
	var msg PlanMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return encodeReply(PlanReply{Error: &ReplyError{
			Kind:    domain.KindInvalidInput,
			Message: "invalid JSON body",
		}})
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.planner.Plan(ctx, msg.PlanRequest, usecases.WithPlanID(msg.ID))
	if err != nil {
		return encodeReply(PlanReply{Error: &ReplyError{
			Kind:    domain.KindOf(err),
			Stage:   stageOf(err),
			Message: err.Error(),
		}})
	}
	return encodeReply(PlanReply{Result: result})
}

// Close stops new deliveries and waits for in-flight plans to reply.
func (r *Responder) Close() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	_ = r.workers.Wait()
}

// RequestPlan sends a plan request and waits for the reply.
func RequestPlan(ctx context.Context, conn *nats.Conn, msg PlanMessage) (*domain.PlanResult, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	resp, err := conn.RequestWithContext(ctx, SubjectPlanRequest, data)
	if err != nil {
		return nil, fmt.Errorf("nats request: %w", err)
	}
	var reply PlanReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != nil {
		planErr := domain.NewError(reply.Error.Kind, reply.Error.Message, nil)
		if reply.Error.Stage != "" {
			return nil, &domain.StageError{Stage: reply.Error.Stage, Err: planErr}
		}
		return nil, planErr
	}
	if reply.Result == nil {
		return nil, errors.New("empty reply")
	}
	return reply.Result, nil
}

func encodeReply(r PlanReply) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(PlanReply{Error: &ReplyError{Kind: domain.KindInternal, Message: err.Error()}})
	}
	return data
}

func stageOf(err error) domain.PlanStage {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
