package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
	"github.com/samirrijal/saferoute/internal/pkg/metrics"
)

// wsFrame is one server → client message. Type is "stage", "result" or
// "error".
type wsFrame struct {
	Type   string           `json:"type"`
	PlanID string           `json:"plan_id,omitempty"`
	Stage  domain.PlanStage `json:"stage,omitempty"`
	At     *time.Time       `json:"at,omitempty"`
	Result *PlanResponse    `json:"result,omitempty"`
	Error  *APIError        `json:"error,omitempty"`
}

// PlanStreamHandler upgrades to a WebSocket on which the client sends
// PlanRequest JSON messages. For each one the server streams the pipeline's
// stage transitions, then a result or error frame. One plan runs at a time
// per connection; closing the socket cancels it.
func PlanStreamHandler(planner *usecases.Planner, timeout time.Duration) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Info("ws client connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		var wg sync.WaitGroup
		busy := make(chan struct{}, 1)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var req domain.PlanRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				_ = writeJSON(wsFrame{Type: "error", Error: &APIError{Status: 400, Code: "bad_request", Message: "invalid JSON"}})
				continue
			}

			select {
			case busy <- struct{}{}:
			default:
				_ = writeJSON(wsFrame{Type: "error", Error: &APIError{Status: 409, Code: "busy", Message: "a plan is already running on this connection"}})
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-busy }()

				pctx, pcancel := context.WithTimeout(ctx, timeout)
				defer pcancel()

				observe := usecases.WithObserver(func(ev domain.StageEvent) {
					if ev.Stage.Terminal() {
						return
					}
					at := ev.At
					_ = writeJSON(wsFrame{Type: "stage", PlanID: ev.PlanID, Stage: ev.Stage, At: &at})
				})

				result, err := planner.Plan(pctx, req, observe, usecases.WithLogger(logger))
				if err != nil {
					_ = writeJSON(wsFrame{Type: "error", Error: wsError(err)})
					return
				}
				resp := newPlanResponse(result)
				_ = writeJSON(wsFrame{Type: "result", PlanID: result.ID, Stage: domain.StageDone, Result: &resp})
			}()
		}

		cancel()
		wg.Wait()
		logger.Info("ws client disconnected")
	}
}

func wsError(err error) *APIError {
	kind := domain.KindOf(err)
	e := &APIError{Status: 500, Code: string(kind), Message: "unable to calculate route", Detail: err.Error()}
	if resp, ok := kindResponses[kind]; ok {
		e.Status, e.Message = resp.status, resp.message
	}
	e.Stage = string(stageOf(err))
	return e
}
