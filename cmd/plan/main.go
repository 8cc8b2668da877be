// Command plan runs one route risk plan from the terminal, in-process by
// default or through the NATS responder or the Temporal worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kr/pretty"
	flag "github.com/spf13/pflag"
	"go.temporal.io/sdk/client"

	natsadapter "github.com/samirrijal/saferoute/internal/adapters/nats"
	"github.com/samirrijal/saferoute/internal/bootstrap"
	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
	"github.com/samirrijal/saferoute/internal/pkg/config"
	"github.com/samirrijal/saferoute/internal/pkg/logging"
	"github.com/samirrijal/saferoute/internal/workflows"
)

func main() {
	from := flag.String("from", "", "origin place")
	to := flag.String("to", "", "destination place")
	stride := flag.Int("stride", 0, "keep every n-th route point (0 = configured default)")
	async := flag.Bool("async", false, "run as a Temporal workflow")
	viaNATS := flag.Bool("nats", false, "send the request to a NATS plan responder")
	asJSON := flag.Bool("json", false, "print JSON instead of a pretty dump")
	verbose := flag.BoolP("verbose", "v", false, "log stage transitions")
	flag.Parse()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "usage: plan --from <place> --to <place> [--stride n] [--async|--nats] [--json]")
		os.Exit(2)
	}

	cfg, err := config.Load("saferoute-cli")
	if err != nil {
		fatal(err)
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Setup("saferoute-cli", level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Planner.TimeoutDuration()+10*time.Second)
	defer cancel()

	req := domain.PlanRequest{Origin: domain.Place(*from), Destination: domain.Place(*to), Stride: *stride}
	planID := uuid.NewString()

	var result *domain.PlanResult
	switch {
	case *async:
		result, err = planWorkflow(ctx, cfg, planID, req)
	case *viaNATS:
		result, err = planNATS(ctx, cfg, planID, req)
	default:
		result, err = planLocal(ctx, cfg, planID, req, *verbose)
	}
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	pretty.Println(result)
}

func planLocal(ctx context.Context, cfg *config.Config, planID string, req domain.PlanRequest, verbose bool) (*domain.PlanResult, error) {
	comps, err := bootstrap.Build(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	defer comps.Close()

	opts := []usecases.PlanOption{usecases.WithPlanID(planID)}
	if verbose {
		opts = append(opts, usecases.WithObserver(func(ev domain.StageEvent) {
			fmt.Fprintf(os.Stderr, "%s  %s\n", ev.At.Format("15:04:05.000"), ev.Stage)
		}))
	}
	return comps.Planner.Plan(ctx, req, opts...)
}

func planNATS(ctx context.Context, cfg *config.Config, planID string, req domain.PlanRequest) (*domain.PlanResult, error) {
	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	return natsadapter.RequestPlan(ctx, nc, natsadapter.PlanMessage{ID: planID, PlanRequest: req})
}

func planWorkflow(ctx context.Context, cfg *config.Config, planID string, req domain.PlanRequest) (*domain.PlanResult, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "plan-" + planID,
		TaskQueue:                cfg.Temporal.TaskQueue,
		WorkflowExecutionTimeout: cfg.Planner.TimeoutDuration() + 5*time.Second,
	}, workflows.PlanRouteWorkflow, workflows.NewPlanInput(planID, req, bootstrap.PlannerConfig(cfg)))
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}
	fmt.Fprintf(os.Stderr, "workflow %s (run %s)\n", run.GetID(), run.GetRunID())

	var result domain.PlanResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, workflows.PlanError(err)
	}
	return &result, nil
}

func fatal(err error) {
	var se *domain.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "plan failed in %s (%s): %v\n", se.Stage, domain.KindOf(err), se.Err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
