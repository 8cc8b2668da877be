package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/saferoute/internal/bootstrap"
	"github.com/samirrijal/saferoute/internal/pkg/config"
	"github.com/samirrijal/saferoute/internal/pkg/logging"
	"github.com/samirrijal/saferoute/internal/workflows"
)

func main() {
	cfg, err := config.Load("saferoute-planworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup("saferoute-planworker", cfg.Log.Level, cfg.Log.Format)

	comps, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Events: true})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer comps.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.PlanRouteWorkflow)
	acts := &workflows.PlanActivities{Planner: comps.Planner}
	if comps.Events != nil {
		acts.Events = comps.Events
	}
	w.RegisterActivity(acts)

	slog.Info("plan worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
