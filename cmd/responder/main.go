package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/saferoute/internal/adapters/nats"
	"github.com/samirrijal/saferoute/internal/bootstrap"
	"github.com/samirrijal/saferoute/internal/pkg/config"
	"github.com/samirrijal/saferoute/internal/pkg/logging"
	"github.com/samirrijal/saferoute/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("saferoute-responder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("saferoute-responder", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	comps, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Events: true})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer comps.Close()

	// NATS
	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	responder := natsadapter.NewResponder(nc, comps.Planner, cfg.Planner.TimeoutDuration()+5*time.Second,
		natsadapter.WithConcurrency(cfg.NATS.Concurrency))
	if err := responder.Start(ctx); err != nil {
		log.Fatalf("responder: %v", err)
	}
	defer responder.Close()

	slog.Info("plan responder started", "subject", natsadapter.SubjectPlanRequest, "queue", natsadapter.QueuePlanners, "concurrency", cfg.NATS.Concurrency)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining subscription")
}
