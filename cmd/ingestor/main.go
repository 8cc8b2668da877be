package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/saferoute/internal/adapters/postgres"
	"github.com/samirrijal/saferoute/internal/adapters/valkey"
	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
	"github.com/samirrijal/saferoute/internal/pkg/config"
	"github.com/samirrijal/saferoute/internal/pkg/logging"
)

const batchSize = 500

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ingestor <risk_scores.csv>")
	}

	cfg, err := config.Load("saferoute-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("saferoute-ingestor", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open %s: %v", os.Args[1], err)
	}
	defer f.Close()

	scores, skipped := parseScores(f)
	for _, err := range skipped {
		slog.Warn("skipping row", "error", err)
	}
	slog.Info("parsed risk scores", "file", os.Args[1], "rows", len(scores), "skipped", len(skipped))

	catalog := usecases.NewRiskCatalogService(postgres.NewRiskRepo(db))
	total := 0
	for start := 0; start < len(scores); start += batchSize {
		end := min(start+batchSize, len(scores))
		n, err := catalog.Import(ctx, scores[start:end])
		if err != nil {
			log.Fatalf("import rows %d-%d: %v", start+1, end, err)
		}
		total += n
	}

	invalidateCache(ctx, cfg, scores)
	slog.Info("ingestion complete", "upserted", total)
}

// invalidateCache drops cached classifications of the imported districts so
// planners see the new scores before the TTL runs out.
func invalidateCache(ctx context.Context, cfg *config.Config, scores []domain.RiskScore) {
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, cached scores expire on their own", "error", err)
		return
	}
	defer cache.Close()

	risk := usecases.NewRiskService(nil, cache, cfg.Risk.CacheTTL)
	failed := 0
	for _, s := range scores {
		if err := risk.Invalidate(ctx, domain.District{State: s.State, District: s.District}); err != nil {
			failed++
		}
	}
	if failed > 0 {
		slog.Warn("cache invalidation incomplete", "failed", failed)
	}
}

// parseScores reads state,district,safety_score[,risk_category] rows. The
// header row is required; column order is free. Malformed rows are returned
// as errors and left out.
func parseScores(r io.Reader) ([]domain.RiskScore, []error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("read header: %w", err)}
	}
	cols := indexColumns(header)
	for _, required := range []string{"state", "district", "safety_score"} {
		if _, ok := cols[required]; !ok {
			return nil, []error{fmt.Errorf("missing column %q", required)}
		}
	}

	var (
		scores []domain.RiskScore
		errs   []error
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		score, err := strconv.ParseFloat(getField(record, cols, "safety_score"), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: safety_score: %w", line, err))
			continue
		}
		s := domain.RiskScore{
			State:       getField(record, cols, "state"),
			District:    getField(record, cols, "district"),
			SafetyScore: score,
			Category:    domain.RiskCategory(getField(record, cols, "risk_category")),
		}
		if s.State == "" || s.District == "" {
			errs = append(errs, fmt.Errorf("line %d: state and district are required", line))
			continue
		}
		if s.SafetyScore < 0 || s.SafetyScore > 100 {
			errs = append(errs, fmt.Errorf("line %d: safety_score %.2f out of range [0,100]", line, s.SafetyScore))
			continue
		}
		scores = append(scores, s)
	}
	return scores, errs
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
