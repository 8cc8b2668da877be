package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

// RiskRepo implements ports.RiskScoreRepository with pgx. It also satisfies
// ports.RiskClassifier so the stored table can stand in for the remote
// classification service.
type RiskRepo struct {
	db *DB
}

// NewRiskRepo creates a new RiskRepo.
func NewRiskRepo(db *DB) *RiskRepo {
	return &RiskRepo{db: db}
}

const upsertRiskScore = `
	INSERT INTO risk_scores (state, district, safety_score, risk_category, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT ((lower(state)), (lower(district))) DO UPDATE
	SET safety_score = EXCLUDED.safety_score,
	    risk_category = EXCLUDED.risk_category,
	    updated_at = now()
`

// UpsertBatch inserts or updates many classifications using pgx.Batch.
func (r *RiskRepo) UpsertBatch(ctx context.Context, scores []domain.RiskScore) error {
	batch := &pgx.Batch{}
	for _, s := range scores {
		batch.Queue(upsertRiskScore, s.State, s.District, s.SafetyScore, string(s.Category))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Get returns the classification of a district, matched case-insensitively.
func (r *RiskRepo) Get(ctx context.Context, state, district string) (*domain.RiskScore, error) {
	var s domain.RiskScore
	var category string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT state, district, safety_score, risk_category
		FROM risk_scores
		WHERE lower(state) = lower($1) AND lower(district) = lower($2)
	`, state, district).Scan(&s.State, &s.District, &s.SafetyScore, &category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewError(domain.KindUnknownRegion,
			fmt.Sprintf("location not found: %s, %s", district, state), nil)
	}
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	s.Category = domain.RiskCategory(category).Normalize()
	return &s, nil
}

// Classify implements ports.RiskClassifier.
func (r *RiskRepo) Classify(ctx context.Context, d domain.District) (*domain.RiskScore, error) {
	return r.Get(ctx, d.State, d.District)
}

// List returns classifications ordered by state then district. An empty state
// returns every row.
func (r *RiskRepo) List(ctx context.Context, state string) ([]domain.RiskScore, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT state, district, safety_score, risk_category
		FROM risk_scores
		WHERE $1 = '' OR lower(state) = lower($1)
		ORDER BY state, district
	`, state)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	defer rows.Close()

	var out []domain.RiskScore
	for rows.Next() {
		var s domain.RiskScore
		var category string
		if err := rows.Scan(&s.State, &s.District, &s.SafetyScore, &category); err != nil {
			return nil, lookupError(ctx, err)
		}
		s.Category = domain.RiskCategory(category).Normalize()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, lookupError(ctx, err)
	}
	return out, nil
}

// ListStates returns the distinct states, sorted.
func (r *RiskRepo) ListStates(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT state FROM risk_scores ORDER BY state`)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	return collectStrings(ctx, rows)
}

// ListDistricts returns the districts of a state, sorted.
func (r *RiskRepo) ListDistricts(ctx context.Context, state string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT district FROM risk_scores
		WHERE lower(state) = lower($1)
		ORDER BY district
	`, state)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	return collectStrings(ctx, rows)
}

func collectStrings(ctx context.Context, rows pgx.Rows) ([]string, error) {
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	return out, nil
}

// lookupError classifies a failed read. A finished context is returned as is
// so cancellation keeps its kind; anything else means the store is unreachable
// or failing.
func lookupError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return domain.NewError(domain.KindUpstreamUnavailable, "risk_scores lookup", err)
}
