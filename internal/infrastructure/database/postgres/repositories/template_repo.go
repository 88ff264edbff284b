// Package repositories implements persistent stores on top of postgres.
package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/molkinetics/tsfinder/internal/domain/transition"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// TemplateRepository is a transition.TemplateStore backed by postgres.
// Templates are keyed by rearrangement signature; saving a signature that
// already exists replaces the stored distances, so the store always holds
// the most recently found saddle geometry for each reactive centre.
type TemplateRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewTemplateRepository creates a repository over an established pool.
func NewTemplateRepository(pool *pgxpool.Pool, log logging.Logger) *TemplateRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TemplateRepository{pool: pool, log: log}
}

// Save upserts a template under its signature.
func (r *TemplateRepository) Save(ctx context.Context, t *transition.Template) error {
	if t.Signature == "" {
		return errors.New(errors.ErrCodeTemplateInvalid, "template has no signature")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	distances, err := json.Marshal(t.Distances)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal template distances")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ts_templates (id, signature, charge, mult, distances, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signature) DO UPDATE SET
			charge     = EXCLUDED.charge,
			mult       = EXCLUDED.mult,
			distances  = EXCLUDED.distances,
			created_at = EXCLUDED.created_at
	`, t.ID, t.Signature, t.Charge, t.Mult, distances, t.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save template").
			WithDetail(t.Signature)
	}

	r.log.Debug("saved template",
		logging.String("signature", t.Signature),
		logging.Int("distances", len(t.Distances)))
	return nil
}

// Load returns the template stored under a signature, or an
// ErrCodeTemplateNotFound error when none exists.
func (r *TemplateRepository) Load(ctx context.Context, signature string) (*transition.Template, error) {
	var (
		t         transition.Template
		distances []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, signature, charge, mult, distances, created_at
		FROM ts_templates
		WHERE signature = $1
	`, signature).Scan(&t.ID, &t.Signature, &t.Charge, &t.Mult, &distances, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "no template for signature").
			WithDetail(signature)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load template").
			WithDetail(signature)
	}

	if err := json.Unmarshal(distances, &t.Distances); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "corrupt template distances").
			WithDetail(signature)
	}
	return &t, nil
}

// Count returns the number of stored templates.
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ts_templates`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count templates")
	}
	return n, nil
}

var _ transition.TemplateStore = (*TemplateRepository)(nil)
