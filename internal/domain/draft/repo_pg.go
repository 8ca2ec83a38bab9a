package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PGStore persists drafts as jsonb rows plus a per-owner current-pointer
// table. Drafts untouched for longer than the retention window are removed
// by Sweep.
type PGStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

var _ Store = (*PGStore)(nil)

func NewPGStore(pool *pgxpool.Pool, retention time.Duration) *PGStore {
	return &PGStore{pool: pool, retention: retention}
}

const draftCols = `id, owner, backend_patient_id, backend_report_id, current_step, record, created_at, last_saved_at`

func (s *PGStore) Create(ctx context.Context, owner string) (*ReportDraft, error) {
	d := NewReportDraft(owner)
	record, err := json.Marshal(d.Record)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO draft (id, owner, current_step, record, created_at, last_saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Owner, d.CurrentStep, record, d.CreatedAt, d.LastSavedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := s.SetCurrent(ctx, owner, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PGStore) Get(ctx context.Context, owner string, id uuid.UUID) (*ReportDraft, error) {
	return scanDraft(s.pool.QueryRow(ctx,
		`SELECT `+draftCols+` FROM draft WHERE owner = $1 AND id = $2`, owner, id))
}

func (s *PGStore) Update(ctx context.Context, owner string, d *ReportDraft) error {
	record, err := json.Marshal(d.Record)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE draft
		SET backend_patient_id = $3, backend_report_id = $4, current_step = $5, record = $6, last_saved_at = $7
		WHERE owner = $1 AND id = $2`,
		owner, d.ID, d.BackendPatientID, d.BackendReportID, d.CurrentStep, record, d.LastSavedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM draft WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM draft_current WHERE owner = $1 AND draft_id = $2`, owner, id)
	return err
}

func (s *PGStore) List(ctx context.Context, owner string, limit, offset int) ([]*ReportDraft, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM draft WHERE owner = $1`, owner).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+draftCols+` FROM draft
		WHERE owner = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`, owner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	drafts := []*ReportDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, 0, err
		}
		drafts = append(drafts, d)
	}
	return drafts, total, rows.Err()
}

func (s *PGStore) Current(ctx context.Context, owner string) (*ReportDraft, error) {
	d, err := scanDraft(s.pool.QueryRow(ctx, `
		SELECT d.id, d.owner, d.backend_patient_id, d.backend_report_id, d.current_step, d.record, d.created_at, d.last_saved_at
		FROM draft d
		JOIN draft_current c ON c.draft_id = d.id AND c.owner = d.owner
		WHERE c.owner = $1`, owner))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoCurrent
	}
	return d, err
}

func (s *PGStore) SetCurrent(ctx context.Context, owner string, id uuid.UUID) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO draft_current (owner, draft_id) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET draft_id = EXCLUDED.draft_id`,
		owner, id)
	return err
}

func (s *PGStore) ClearCurrent(ctx context.Context, owner string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM draft_current WHERE owner = $1`, owner)
	return err
}

// Sweep removes drafts idle past the retention window, mirroring the key
// expiry behavior of the redis backend.
func (s *PGStore) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	tag, err := s.pool.Exec(ctx, `DELETE FROM draft WHERE last_saved_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Info().Int64("removed", n).Msg("swept expired drafts")
		return n, nil
	}
	return 0, nil
}

// RunSweeper sweeps on the given interval until the context is canceled.
func (s *PGStore) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("draft sweep failed")
			}
		}
	}
}

func scanDraft(row pgx.Row) (*ReportDraft, error) {
	var d ReportDraft
	var record []byte
	err := row.Scan(&d.ID, &d.Owner, &d.BackendPatientID, &d.BackendReportID,
		&d.CurrentStep, &record, &d.CreatedAt, &d.LastSavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// A corrupted record column degrades to an empty record.
	if err := json.Unmarshal(record, &d.Record); err != nil {
		log.Warn().Str("draft_id", d.ID.String()).Msg("draft record corrupted, starting empty")
		d.Record = ReportRecord{}
	}
	return &d, nil
}
