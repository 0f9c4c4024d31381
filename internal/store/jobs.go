package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sitewright/internal/provision"
)

// activeTenantIndex is the partial unique index that serializes jobs per
// tenant. An insert that trips it means another job is queued or running.
const activeTenantIndex = "provisioning_jobs_active_tenant_idx"

const jobColumns = `id, tenant_id, type, status, progress, current_step, steps_total,
	steps_completed, external_refs, compensation, error_message, started_at, completed_at, created_at`

func scanJob(row pgx.Row) (*provision.JobRecord, error) {
	var j provision.JobRecord
	var refs, comp []byte
	err := row.Scan(&j.ID, &j.TenantID, &j.Type, &j.Status, &j.Progress, &j.CurrentStep,
		&j.StepsTotal, &j.StepsCompleted, &refs, &comp, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, provision.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &j.ExternalRefs); err != nil {
			return nil, err
		}
	}
	if len(comp) > 0 {
		if err := json.Unmarshal(comp, &j.Compensation); err != nil {
			return nil, err
		}
	}
	return &j, nil
}

func marshalJobJSON(j *provision.JobRecord) (refs, comp []byte, err error) {
	refs, err = json.Marshal(j.ExternalRefs)
	if err != nil {
		return nil, nil, err
	}
	comp, err = json.Marshal(j.Compensation)
	if err != nil {
		return nil, nil, err
	}
	return refs, comp, nil
}

// CreateJob inserts a new provisioning job. If the tenant already has a
// queued or running job the partial unique index rejects the insert and
// provision.ErrTenantBusy is returned.
func (s *Store) CreateJob(ctx context.Context, j *provision.JobRecord) error {
	refs, comp, err := marshalJobJSON(j)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO provisioning_jobs
			(id, tenant_id, type, status, progress, current_step, steps_total,
			 steps_completed, external_refs, compensation, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.TenantID, j.Type, j.Status, j.Progress, j.CurrentStep, j.StepsTotal,
		j.StepsCompleted, refs, comp, j.ErrorMessage, j.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeTenantIndex {
		return provision.ErrTenantBusy
	}
	return err
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*provision.JobRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM provisioning_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListTenantJobs returns a tenant's job history, newest first.
func (s *Store) ListTenantJobs(ctx context.Context, tenantID uuid.UUID) ([]*provision.JobRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+` FROM provisioning_jobs
		WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*provision.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJob persists the full mutable state of a job record. Terminal
// records are immutable: the write is guarded on the persisted status,
// so a cancel that landed while a step was executing is never
// resurrected by the runner's in-memory copy. A guarded-out write
// returns provision.ErrJobFinished.
func (s *Store) UpdateJob(ctx context.Context, j *provision.JobRecord) error {
	refs, comp, err := marshalJobJSON(j)
	if err != nil {
		return err
	}

	tag, err := s.Pool.Exec(ctx, `
		UPDATE provisioning_jobs SET
			status = $2, progress = $3, current_step = $4, steps_completed = $5,
			external_refs = $6, compensation = $7, error_message = $8,
			started_at = $9, completed_at = $10
		WHERE id = $1 AND status NOT IN ($11, $12, $13)`,
		j.ID, j.Status, j.Progress, j.CurrentStep, j.StepsCompleted,
		refs, comp, j.ErrorMessage, j.StartedAt, j.CompletedAt,
		provision.StatusCompleted, provision.StatusFailed, provision.StatusCancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var st provision.Status
		err := s.Pool.QueryRow(ctx,
			`SELECT status FROM provisioning_jobs WHERE id = $1`, j.ID).Scan(&st)
		if errors.Is(err, pgx.ErrNoRows) {
			return provision.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		return provision.ErrJobFinished
	}
	return nil
}

// ListActiveJobs returns all queued or running jobs, oldest first, for
// resume after a restart.
func (s *Store) ListActiveJobs(ctx context.Context) ([]*provision.JobRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+` FROM provisioning_jobs
		WHERE status IN ($1, $2) ORDER BY created_at`,
		provision.StatusQueued, provision.StatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*provision.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeleteExpiredJobsByType removes terminal jobs of one type that
// finished before the cutoff.
func (s *Store) DeleteExpiredJobsByType(ctx context.Context, jobType string, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM provisioning_jobs
		WHERE type = $1
		  AND status IN ($2, $3, $4)
		  AND completed_at IS NOT NULL
		  AND completed_at < $5`,
		jobType, provision.StatusCompleted, provision.StatusFailed, provision.StatusCancelled, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
