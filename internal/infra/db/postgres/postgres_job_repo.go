package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*PostgresJobRepo)(nil)

type PostgresJobRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresJobRepo(pool *pgxpool.Pool) *PostgresJobRepo {
	return &PostgresJobRepo{pool: pool}
}

const jobColumns = `id, job_type, parameters, status, result, logs, created_at, updated_at`

func (r *PostgresJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, job_type, parameters, status, result, logs, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  parameters=$3, status=$4, result=$5, logs=$6, updated_at=NOW();
`
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, job.ID, job.Type, params, job.Status, result, job.Logs, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *PostgresJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(ex.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *PostgresJobRepo) FindByStatus(ctx context.Context, tx repository.Tx, statuses ...model.JobStatus) ([]*model.Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(s)
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY created_at ASC;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateStatus refuses to move a job that already reached a terminal state.
func (r *PostgresJobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus) error {
	const q = `
UPDATE jobs SET status=$2, updated_at=NOW()
 WHERE id=$1 AND status NOT IN ('COMPLETED','FAILED','CANCELLED','STALLED');`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, tx, id); ferr != nil {
			return ferr
		}
		return domain.ErrJobNotCancelable
	}
	return nil
}

func (r *PostgresJobRepo) AppendLog(ctx context.Context, tx repository.Tx, id, line string) error {
	const q = `UPDATE jobs SET logs = logs || $2 || E'\n', updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, line)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresJobRepo) SetResult(ctx context.Context, tx repository.Tx, id string, result map[string]string) error {
	const q = `UPDATE jobs SET result=$2, updated_at=NOW() WHERE id=$1;`
	encoded, err := marshalResult(result)
	if err != nil {
		return err
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresJobRepo) MarkStalled(ctx context.Context, note string) (int, error) {
	const q = `
UPDATE jobs SET status='STALLED', logs = logs || $1 || E'\n', updated_at=NOW()
 WHERE status IN ('PENDING','RUNNING');`
	tag, err := r.pool.Exec(ctx, q, note)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func marshalResult(result map[string]string) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return encoded, nil
}

// scanJob reads one job row; parameters and result are stored as JSONB.
func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job    model.Job
		params []byte
		result []byte
	)
	if err := row.Scan(&job.ID, &job.Type, &params, &job.Status, &result, &job.Logs, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return &job, nil
}
