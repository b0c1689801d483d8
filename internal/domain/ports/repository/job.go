package repository

import (
	"context"

	"delta-backend/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	FindByStatus(ctx context.Context, tx Tx, statuses ...model.JobStatus) ([]*model.Job, error)
	// UpdateStatus transitions the job, refusing to move a terminal job backward.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.JobStatus) error
	// AppendLog atomically appends a line to the job log.
	AppendLog(ctx context.Context, tx Tx, id, line string) error
	SetResult(ctx context.Context, tx Tx, id string, result map[string]string) error
	// MarkStalled moves every PENDING/RUNNING job to STALLED with a log note
	// and returns how many rows were affected. Run once at process startup.
	MarkStalled(ctx context.Context, note string) (int, error)
}
