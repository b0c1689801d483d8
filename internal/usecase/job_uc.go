package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/repository"
	"delta-backend/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// BackgroundScheduler runs tasks detached from the request lifecycle.
// The context it supplies outlives the request that triggered the task.
type BackgroundScheduler interface {
	Submit(task func(ctx context.Context) error) error
}

// RunnerRequest describes one model execution handed to the runner.
// Log must be called for progress lines; it returns domain.ErrJobCancelled
// once the job has been cancelled externally, which the runner must treat
// as a stop signal.
type RunnerRequest struct {
	JobID  string
	Model  string
	Domain string
	Log    func(line string) error
}

// ModelRunner stages a workspace and invokes the external scientific tool.
type ModelRunner interface {
	Run(ctx context.Context, req RunnerRequest) (map[string]string, error)
}

type CreateJobParams struct {
	Type   model.JobType
	Model  string
	Domain string
}

type JobUseCase interface {
	Create(ctx context.Context, params CreateJobParams) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	Pending(ctx context.Context) ([]*model.Job, error)
	Cancel(ctx context.Context, id string) (*model.Job, error)
	CleanupStalledJobs(ctx context.Context) (int, error)
}

type jobUC struct {
	repo   repository.JobRepository
	sched  BackgroundScheduler
	runner ModelRunner
	log    *zerolog.Logger
}

func NewJobUseCase(repo repository.JobRepository, sched BackgroundScheduler, runner ModelRunner, logger *zerolog.Logger) *jobUC {
	l := logger.With().Str("component", "JobUC").Logger()
	return &jobUC{repo: repo, sched: sched, runner: runner, log: &l}
}

// Create persists a PENDING job and schedules its worker. The worker runs on
// the scheduler's own context and repositories, never the request-scoped
// transaction, since it outlives the request.
func (u *jobUC) Create(ctx context.Context, params CreateJobParams) (*model.Job, error) {
	if u.repo == nil || u.sched == nil || u.runner == nil {
		return nil, domain.ErrUnavailable
	}
	modelName := params.Model
	if modelName == "" {
		modelName = "SUMMA"
	}
	domainName := params.Domain
	if domainName == "" {
		domainName = DefaultWatershed
	}
	jobType := params.Type
	if jobType == "" {
		jobType = model.JobTypeSimulation
	}

	job := model.NewJob(uuid.NewString(), jobType, map[string]string{
		"model":     modelName,
		"watershed": domainName,
	})
	if err := u.repo.Save(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	jobID := job.ID
	if err := u.sched.Submit(func(taskCtx context.Context) error {
		u.runJob(taskCtx, jobID)
		return nil
	}); err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Msg("failed to schedule job worker")
		return nil, fmt.Errorf("schedule job: %w", err)
	}
	u.log.Info().Str("job_id", jobID).Str("model", modelName).Str("domain", domainName).Msg("job created")
	return job, nil
}

func (u *jobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	if u.repo == nil {
		return nil, domain.ErrUnavailable
	}
	return u.repo.FindByID(ctx, nil, id)
}

func (u *jobUC) Pending(ctx context.Context) ([]*model.Job, error) {
	if u.repo == nil {
		return nil, domain.ErrUnavailable
	}
	return u.repo.FindByStatus(ctx, nil, model.JobStatusPending)
}

// Cancel is allowed only while the job is PENDING or RUNNING. Terminal jobs
// report not-found so a cancel can never move a job backward.
func (u *jobUC) Cancel(ctx context.Context, id string) (*model.Job, error) {
	if u.repo == nil {
		return nil, domain.ErrUnavailable
	}
	job, err := u.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPending && job.Status != model.JobStatusRunning {
		return nil, domain.ErrNotFound
	}
	if err := u.repo.UpdateStatus(ctx, nil, id, model.JobStatusCancelled); err != nil {
		return nil, err
	}
	_ = u.repo.AppendLog(ctx, nil, id, "Cancellation requested by operator.")
	u.log.Info().Str("job_id", id).Msg("job cancelled")
	return u.repo.FindByID(ctx, nil, id)
}

// CleanupStalledJobs runs once at process startup. Any job still PENDING or
// RUNNING is necessarily orphaned, since no worker survives a restart.
func (u *jobUC) CleanupStalledJobs(ctx context.Context) (int, error) {
	if u.repo == nil {
		return 0, nil
	}
	n, err := u.repo.MarkStalled(ctx, "Job marked STALLED: found unfinished at process startup.")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddStalledJobs(n)
		u.log.Warn().Int("count", n).Msg("stalled jobs swept")
	}
	return n, nil
}

// runJob is the detached worker body for one job.
func (u *jobUC) runJob(ctx context.Context, jobID string) {
	job, err := u.repo.FindByID(ctx, nil, jobID)
	if err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Msg("job vanished before execution")
		return
	}
	// Cancellation requested before the worker started.
	if job.Status == model.JobStatusCancelled {
		u.log.Info().Str("job_id", jobID).Msg("job cancelled before execution")
		return
	}

	if err := u.repo.UpdateStatus(ctx, nil, jobID, model.JobStatusRunning); err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job running")
		return
	}

	logf := func(line string) error { return u.appendLog(ctx, jobID, line) }
	if err := logf("Scientific model execution initialized..."); err != nil {
		u.finishCancelled(jobID)
		return
	}

	result, err := u.runner.Run(ctx, RunnerRequest{
		JobID:  jobID,
		Model:  job.Parameters["model"],
		Domain: job.Parameters["watershed"],
		Log:    logf,
	})
	switch {
	case errors.Is(err, domain.ErrJobCancelled):
		u.finishCancelled(jobID)
	case err != nil:
		_ = u.repo.AppendLog(ctx, nil, jobID, fmt.Sprintf("ERROR: %v\n%s", err, debug.Stack()))
		if uerr := u.repo.UpdateStatus(ctx, nil, jobID, model.JobStatusFailed); uerr != nil {
			u.log.Error().Err(uerr).Str("job_id", jobID).Msg("failed to mark job failed")
		}
		metrics.IncJob(string(model.JobStatusFailed))
		u.log.Error().Err(err).Str("job_id", jobID).Msg("modeling job failed")
	default:
		if err := u.repo.SetResult(ctx, nil, jobID, result); err != nil {
			u.log.Error().Err(err).Str("job_id", jobID).Msg("failed to store job result")
		}
		if err := u.repo.UpdateStatus(ctx, nil, jobID, model.JobStatusCompleted); err != nil {
			u.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job completed")
		}
		_ = logf("Process complete.")
		metrics.IncJob(string(model.JobStatusCompleted))
		u.log.Info().Str("job_id", jobID).Msg("modeling job completed")
	}
}

// appendLog re-reads the job status before writing so cancellation is
// observable mid-run: once CANCELLED, nothing is appended and the caller is
// told to stop.
func (u *jobUC) appendLog(ctx context.Context, jobID, line string) error {
	job, err := u.repo.FindByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusCancelled {
		return domain.ErrJobCancelled
	}
	return u.repo.AppendLog(ctx, nil, jobID, line)
}

func (u *jobUC) finishCancelled(jobID string) {
	metrics.IncJob(string(model.JobStatusCancelled))
	u.log.Info().Str("job_id", jobID).Msg("job cancelled mid-run, worker stopped")
}
