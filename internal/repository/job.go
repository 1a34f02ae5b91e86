package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const jobColumns = `id, user_id, status, training_type, specialization, epochs, current_epoch, progress_percentage,
	loss_value, accuracy_value, training_data_count, example_ids, model_id, error_message, created_at, started_at, completed_at`

// EpochProgress is one persisted step of a running job.
type EpochProgress struct {
	Epoch    int
	Percent  int
	Loss     float64
	Accuracy float64
}

// JobRepository persists training jobs. Status transitions are guarded in SQL so
// that a job reaches exactly one terminal state.
type JobRepository interface {
	Create(ctx context.Context, job *models.TrainingJob) error
	GetByID(ctx context.Context, userID, id string) (*models.TrainingJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.TrainingJob, error)
	FindActive(ctx context.Context, userID string) (*models.TrainingJob, error)
	MarkRunning(ctx context.Context, id string, at time.Time) error
	UpdateProgress(ctx context.Context, id string, p EpochProgress) error
	Complete(ctx context.Context, job *models.TrainingJob, model *models.Model, exampleIDs []string) error
	Fail(ctx context.Context, id, reason string, at time.Time) error
}

type jobRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewJobRepository(db *sqlx.DB, logger *zap.Logger) JobRepository {
	return &jobRepository{db: db, logger: logger.Named("job_repo")}
}

// Create inserts a pending job. ErrDuplicate means the user already has an active job.
func (r *jobRepository) Create(ctx context.Context, j *models.TrainingJob) error {
	query := r.db.Rebind(`INSERT INTO training_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.UserID, j.Status, j.TrainingType, j.Specialization, j.Epochs, j.CurrentEpoch, j.ProgressPercentage,
		j.LossValue, j.AccuracyValue, j.TrainingDataCount, j.ExampleIDs, j.ModelID, j.ErrorMessage,
		j.CreatedAt, j.StartedAt, j.CompletedAt)
	return translate(err)
}

func (r *jobRepository) GetByID(ctx context.Context, userID, id string) (*models.TrainingJob, error) {
	var j models.TrainingJob
	query := r.db.Rebind(`SELECT ` + jobColumns + ` FROM training_jobs WHERE id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &j, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (r *jobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.TrainingJob, error) {
	query := r.db.Rebind(`SELECT ` + jobColumns + ` FROM training_jobs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	jobs := []*models.TrainingJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, userID, limit); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindActive returns the user's pending or running job, or ErrNotFound.
func (r *jobRepository) FindActive(ctx context.Context, userID string) (*models.TrainingJob, error) {
	var j models.TrainingJob
	query := r.db.Rebind(`SELECT ` + jobColumns + ` FROM training_jobs WHERE user_id = ? AND status IN (?, ?) LIMIT 1`)
	if err := r.db.GetContext(ctx, &j, query, userID, models.JobPending, models.JobRunning); err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (r *jobRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	query := r.db.Rebind(`UPDATE training_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, query, models.JobRunning, at, id, models.JobPending)
	if err != nil {
		return err
	}
	return expectOne(res, ErrStateConflict)
}

// UpdateProgress only ever moves a running job forward; stale or repeated epochs are ignored.
func (r *jobRepository) UpdateProgress(ctx context.Context, id string, p EpochProgress) error {
	query := r.db.Rebind(`UPDATE training_jobs
		SET current_epoch = ?, progress_percentage = ?, loss_value = ?, accuracy_value = ?
		WHERE id = ? AND status = ? AND current_epoch < ? AND progress_percentage <= ?`)
	_, err := r.db.ExecContext(ctx, query, p.Epoch, p.Percent, p.Loss, p.Accuracy, id, models.JobRunning, p.Epoch, p.Percent)
	return err
}

// Complete finishes a running job in one transaction: the job turns completed, the
// model is inserted as the user's only active model and the consumed examples are
// marked as used.
func (r *jobRepository) Complete(ctx context.Context, job *models.TrainingJob, model *models.Model, exampleIDs []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE training_jobs
			SET status = ?, model_id = ?, current_epoch = ?, progress_percentage = 100,
			    loss_value = ?, accuracy_value = ?, completed_at = ?
			WHERE id = ? AND status = ?`)
		res, err := tx.ExecContext(ctx, query,
			models.JobCompleted, model.ID, job.Epochs, job.LossValue, job.AccuracyValue, job.CompletedAt,
			job.ID, models.JobRunning)
		if err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		if err := expectOne(res, ErrStateConflict); err != nil {
			return err
		}

		if model.IsActive {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE models SET is_active = ? WHERE user_id = ? AND is_active = ?`),
				false, model.UserID, true); err != nil {
				return fmt.Errorf("deactivate models: %w", err)
			}
		}
		if err := insertModel(ctx, tx, model); err != nil {
			return err
		}

		if len(exampleIDs) > 0 {
			q, args, err := sqlx.In(`UPDATE training_data SET used_in_training = ? WHERE user_id = ? AND id IN (?)`,
				true, job.UserID, exampleIDs)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
				return fmt.Errorf("mark examples used: %w", err)
			}
		}
		return nil
	})
}

// Fail moves a non-terminal job to failed. A job that already finished is left alone.
func (r *jobRepository) Fail(ctx context.Context, id, reason string, at time.Time) error {
	query := r.db.Rebind(`UPDATE training_jobs SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`)
	res, err := r.db.ExecContext(ctx, query, models.JobFailed, reason, at, id, models.JobPending, models.JobRunning)
	if err != nil {
		return err
	}
	return expectOne(res, ErrStateConflict)
}
