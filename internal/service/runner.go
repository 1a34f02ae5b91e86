package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/notify"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
)

var ErrRunnerClosed = errors.New("training runner is shut down")

const (
	reasonCancelled = "training cancelled"
	// writes after cancellation get their own deadline
	finalizeTimeout = 5 * time.Second
)

// Runner executes training jobs in the background, one goroutine per job.
type Runner struct {
	jobs       repository.JobRepository
	models     repository.ModelRepository
	trainer    Trainer
	notifier   notify.Notifier
	epochDelay time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRunner(jobs repository.JobRepository, models repository.ModelRepository, trainer Trainer,
	notifier notify.Notifier, epochDelay time.Duration, logger *zap.Logger) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:       jobs,
		models:     models,
		trainer:    trainer,
		notifier:   notifier,
		epochDelay: epochDelay,
		logger:     logger.Named("runner"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs job in the background. It fails once Shutdown has been called.
func (r *Runner) Start(job *models.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	owned := *job
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(r.ctx, &owned)
	}()
	return nil
}

// Shutdown cancels running jobs and waits for them to record their outcome.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type epochRecord struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

type performanceMetrics struct {
	BestAccuracy     float64       `json:"bestAccuracy"`
	FinalLoss        float64       `json:"finalLoss"`
	FinalAccuracy    float64       `json:"finalAccuracy"`
	Epochs           int           `json:"epochs"`
	TrainingExamples int           `json:"trainingExamples"`
	TrainingType     string        `json:"trainingType"`
	History          []epochRecord `json:"history"`
}

func (r *Runner) run(ctx context.Context, job *models.TrainingJob) {
	log := r.logger.With(zap.String("job_id", job.ID), zap.String("user_id", job.UserID))

	if err := r.jobs.MarkRunning(ctx, job.ID, now()); err != nil {
		reason := fmt.Sprintf("start training: %v", err)
		if ctx.Err() != nil {
			reason = reasonCancelled
		}
		r.fail(job, reason, log)
		return
	}
	job.Status = models.JobRunning
	log.Info("Training started", zap.Int("epochs", job.Epochs), zap.Int("examples", job.TrainingDataCount))

	metrics := performanceMetrics{
		Epochs:           job.Epochs,
		TrainingExamples: job.TrainingDataCount,
		TrainingType:     string(job.TrainingType),
		History:          make([]epochRecord, 0, job.Epochs),
	}

	timer := time.NewTimer(r.epochDelay)
	defer timer.Stop()
	for epoch := 1; epoch <= job.Epochs; epoch++ {
		if epoch > 1 {
			timer.Reset(r.epochDelay)
		}
		select {
		case <-ctx.Done():
			r.fail(job, reasonCancelled, log)
			return
		case <-timer.C:
		}

		m, err := r.trainer.TrainEpoch(ctx, EpochInput{
			Epoch:          epoch,
			Epochs:         job.Epochs,
			Specialization: job.Specialization,
			ExampleCount:   job.TrainingDataCount,
		})
		if err != nil {
			if ctx.Err() != nil {
				r.fail(job, reasonCancelled, log)
			} else {
				r.fail(job, fmt.Sprintf("epoch %d: %v", epoch, err), log)
			}
			return
		}

		metrics.History = append(metrics.History, epochRecord{Epoch: epoch, Loss: m.Loss, Accuracy: m.Accuracy})
		if m.Accuracy > metrics.BestAccuracy {
			metrics.BestAccuracy = m.Accuracy
		}
		metrics.FinalLoss, metrics.FinalAccuracy = m.Loss, m.Accuracy

		progress := repository.EpochProgress{
			Epoch:    epoch,
			Percent:  epoch * 100 / job.Epochs,
			Loss:     m.Loss,
			Accuracy: m.Accuracy,
		}
		if err := r.jobs.UpdateProgress(ctx, job.ID, progress); err != nil {
			if ctx.Err() != nil {
				r.fail(job, reasonCancelled, log)
			} else {
				r.fail(job, fmt.Sprintf("record progress: %v", err), log)
			}
			return
		}
		job.CurrentEpoch, job.ProgressPercentage = epoch, progress.Percent
		log.Debug("Epoch finished", zap.Int("epoch", epoch), zap.Float64("loss", m.Loss), zap.Float64("accuracy", m.Accuracy))
	}

	model, err := r.complete(ctx, job, metrics)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			log.Warn("Job left running state before completion")
			return
		}
		if ctx.Err() != nil {
			r.fail(job, reasonCancelled, log)
			return
		}
		r.fail(job, fmt.Sprintf("complete training: %v", err), log)
		return
	}

	log.Info("Training completed", zap.String("model_id", model.ID), zap.Float64("accuracy", model.Accuracy))
	r.notifier.TrainingCompleted(context.WithoutCancel(ctx), job, model)
}

func (r *Runner) complete(ctx context.Context, job *models.TrainingJob, metrics performanceMetrics) (*models.Model, error) {
	version, err := r.models.NextVersion(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("next model version: %w", err)
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return nil, err
	}

	finished := now()
	jobID := job.ID
	model := &models.Model{
		ID:                 uuid.NewString(),
		UserID:             job.UserID,
		TrainingJobID:      &jobID,
		Name:               fmt.Sprintf("%s model v%d", titleCase(job.Specialization), version),
		Version:            version,
		Status:             models.ModelTrained,
		Accuracy:           metrics.BestAccuracy,
		Specialization:     job.Specialization,
		IsActive:           true,
		PerformanceMetrics: raw,
		CreatedAt:          finished,
	}

	job.LossValue = &metrics.FinalLoss
	job.AccuracyValue = &metrics.FinalAccuracy
	job.CompletedAt = &finished
	if err := r.jobs.Complete(ctx, job, model, job.ExampleIDs); err != nil {
		return nil, err
	}
	job.Status = models.JobCompleted
	job.ModelID = &model.ID
	job.ProgressPercentage = 100
	return model, nil
}

// fail records reason on the job unless it already reached a terminal state.
func (r *Runner) fail(job *models.TrainingJob, reason string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := r.jobs.Fail(ctx, job.ID, reason, now()); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			log.Warn("Job already finished, failure not recorded", zap.String("reason", reason))
			return
		}
		log.Error("Failed to record training failure", zap.String("reason", reason), zap.Error(err))
		return
	}
	job.Status = models.JobFailed
	job.ErrorMessage = &reason
	log.Warn("Training failed", zap.String("reason", reason))
	r.notifier.TrainingFailed(ctx, job, reason)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
