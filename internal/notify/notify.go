// Package notify reports training job outcomes to operators.
package notify

import (
	"context"

	"github.com/hanzong05/aimddlwr/internal/models"
)

// Notifier is told about every terminal training transition. Implementations
// must not block for long; delivery failures are theirs to log.
type Notifier interface {
	TrainingCompleted(ctx context.Context, job *models.TrainingJob, model *models.Model)
	TrainingFailed(ctx context.Context, job *models.TrainingJob, reason string)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) TrainingCompleted(context.Context, *models.TrainingJob, *models.Model) {}

func (Nop) TrainingFailed(context.Context, *models.TrainingJob, string) {}
