package models

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type TrainingType string

const (
	TrainingRegular  TrainingType = "regular"
	TrainingAdvanced TrainingType = "advanced"
)

// TrainingJob tracks one simulated training run.
type TrainingJob struct {
	ID                 string       `db:"id" json:"id"`
	UserID             string       `db:"user_id" json:"userId"`
	Status             JobStatus    `db:"status" json:"status"`
	TrainingType       TrainingType `db:"training_type" json:"trainingType"`
	Specialization     string       `db:"specialization" json:"specialization"`
	Epochs             int          `db:"epochs" json:"epochs"`
	CurrentEpoch       int          `db:"current_epoch" json:"currentEpoch"`
	ProgressPercentage int          `db:"progress_percentage" json:"progressPercentage"`
	LossValue          *float64     `db:"loss_value" json:"lossValue,omitempty"`
	AccuracyValue      *float64     `db:"accuracy_value" json:"accuracyValue,omitempty"`
	TrainingDataCount  int          `db:"training_data_count" json:"trainingDataCount"`
	ExampleIDs         Tags         `db:"example_ids" json:"-"`
	ModelID            *string      `db:"model_id" json:"modelId,omitempty"`
	ErrorMessage       *string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"createdAt"`
	StartedAt          *time.Time   `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt        *time.Time   `db:"completed_at" json:"completedAt,omitempty"`
}
