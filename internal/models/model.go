package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type ModelStatus string

const (
	ModelTrained  ModelStatus = "trained"
	ModelDeployed ModelStatus = "deployed"
	ModelArchived ModelStatus = "archived"
)

// Model is the result of a completed TrainingJob. Its metrics are synthetic.
type Model struct {
	ID                 string         `db:"id" json:"id"`
	UserID             string         `db:"user_id" json:"userId"`
	TrainingJobID      *string        `db:"training_job_id" json:"trainingJobId,omitempty"`
	Name               string         `db:"name" json:"name"`
	Version            int            `db:"version" json:"version"`
	Status             ModelStatus    `db:"status" json:"status"`
	Accuracy           float64        `db:"accuracy" json:"accuracy"`
	Specialization     string         `db:"specialization" json:"specialization"`
	IsActive           bool           `db:"is_active" json:"isActive"`
	PerformanceMetrics types.JSONText `db:"performance_metrics" json:"performanceMetrics"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
}
