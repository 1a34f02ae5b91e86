package models

import "time"

// TrainingExample is a labeled input/output pair used as training fuel.
type TrainingExample struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	Input          string    `db:"input" json:"input"`
	Output         string    `db:"output" json:"output"`
	Category       string    `db:"category" json:"category,omitempty"`
	QualityScore   float64   `db:"quality_score" json:"qualityScore"`
	Tags           Tags      `db:"tags" json:"tags"`
	UsedInTraining bool      `db:"used_in_training" json:"usedInTraining"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// TrainingDataFilter narrows TrainingExample listings.
type TrainingDataFilter struct {
	UserID     string
	Category   string
	MinQuality *float64
	Used       *bool
	Search     string
}

// TrainingDataStats aggregates a user's training data.
type TrainingDataStats struct {
	Total               int            `json:"total"`
	Used                int            `json:"used"`
	Unused              int            `json:"unused"`
	AverageQuality      float64        `json:"averageQuality"`
	ByCategory          map[string]int `json:"byCategory"`
	QualityDistribution map[int]int    `json:"qualityDistribution"`
}
