package models

import "time"

// Pattern is a learned input -> response association.
type Pattern struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"userId"`
	InputPattern    string    `db:"input_pattern" json:"inputPattern"`
	ResponsePattern string    `db:"response_pattern" json:"responsePattern"`
	Category        string    `db:"category" json:"category"`
	Confidence      float64   `db:"confidence" json:"confidence"`
	UseCount        int       `db:"use_count" json:"useCount"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

type PatternFilter struct {
	MinConfidence float64
	Category      string
	Limit         int
}

// PatternMatch selects the patterns whose normalized input contains Head or is
// contained in Message.
type PatternMatch struct {
	Message       string
	Head          string
	MinConfidence float64
}

type PatternStats struct {
	Total             int            `json:"totalPatterns"`
	AverageConfidence float64        `json:"averageConfidence"`
	HighConfidence    int            `json:"highConfidencePatterns"`
	TotalUses         int            `json:"totalUses"`
	ByCategory        map[string]int `json:"patternsByCategory"`
}

type FeedbackType string

const (
	FeedbackPositive   FeedbackType = "positive"
	FeedbackNegative   FeedbackType = "negative"
	FeedbackCorrection FeedbackType = "correction"
)

func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackPositive, FeedbackNegative, FeedbackCorrection:
		return true
	}
	return false
}

// FeedbackEvent is an append-only record of user feedback on a pattern.
type FeedbackEvent struct {
	ID                string       `db:"id" json:"id"`
	UserID            string       `db:"user_id" json:"userId"`
	PatternID         string       `db:"pattern_id" json:"patternId"`
	MessageID         *string      `db:"message_id" json:"messageId,omitempty"`
	Type              FeedbackType `db:"feedback_type" json:"type"`
	Score             *int         `db:"score" json:"score,omitempty"`
	CorrectedResponse *string      `db:"corrected_response" json:"correctedResponse,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
}
