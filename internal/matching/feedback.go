package matching

import (
	"math"
	"strings"

	"github.com/hanzong05/aimddlwr/internal/models"
)

const (
	MinConfidence = 0.1
	MaxConfidence = 1.0

	positiveStep   = 0.10
	negativeStep   = 0.15
	correctionStep = 0.05
	positiveScore  = 4
)

// ClampConfidence forces c into [MinConfidence, MaxConfidence]. NaN becomes MinConfidence.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return MinConfidence
	}
	return math.Max(MinConfidence, math.Min(MaxConfidence, c))
}

// FeedbackResult describes the pattern mutation caused by one feedback event.
type FeedbackResult struct {
	Confidence float64
	Response   *string
	Changed    bool
}

// ApplyFeedback computes the new confidence (and replacement response, for
// corrections) of a pattern at confidence after one feedback event.
func ApplyFeedback(confidence float64, kind models.FeedbackType, score *int, corrected string) FeedbackResult {
	res := FeedbackResult{Confidence: confidence}
	switch kind {
	case models.FeedbackPositive:
		if score != nil && *score >= positiveScore {
			res.Confidence = ClampConfidence(confidence + positiveStep)
			res.Changed = true
		}
	case models.FeedbackNegative:
		res.Confidence = ClampConfidence(confidence - negativeStep)
		res.Changed = true
	case models.FeedbackCorrection:
		if text := strings.TrimSpace(corrected); text != "" {
			res.Confidence = ClampConfidence(confidence + correctionStep)
			res.Response = &text
			res.Changed = true
		}
	}
	// keep float noise like 0.30000000000000004 out of storage
	res.Confidence = math.Round(res.Confidence*1e6) / 1e6
	return res
}
