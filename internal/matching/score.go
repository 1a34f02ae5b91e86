package matching

import (
	"strings"

	"github.com/hanzong05/aimddlwr/internal/models"
)

const (
	prefixBonus      = 60
	jaccardWeight    = 40
	importantBonus   = 15
	qualityWeight    = 12
	questionBonus    = 10
	prefixCompareLen = 20
	patternHeadLen   = 50

	// StrongMatch and SoftMatch are the score thresholds of the keyword scorer.
	StrongMatch = 40
	SoftMatch   = 20
)

// Score rates how well a stored example input answers message.
func Score(message, input string, quality float64) float64 {
	a, b := Normalize(message), Normalize(input)
	var score float64

	if a != "" && b != "" &&
		(strings.Contains(b, prefix(a, prefixCompareLen)) || strings.Contains(a, prefix(b, prefixCompareLen))) {
		score += prefixBonus
	}

	ta, tb := Tokenize(a), Tokenize(b)
	inB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		inB[t] = struct{}{}
	}
	shared := 0
	for _, t := range ta {
		if _, ok := inB[t]; !ok {
			continue
		}
		shared++
		if isImportant(t) {
			score += importantBonus
		}
	}
	if union := len(ta) + len(tb) - shared; union > 0 {
		score += jaccardWeight * float64(shared) / float64(union)
	}

	score += (quality - 3) * qualityWeight

	if IsQuestion(a) && IsQuestion(b) {
		score += questionBonus
	}
	return score
}

// Match is the outcome of BestExample.
type Match struct {
	Example *models.TrainingExample
	Score   float64
}

// Strong reports whether the match clears the high threshold.
func (m Match) Strong() bool { return m.Score > StrongMatch }

// BestExample scores each candidate against message and returns the highest scoring
// one above SoftMatch. Candidates are expected newest first; on equal scores the
// earlier candidate wins.
func BestExample(message string, candidates []*models.TrainingExample) (Match, bool) {
	var best Match
	found := false
	for _, c := range candidates {
		s := Score(message, c.Input, c.QualityScore)
		if !found || s > best.Score {
			best = Match{Example: c, Score: s}
			found = true
		}
	}
	if !found || best.Score <= SoftMatch {
		return Match{}, false
	}
	return best, true
}

// PatternQuery describes the stored patterns that may answer message: those
// whose input contains its leading characters, or is itself contained in it.
// ok is false for a blank message.
func PatternQuery(message string, minConfidence float64) (q models.PatternMatch, ok bool) {
	norm := Normalize(message)
	if norm == "" {
		return models.PatternMatch{}, false
	}
	return models.PatternMatch{
		Message:       norm,
		Head:          prefix(norm, patternHeadLen),
		MinConfidence: minConfidence,
	}, true
}
