package progress

import (
	"github.com/example/tutorbot/pkg/models"
)

// Mastery scores are bounded to this range
const (
	MinScore = 0
	MaxScore = 100
)

// LowConfidence is the confidence under which a correction counts half
const LowConfidence = 0.5

// QualityResponse grades one corrected answer
type QualityResponse int

const (
	// Three or more flagged errors
	QualityPoor QualityResponse = iota
	// Exactly two flagged errors
	QualityFair
	// A single flagged error
	QualityGood
	// No errors flagged
	QualityPerfect
)

// qualityDelta is the mastery change for each quality grade
var qualityDelta = map[QualityResponse]int{
	QualityPoor:    -5,
	QualityFair:    0,
	QualityGood:    5,
	QualityPerfect: 10,
}

// Grade turns a correction result into a quality grade
func Grade(result *models.CorrectionResult) QualityResponse {
	switch n := len(result.Errors); {
	case n == 0:
		return QualityPerfect
	case n == 1:
		return QualityGood
	case n == 2:
		return QualityFair
	default:
		return QualityPoor
	}
}

// ScoreDelta returns the mastery change earned by one corrected answer.
// A low-confidence correction moves the score half as far.
func ScoreDelta(result *models.CorrectionResult) int {
	delta := qualityDelta[Grade(result)]
	if result.Confidence < LowConfidence {
		delta /= 2
	}
	return delta
}

// ApplyScore adds delta to a score and clamps it to the valid range
func ApplyScore(score, delta int) int {
	score += delta
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// RecordAnswer updates the profile after a corrected answer in category.
// Only aggregate error categories are kept, never the learner's text.
func RecordAnswer(p *models.UserProfile, category string, result *models.CorrectionResult) {
	if p.Scores == nil {
		p.Scores = make(map[string]int)
	}
	if p.ErrorCategories == nil {
		p.ErrorCategories = make(map[string]int)
	}
	p.Scores[category] = ApplyScore(p.Scores[category], ScoreDelta(result))
	for cat, n := range result.ErrorCategories() {
		p.ErrorCategories[cat] += n
	}
}
