package domain

import "math"

type Category string

const (
	CategoryLow    Category = "low"
	CategoryMedium Category = "medium"
	CategoryHigh   Category = "high"
)

// Category cut points. Downstream reporting depends on them, keep them stable.
const (
	LowUpperBound    = 0.35
	MediumUpperBound = 0.65
	MinConfidence    = 0.1
)

type PredictionResult struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Category   Category `json:"category"`
	// Flagged lists lexicon terms found in the text. It does not influence Score.
	Flagged []string `json:"flagged,omitempty"`
}

// NewPredictionResult derives confidence and category from a raw model output.
// The raw value is clamped to [0,1] first; NaN is treated as 0.
func NewPredictionResult(raw float64) PredictionResult {
	score := ClampScore(raw)
	return PredictionResult{
		Score:      score,
		Confidence: Confidence(score),
		Category:   Categorize(score),
	}
}

func ClampScore(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return math.Max(0, math.Min(1, raw))
}

// Confidence is the distance from the 0.5 midpoint scaled to [0,1], floored at MinConfidence.
func Confidence(score float64) float64 {
	return math.Max(MinConfidence, math.Abs(score-0.5)*2)
}

func Categorize(score float64) Category {
	switch {
	case score <= LowUpperBound:
		return CategoryLow
	case score <= MediumUpperBound:
		return CategoryMedium
	default:
		return CategoryHigh
	}
}
