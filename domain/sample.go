package domain

// Sample is one human-labeled lyric. Score is the target intensity in [0,1].
type Sample struct {
	Text  string  `json:"text" validate:"required"`
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

const (
	balanceLowMax  = 0.3
	balanceHighMin = 0.7
)

// DatasetBalance counts samples per score band, used to warn about skewed datasets.
type DatasetBalance struct {
	LowCount  int
	MidCount  int
	HighCount int
	Total     int
}

func NewDatasetBalance(samples []Sample) DatasetBalance {
	balance := DatasetBalance{Total: len(samples)}
	for _, s := range samples {
		switch {
		case s.Score <= balanceLowMax:
			balance.LowCount++
		case s.Score <= balanceHighMin:
			balance.MidCount++
		default:
			balance.HighCount++
		}
	}
	return balance
}

// Skewed reports whether more than 80% of the samples are low scores.
func (b DatasetBalance) Skewed() bool {
	return b.Total > 0 && float64(b.LowCount) > float64(b.Total)*0.8
}
