package domain

import "time"

// EpochReport is emitted once per finished epoch, in epoch order.
// Validation fields are zero when HasValidation is false.
type EpochReport struct {
	Epoch         int
	Loss          float64
	ValLoss       float64
	MAE           float64
	ValMAE        float64
	Accuracy      float64
	HasValidation bool
}

type TrainingHistory struct {
	Epochs     []EpochReport
	Samples    int
	TrainCount int
	ValCount   int
	BatchSize  int
	Duration   time.Duration
}

// Last returns the report of the last completed epoch.
func (h TrainingHistory) Last() (EpochReport, bool) {
	if len(h.Epochs) == 0 {
		return EpochReport{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}
