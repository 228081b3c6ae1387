package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"math"
)

const lossEpsilon = 1e-7

type LossKind string

const (
	BinaryCrossEntropy LossKind = "bce"
	MeanSquaredError   LossKind = "mse"
)

// Loss compares one prediction with its target. Grad is the derivative with
// respect to the prediction.
type Loss interface {
	Kind() LossKind
	Value(pred, target float64) float64
	Grad(pred, target float64) float64
}

func NewLoss(kind LossKind) (Loss, error) {
	switch kind {
	case BinaryCrossEntropy:
		return bce{}, nil
	case MeanSquaredError:
		return mse{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown loss %q", errors.ErrInvalidArchitecture, kind)
	}
}

// bce treats the target as a soft binary label.
type bce struct{}

func (bce) Kind() LossKind { return BinaryCrossEntropy }

func (bce) Value(pred, target float64) float64 {
	p := math.Min(math.Max(pred, lossEpsilon), 1-lossEpsilon)
	return -(target*math.Log(p) + (1-target)*math.Log(1-p))
}

func (bce) Grad(pred, target float64) float64 {
	p := math.Min(math.Max(pred, lossEpsilon), 1-lossEpsilon)
	return (p - target) / (p * (1 - p))
}

type mse struct{}

func (mse) Kind() LossKind { return MeanSquaredError }

func (mse) Value(pred, target float64) float64 {
	return (pred - target) * (pred - target)
}

func (mse) Grad(pred, target float64) float64 {
	return 2 * (pred - target)
}
