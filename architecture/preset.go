package architecture

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/nn"
)

type Preset string

const (
	Small  Preset = "small"
	Medium Preset = "medium"
	Large  Preset = "large"
	// Auto picks a preset from the number of labeled samples.
	Auto Preset = "auto"
)

// Sample counts at which the next preset is selected.
const (
	mediumFromSamples = 200
	largeFromSamples  = 2000
)

// ConvBlock is convolution, ReLU, optional normalization, max pooling by 2 and
// optional dropout.
type ConvBlock struct {
	Filters    int     `validate:"gt=0"`
	KernelSize int     `validate:"gt=0"`
	Normalize  bool
	Dropout    float64 `validate:"gte=0,lt=1"`
}

type DenseBlock struct {
	Units   int     `validate:"gt=0"`
	Dropout float64 `validate:"gte=0,lt=1"`
}

// Spec fully describes a network. It is stored with every persisted model.
type Spec struct {
	Label        string       `validate:"required"`
	EmbeddingDim int          `validate:"gt=0"`
	Blocks       []ConvBlock  `validate:"required,min=1,dive"`
	Dense        []DenseBlock `validate:"dive"`
	LearningRate float64      `validate:"gt=0,lte=0.01"`
	Loss         nn.LossKind  `validate:"oneof=bce mse"`
}

// Scale returns a copy with every width multiplied by factor, rounded and kept at
// least 1. It is the size knob for datasets that fall between presets.
func (s Spec) Scale(factor float64) Spec {
	scale := func(n int) int { return max(1, int(float64(n)*factor+0.5)) }
	out := s
	out.Label = fmt.Sprintf("%s x%.2f", s.Label, factor)
	out.EmbeddingDim = scale(s.EmbeddingDim)
	out.Blocks = make([]ConvBlock, len(s.Blocks))
	for i, b := range s.Blocks {
		b.Filters = scale(b.Filters)
		out.Blocks[i] = b
	}
	out.Dense = make([]DenseBlock, len(s.Dense))
	for i, d := range s.Dense {
		d.Units = scale(d.Units)
		out.Dense[i] = d
	}
	return out
}

// SpecFor returns the architecture of a preset.
func SpecFor(p Preset) (Spec, error) {
	switch p {
	case Small:
		return Spec{
			Label:        "CNN Ultra-Compact",
			EmbeddingDim: 32,
			Blocks:       []ConvBlock{{Filters: 16, KernelSize: 3}},
			Dense:        []DenseBlock{{Units: 16, Dropout: 0.2}},
			LearningRate: 1e-3,
			Loss:         nn.BinaryCrossEntropy,
		}, nil
	case Medium:
		return Spec{
			Label:        "CNN Compact",
			EmbeddingDim: 64,
			Blocks: []ConvBlock{
				{Filters: 32, KernelSize: 3, Normalize: true, Dropout: 0.1},
				{Filters: 32, KernelSize: 4, Normalize: true, Dropout: 0.1},
			},
			Dense:        []DenseBlock{{Units: 64, Dropout: 0.3}, {Units: 32, Dropout: 0.2}},
			LearningRate: 1e-3,
			Loss:         nn.BinaryCrossEntropy,
		}, nil
	case Large:
		return Spec{
			Label:        "CNN Multi-layer Enhanced",
			EmbeddingDim: 128,
			Blocks: []ConvBlock{
				{Filters: 128, KernelSize: 2, Normalize: true},
				{Filters: 128, KernelSize: 3, Normalize: true},
				{Filters: 64, KernelSize: 4, Dropout: 0.1},
			},
			Dense: []DenseBlock{
				{Units: 256, Dropout: 0.5},
				{Units: 128, Dropout: 0.3},
				{Units: 64},
			},
			LearningRate: 5e-4,
			Loss:         nn.BinaryCrossEntropy,
		}, nil
	default:
		return Spec{}, fmt.Errorf("%w: unknown preset %q", errors.ErrInvalidArchitecture, p)
	}
}

// ForSampleCount picks the preset whose parameter count suits n labeled samples.
func ForSampleCount(n int) Preset {
	switch {
	case n < mediumFromSamples:
		return Small
	case n < largeFromSamples:
		return Medium
	default:
		return Large
	}
}

// Resolve turns Auto into a concrete preset.
func Resolve(p Preset, samples int) Preset {
	if p == Auto || p == "" {
		return ForSampleCount(samples)
	}
	return p
}
