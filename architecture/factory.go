package architecture

import (
	"fmt"
	"log/slog"
	"lyrics-lab/errors"
	"lyrics-lab/nn"
	"lyrics-lab/tensor"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// poolSize is the downsampling factor of every convolution block.
const poolSize = 2

// Create builds and compiles an untrained model for sequences of maxLen ids drawn
// from a vocabulary of vocabSize entries. Invalid sizes fail before any allocation.
func Create(backend *tensor.Backend, vocabSize, maxLen int, spec Spec, seed uint64, log *slog.Logger) (*nn.Model, error) {
	if vocabSize <= 0 || maxLen <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size and sequence length must be positive, got %d and %d",
			errors.ErrInvalidArchitecture, vocabSize, maxLen)
	}
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidArchitecture, err)
	}
	if err := checkSteps(spec, maxLen); err != nil {
		return nil, err
	}

	model, err := nn.NewSequential(backend, maxLen, seed, Layers(spec, vocabSize)...)
	if err != nil {
		return nil, err
	}
	if err := model.Compile(nn.DefaultAdamConfig(spec.LearningRate), spec.Loss); err != nil {
		model.Release()
		return nil, err
	}

	if log != nil {
		log.Info("Model created",
			"architecture", spec.Label,
			"params", model.CountParams(),
			"layers", len(model.Layers()),
			"vocab_size", vocabSize,
			"max_len", maxLen)
		for _, l := range model.Summary() {
			log.Debug("Layer", "name", l.Name, "type", l.Type, "output", l.Output.String(), "params", l.Params)
		}
	}
	return model, nil
}

// Layers lists the layers of spec in order, without building them.
func Layers(spec Spec, vocabSize int) []nn.Layer {
	layers := []nn.Layer{nn.NewEmbedding("embedding", vocabSize, spec.EmbeddingDim)}
	for i, b := range spec.Blocks {
		n := i + 1
		layers = append(layers, nn.NewConv1D(fmt.Sprintf("conv1d_%d", n), b.Filters, b.KernelSize))
		if b.Normalize {
			layers = append(layers, nn.NewLayerNorm(fmt.Sprintf("norm_%d", n)))
		}
		layers = append(layers, nn.NewMaxPool1D(fmt.Sprintf("maxpool_%d", n), poolSize))
		if b.Dropout > 0 {
			layers = append(layers, nn.NewDropout(fmt.Sprintf("conv_dropout_%d", n), b.Dropout))
		}
	}
	layers = append(layers, nn.NewGlobalMaxPool1D("global_pooling"))
	for i, d := range spec.Dense {
		n := i + 1
		layers = append(layers, nn.NewDense(fmt.Sprintf("dense_%d", n), d.Units, nn.ReLU))
		if d.Dropout > 0 {
			layers = append(layers, nn.NewDropout(fmt.Sprintf("dropout_%d", n), d.Dropout))
		}
	}
	return append(layers, nn.NewDense("output", 1, nn.Sigmoid))
}

// checkSteps makes sure the convolution stack leaves at least one step for maxLen.
func checkSteps(spec Spec, maxLen int) error {
	steps := maxLen
	for i, b := range spec.Blocks {
		steps = (steps - b.KernelSize + 1) / poolSize
		if steps <= 0 {
			return fmt.Errorf("%w: sequence length %d is too short for conv block %d of %q",
				errors.ErrInvalidArchitecture, maxLen, i+1, spec.Label)
		}
	}
	return nil
}
