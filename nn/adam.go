package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math"
)

type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

func DefaultAdamConfig(learningRate float64) AdamConfig {
	return AdamConfig{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Adam keeps first and second moment estimates for every parameter.
type Adam struct {
	cfg   AdamConfig
	step  int
	m     []*tensor.Tensor
	v     []*tensor.Tensor
	state *tensor.Group
}

func newAdam(cfg AdamConfig, backend *tensor.Backend, params []*Param) (*Adam, error) {
	if cfg.LearningRate <= 0 || cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 || cfg.Epsilon <= 0 {
		return nil, fmt.Errorf("%w: invalid optimizer settings %+v", errors.ErrInvalidArchitecture, cfg)
	}
	a := &Adam{cfg: cfg, state: tensor.NewGroup(backend)}
	for _, p := range params {
		m, err := a.state.New(p.Shape...)
		if err != nil {
			a.state.Release()
			return nil, err
		}
		v, err := a.state.New(p.Shape...)
		if err != nil {
			a.state.Release()
			return nil, err
		}
		a.m, a.v = append(a.m, m), append(a.v, v)
	}
	return a, nil
}

func (a *Adam) Config() AdamConfig {
	return a.cfg
}

func (a *Adam) Steps() int {
	return a.step
}

// Apply performs one bias-corrected update of params from grads.
func (a *Adam) Apply(params []*Param, grads *Gradients) {
	a.step++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	lr := a.cfg.LearningRate * math.Sqrt(1-math.Pow(b2, float64(a.step))) / (1 - math.Pow(b1, float64(a.step)))
	for i, p := range params {
		w, g := p.Value.Data(), grads.buffers[i].Data()
		m, v := a.m[i].Data(), a.v[i].Data()
		for j := range w {
			m[j] = b1*m[j] + (1-b1)*g[j]
			v[j] = b2*v[j] + (1-b2)*g[j]*g[j]
			w[j] -= lr * m[j] / (math.Sqrt(v[j]) + a.cfg.Epsilon)
		}
	}
}

func (a *Adam) reset() {
	a.step = 0
	for i := range a.m {
		a.m[i].Zero()
		a.v[i].Zero()
	}
}

func (a *Adam) release() {
	a.state.Release()
}
