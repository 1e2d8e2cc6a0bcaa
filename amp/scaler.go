// Package amp provides the loss-scaling half of the mixed-precision
// contract. The networks keep full-precision math, so "initializing" a
// model is a no-op here, but losses are still scaled before every backward
// and gradients unscaled at the optimizer step, with overflow skipping and
// dynamic rescaling. Checkpoints taken under one optimization level resume
// under the same semantics.
package amp

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/learning"

const (
	defaultScale     = 1 << 16
	growthFactor     = 2
	backoffFactor    = 0.5
	growthInterval   = 2000
	minimumLossScale = 1
)

// Scaler scales backward seeds and unscales gradients around an optimizer
// step. Level O0 disables it.
type Scaler struct {
	level   string
	enabled bool
	scale   float64
	good    int
}

// Initialize validates the optimization level and binds a scaler to the
// given optimizers. The optimizers are returned unchanged; they unscale
// through Step.
func Initialize(optimizers []*learning.Adam, level string) ([]*learning.Adam, *Scaler, error) {
	switch level {
	case "O0":
		return optimizers, &Scaler{level: level, enabled: false, scale: 1}, nil
	case "O1", "O2":
		return optimizers, &Scaler{level: level, enabled: true, scale: defaultScale}, nil
	default:
		return nil, nil, errors.Errorf("amp: unknown optimization level %q", level)
	}
}

// Level returns the configured optimization level.
func (s *Scaler) Level() string {
	return s.level
}

// LossScale returns the current multiplier applied to backward seeds.
func (s *Scaler) LossScale() float64 {
	return s.scale
}

// ScaleLoss returns the scaled loss value, the quantity backpropagated and
// reported, mirroring how the original trainer sums scaled components.
func (s *Scaler) ScaleLoss(loss float64) float64 {
	return loss * s.scale
}

// Step unscales the accumulated gradients and applies one optimizer step.
// Non-finite gradients skip the step and back the scale off; a run of
// clean steps grows it again. Reports whether the step was applied.
func (s *Scaler) Step(opt *learning.Adam) bool {
	if !s.enabled {
		opt.Step(1)
		return true
	}
	if !opt.GradsFinite() {
		s.scale *= backoffFactor
		if s.scale < minimumLossScale {
			s.scale = minimumLossScale
		}
		s.good = 0
		return false
	}
	opt.Step(1 / s.scale)
	s.good++
	if s.good >= growthInterval {
		s.scale *= growthFactor
		s.good = 0
	}
	return true
}
