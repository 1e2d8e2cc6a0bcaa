// Package ema implements the exponential moving-average shadow of the
// generator parameters. One shadow lives per resolution phase: growth
// introduces new parameter names and shapes, so the trainer discards the
// old shadow and registers a fresh one from the EMA generator's values.
package ema

import "math"

import "github.com/neurlang/stylegan/layer"

// Model is anything exposing named parameters; both generators qualify.
type Model interface {
	NamedParameters() []layer.Named
}

// EMA holds decayed running averages of parameter values by name.
type EMA struct {
	decay  float64
	shadow map[string][]float64
}

// Decay derives the per-update decay factor from the minibatch size and the
// configured halflife in samples. A non-positive halflife disables
// averaging entirely: the shadow then just tracks the latest value.
func Decay(batchSize int, halflife float64) float64 {
	if halflife > 0 {
		return math.Pow(0.5, float64(batchSize)/halflife)
	}
	return 0
}

// New constructs an empty tracker with the given decay factor.
func New(decay float64) *EMA {
	return &EMA{decay: decay, shadow: make(map[string][]float64)}
}

// Register seeds the shadow for a parameter name.
func (e *EMA) Register(name string, value []float64) {
	e.shadow[name] = append([]float64{}, value...)
}

// Update folds a new value into the shadow and returns the new average:
// shadow = (1-decay)*value + decay*shadow. Updating a name that was never
// registered is a contract violation and panics.
func (e *EMA) Update(name string, value []float64) []float64 {
	old, ok := e.shadow[name]
	if !ok {
		panic("ema: update of unregistered parameter " + name)
	}
	avg := make([]float64, len(value))
	for i := range avg {
		avg[i] = (1-e.decay)*value[i] + e.decay*old[i]
	}
	e.shadow[name] = avg
	out := append([]float64{}, avg...)
	return out
}

// Shadow returns the held average for a name, or nil when unregistered.
func (e *EMA) Shadow(name string) []float64 {
	return e.shadow[name]
}

// Apply writes every shadow value into the matching trainable parameter of
// the target model.
func (e *EMA) Apply(target Model) {
	for _, np := range target.NamedParameters() {
		if !np.Param.Trainable {
			continue
		}
		if v, ok := e.shadow[np.Name]; ok {
			copy(np.Param.Value.Data, v)
		}
	}
}
