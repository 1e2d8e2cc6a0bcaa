// Package layer implements the differentiable primitives the StyleGAN
// networks are composed of. Layers cache their forward inputs so that a
// backward call can be replayed without an autograd tape; the gradient
// penalty uses a second, linearized pass over the same caches.
package layer

import "math"
import "math/rand"

import "github.com/neurlang/stylegan/tensor"

// Param is one learnable tensor with its gradient accumulator.
type Param struct {
	Value     *tensor.Tensor
	Grad      *tensor.Tensor
	Trainable bool
}

// NewParam allocates a zero parameter of the given shape.
func NewParam(shape ...int) *Param {
	return &Param{Value: tensor.New(shape...), Grad: tensor.New(shape...), Trainable: true}
}

// RandnParam allocates a parameter with entries drawn from N(0, std^2).
func RandnParam(rng *rand.Rand, std float64, shape ...int) *Param {
	p := NewParam(shape...)
	for i := range p.Value.Data {
		p.Value.Data[i] = rng.NormFloat64() * std
	}
	return p
}

// ZeroGrad clears the gradient accumulator.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Named pairs a parameter with its dotted path inside a network.
type Named struct {
	Name  string
	Param *Param
}

// HeStd returns the He initialization standard deviation for a layer with
// the given fan-in.
func HeStd(fanIn int) float64 {
	return math.Sqrt(2 / float64(fanIn))
}
