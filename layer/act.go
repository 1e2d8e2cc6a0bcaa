package layer

import "github.com/neurlang/stylegan/tensor"

// LeakyReLU is a leaky rectifier with cached derivative masks. A distinct
// instance sits at every activation site so that masks from one forward do
// not clobber another's.
type LeakyReLU struct {
	Slope float64
	deriv *tensor.Tensor
}

// NewLeakyReLU constructs the activation with the conventional 0.2 slope.
func NewLeakyReLU() *LeakyReLU {
	return &LeakyReLU{Slope: 0.2}
}

// Forward applies the activation and records the elementwise derivative.
func (a *LeakyReLU) Forward(x *tensor.Tensor) *tensor.Tensor {
	y := tensor.New(x.Shape...)
	a.deriv = tensor.New(x.Shape...)
	for i, v := range x.Data {
		if v >= 0 {
			y.Data[i] = v
			a.deriv.Data[i] = 1
		} else {
			y.Data[i] = v * a.Slope
			a.deriv.Data[i] = a.Slope
		}
	}
	return y
}

// Backward multiplies dy by the recorded derivative mask. The same mask
// drives the linearized penalty pass, where it is exact because the second
// derivative of a piecewise-linear activation vanishes.
func (a *LeakyReLU) Backward(dy *tensor.Tensor) *tensor.Tensor {
	dx := tensor.New(dy.Shape...)
	for i, v := range dy.Data {
		dx.Data[i] = v * a.deriv.Data[i]
	}
	return dx
}
