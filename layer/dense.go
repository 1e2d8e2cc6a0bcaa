package layer

import "math/rand"

import "github.com/neurlang/stylegan/tensor"

// Dense is a fully connected layer computing y = x*W^T + b over batch rows.
type Dense struct {
	In, Out int
	W, B    *Param

	lastX    *tensor.Tensor
	penaltyS *tensor.Tensor
}

// NewDense constructs a dense layer with He-initialized weights.
func NewDense(rng *rand.Rand, in, out int) *Dense {
	return &Dense{
		In:  in,
		Out: out,
		W:   RandnParam(rng, HeStd(in), out, in),
		B:   NewParam(out),
	}
}

// Forward computes the layer output and caches the input for backward.
func (d *Dense) Forward(x *tensor.Tensor) *tensor.Tensor {
	if x.Cols() != d.In {
		panic("layer: dense input width mismatch")
	}
	d.lastX = x
	y := tensor.MatMul(false, x, true, d.W.Value)
	for b := 0; b < y.Rows(); b++ {
		tensor.Axpy(1, d.B.Value.Data, y.Row(b))
	}
	return y
}

// Backward propagates dy through the layer, returning the input gradient.
// When accumulate is set, parameter gradients are added to W.Grad and
// B.Grad; a frozen pass (discriminator scoring generator samples, or the
// g-pass of the gradient penalty) leaves them untouched.
func (d *Dense) Backward(dy *tensor.Tensor, accumulate bool) *tensor.Tensor {
	if accumulate {
		tensor.Gemm(d.W.Grad, true, dy, false, d.lastX, 1, 1)
		for b := 0; b < dy.Rows(); b++ {
			tensor.Axpy(1, dy.Row(b), d.B.Grad.Data)
		}
	}
	return tensor.MatMul(false, dy, false, d.W.Value)
}

// BackwardCapture is Backward without parameter accumulation, additionally
// recording the incoming signal for a later PenaltyPass. Used on the pass
// that computes the discriminator's input gradient.
func (d *Dense) BackwardCapture(dy *tensor.Tensor) *tensor.Tensor {
	d.penaltyS = dy
	return tensor.MatMul(false, dy, false, d.W.Value)
}

// PenaltyPass consumes the gradient r of the penalty with respect to this
// layer's output in the linearized (input-gradient) network, accumulates
// the exact weight gradient of the penalty, and returns the penalty
// gradient with respect to the next linearized stage. Activation masks are
// piecewise constant, so the bias receives no penalty gradient.
func (d *Dense) PenaltyPass(r *tensor.Tensor) *tensor.Tensor {
	if d.penaltyS == nil {
		panic("layer: penalty pass without captured backward")
	}
	tensor.Gemm(d.W.Grad, true, d.penaltyS, false, r, 1, 1)
	return tensor.MatMul(false, r, true, d.W.Value)
}

// Params returns the layer parameters under the given name prefix.
func (d *Dense) Params(prefix string) []Named {
	return []Named{
		{Name: prefix + ".weight", Param: d.W},
		{Name: prefix + ".bias", Param: d.B},
	}
}
