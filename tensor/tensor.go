// Package tensor implements the dense float64 tensor type used by the
// StyleGAN networks, together with the small set of linear-algebra and
// resampling kernels the trainer needs.
package tensor

import "fmt"
import "math/rand"

// Tensor is a dense row-major tensor.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero tensor of the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprint("tensor: bad dimension ", s))
		}
		n *= s
	}
	return &Tensor{Shape: append([]int{}, shape...), Data: make([]float64, n)}
}

// Randn allocates a tensor filled with standard normal samples drawn from rng.
func Randn(rng *rand.Rand, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()
	}
	return t
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Rows returns the leading dimension of a 2D tensor.
func (t *Tensor) Rows() int {
	if len(t.Shape) != 2 {
		panic("tensor: Rows on non-2D tensor")
	}
	return t.Shape[0]
}

// Cols returns the trailing dimension of a 2D tensor.
func (t *Tensor) Cols() int {
	if len(t.Shape) != 2 {
		panic("tensor: Cols on non-2D tensor")
	}
	return t.Shape[1]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	o := &Tensor{Shape: append([]int{}, t.Shape...), Data: make([]float64, len(t.Data))}
	copy(o.Data, t.Data)
	return o
}

// Zero clears all elements in place.
func (t *Tensor) Zero() {
	for i := range t.Data {
		t.Data[i] = 0
	}
}

// Row returns the i-th row slice of a 2D tensor, aliasing the tensor storage.
func (t *Tensor) Row(i int) []float64 {
	c := t.Cols()
	return t.Data[i*c : (i+1)*c]
}

// SameShape reports whether both tensors have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}
