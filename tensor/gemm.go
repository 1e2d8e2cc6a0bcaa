package tensor

import "gonum.org/v1/gonum/blas"
import "gonum.org/v1/gonum/blas/blas64"

// Gemm computes c = alpha*op(a)*op(b) + beta*c on 2D tensors, where op is
// the identity or the transpose according to the transA/transB flags.
// Dimensions are validated against c and a mismatch panics.
func Gemm(c *Tensor, transA bool, a *Tensor, transB bool, b *Tensor, alpha, beta float64) {
	am, ak := a.Rows(), a.Cols()
	ta := blas.NoTrans
	if transA {
		ta = blas.Trans
		am, ak = ak, am
	}
	bk, bn := b.Rows(), b.Cols()
	tb := blas.NoTrans
	if transB {
		tb = blas.Trans
		bk, bn = bn, bk
	}
	if ak != bk || c.Rows() != am || c.Cols() != bn {
		panic("tensor: gemm dimension mismatch")
	}
	ga := blas64.General{Rows: a.Rows(), Cols: a.Cols(), Stride: a.Cols(), Data: a.Data}
	gb := blas64.General{Rows: b.Rows(), Cols: b.Cols(), Stride: b.Cols(), Data: b.Data}
	gc := blas64.General{Rows: c.Rows(), Cols: c.Cols(), Stride: c.Cols(), Data: c.Data}
	blas64.Gemm(ta, tb, alpha, ga, gb, beta, gc)
}

// MatMul allocates and returns op(a)*op(b).
func MatMul(transA bool, a *Tensor, transB bool, b *Tensor) *Tensor {
	m, n := a.Rows(), b.Cols()
	if transA {
		m = a.Cols()
	}
	if transB {
		n = b.Rows()
	}
	c := New(m, n)
	Gemm(c, transA, a, transB, b, 1, 0)
	return c
}
