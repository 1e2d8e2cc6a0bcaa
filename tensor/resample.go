package tensor

// Resampling kernels over batches of flattened images. Each sample is laid
// out channel-major as [c][h][w]. Both resamplers are linear maps, so their
// transposes (needed when backpropagating through a resampled path) are
// expressible in terms of each other: the transpose of nearest-neighbor
// upsampling is 2x2 sum pooling, and the transpose of 2x2 average pooling
// is nearest-neighbor upsampling scaled by 1/4.

// Upsample2 doubles the spatial size of every sample by pixel repetition.
// src must have shape [batch, c*h*w]; the result has shape [batch, c*2h*2w].
func Upsample2(src *Tensor, c, h, w int) *Tensor {
	batch := src.Rows()
	if src.Cols() != c*h*w {
		panic("tensor: upsample shape mismatch")
	}
	dst := New(batch, c*4*h*w)
	for b := 0; b < batch; b++ {
		in := src.Row(b)
		out := dst.Row(b)
		for ch := 0; ch < c; ch++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					v := in[(ch*h+y)*w+x]
					o := (ch*2*h+2*y)*2*w + 2*x
					out[o] = v
					out[o+1] = v
					out[o+2*w] = v
					out[o+2*w+1] = v
				}
			}
		}
	}
	return dst
}

// Downsample2 halves the spatial size of every sample by 2x2 average
// pooling. src must have shape [batch, c*h*w] with even h and w.
func Downsample2(src *Tensor, c, h, w int) *Tensor {
	batch := src.Rows()
	if src.Cols() != c*h*w || h%2 != 0 || w%2 != 0 {
		panic("tensor: downsample shape mismatch")
	}
	dst := New(batch, c*h*w/4)
	oh, ow := h/2, w/2
	for b := 0; b < batch; b++ {
		in := src.Row(b)
		out := dst.Row(b)
		for ch := 0; ch < c; ch++ {
			for y := 0; y < oh; y++ {
				for x := 0; x < ow; x++ {
					i := (ch*h+2*y)*w + 2*x
					s := in[i] + in[i+1] + in[i+w] + in[i+w+1]
					out[(ch*oh+y)*ow+x] = s * 0.25
				}
			}
		}
	}
	return dst
}

// Upsample2T applies the transpose of Upsample2 to a gradient at the
// doubled resolution, producing a gradient at [batch, c*h*w] (h, w are the
// dimensions of the smaller, pre-upsample image).
func Upsample2T(grad *Tensor, c, h, w int) *Tensor {
	out := Downsample2(grad, c, 2*h, 2*w)
	Scale(4, out.Data)
	return out
}

// Downsample2T applies the transpose of Downsample2 to a gradient at the
// halved resolution, producing a gradient at [batch, c*h*w] (h, w are the
// dimensions of the larger, pre-pool image).
func Downsample2T(grad *Tensor, c, h, w int) *Tensor {
	out := Upsample2(grad, c, h/2, w/2)
	Scale(0.25, out.Data)
	return out
}
