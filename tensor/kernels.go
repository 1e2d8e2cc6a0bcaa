package tensor

import "github.com/klauspost/cpuid/v2"

// Axpy computes y += alpha*x.
var Axpy func(alpha float64, x, y []float64)

// Scale computes x *= alpha.
var Scale func(alpha float64, x []float64)

// Lerp computes dst = (1-t)*a + t*b.
var Lerp func(t float64, a, b, dst []float64)

func init() {
	// wide cores keep the unrolled kernels fed, older ones do better
	// with the plain loops
	if cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) {
		Axpy = axpyUnrolled
		Scale = scaleUnrolled
		Lerp = lerpUnrolled
	} else {
		Axpy = axpyGeneric
		Scale = scaleGeneric
		Lerp = lerpGeneric
	}
}

func axpyGeneric(alpha float64, x, y []float64) {
	for i := range y {
		y[i] += alpha * x[i]
	}
}

func scaleGeneric(alpha float64, x []float64) {
	for i := range x {
		x[i] *= alpha
	}
}

func lerpGeneric(t float64, a, b, dst []float64) {
	for i := range dst {
		dst[i] = (1-t)*a[i] + t*b[i]
	}
}

func axpyUnrolled(alpha float64, x, y []float64) {
	i := 0
	for ; i+4 <= len(y); i += 4 {
		y[i] += alpha * x[i]
		y[i+1] += alpha * x[i+1]
		y[i+2] += alpha * x[i+2]
		y[i+3] += alpha * x[i+3]
	}
	for ; i < len(y); i++ {
		y[i] += alpha * x[i]
	}
}

func scaleUnrolled(alpha float64, x []float64) {
	i := 0
	for ; i+4 <= len(x); i += 4 {
		x[i] *= alpha
		x[i+1] *= alpha
		x[i+2] *= alpha
		x[i+3] *= alpha
	}
	for ; i < len(x); i++ {
		x[i] *= alpha
	}
}

func lerpUnrolled(t float64, a, b, dst []float64) {
	s := 1 - t
	i := 0
	for ; i+4 <= len(dst); i += 4 {
		dst[i] = s*a[i] + t*b[i]
		dst[i+1] = s*a[i+1] + t*b[i+1]
		dst[i+2] = s*a[i+2] + t*b[i+2]
		dst[i+3] = s*a[i+3] + t*b[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] = s*a[i] + t*b[i]
	}
}
