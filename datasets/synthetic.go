package datasets

import "math"

// Synthetic is a deterministic procedural provider. It renders shifted
// sinusoid gratings, which is enough structure for smoke runs and tests
// without any files on disk.
type Synthetic struct {
	N     int
	Size  int
	Chans int
}

// NewSynthetic constructs a provider with n samples at the given
// power-of-two size.
func NewSynthetic(n, size, channels int) *Synthetic {
	return &Synthetic{N: n, Size: size, Chans: channels}
}

// Len returns the number of samples.
func (s *Synthetic) Len() int {
	return s.N
}

// MaxSize returns the full resolution.
func (s *Synthetic) MaxSize() int {
	return s.Size
}

// Channels returns the channel count.
func (s *Synthetic) Channels() int {
	return s.Chans
}

// Image renders sample i.
func (s *Synthetic) Image(i int, dst []float64) {
	phase := float64(i) * 0.7
	freq := 1 + float64(i%5)
	for c := 0; c < s.Chans; c++ {
		for y := 0; y < s.Size; y++ {
			for x := 0; x < s.Size; x++ {
				v := math.Sin(freq*2*math.Pi*float64(x)/float64(s.Size)+phase) *
					math.Cos(freq*2*math.Pi*float64(y)/float64(s.Size)+phase*0.5)
				dst[(c*s.Size+y)*s.Size+x] = (v + 1) * 0.5
			}
		}
	}
}
