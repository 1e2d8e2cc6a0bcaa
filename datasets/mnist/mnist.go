// Package mnist adapts the MNIST handwriting set as a training provider.
// The 28x28 digits are centered on a 32x32 canvas so the resolution ladder
// stays on powers of two.
package mnist

import "github.com/petar/GoMNIST"
import "github.com/pkg/errors"

// CanvasSize is the padded full resolution.
const CanvasSize = 32

const rawSize = 28

// Provider serves MNIST digits as [0,1] grayscale images.
type Provider struct {
	images []GoMNIST.RawImage
}

// New loads the MNIST training set from dir.
func New(dir string) (*Provider, error) {
	train, _, err := GoMNIST.Load(dir)
	if err != nil {
		return nil, errors.Wrap(err, "mnist: load")
	}
	if len(train.Images) == 0 {
		return nil, errors.New("mnist: empty training set")
	}
	return &Provider{images: train.Images}, nil
}

// Len returns the number of digits.
func (p *Provider) Len() int {
	return len(p.images)
}

// MaxSize returns the padded canvas size.
func (p *Provider) MaxSize() int {
	return CanvasSize
}

// Channels returns 1: the digits are grayscale.
func (p *Provider) Channels() int {
	return 1
}

// Image writes digit i centered on the canvas.
func (p *Provider) Image(i int, dst []float64) {
	for j := range dst {
		dst[j] = 0
	}
	img := p.images[i]
	off := (CanvasSize - rawSize) / 2
	for y := 0; y < rawSize; y++ {
		for x := 0; x < rawSize; x++ {
			dst[(y+off)*CanvasSize+x+off] = float64(img[y*rawSize+x]) / 255
		}
	}
}
