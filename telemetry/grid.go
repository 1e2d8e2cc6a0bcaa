package telemetry

import "image"
import "image/color"
import "image/png"
import "os"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/tensor"

// gridCols is the number of samples per grid row.
const gridCols = 4

// WriteGrid renders a batch of channel-major [c][h][w] samples into one
// PNG. Values outside [0,1] are clipped. Single-channel batches render as
// grayscale, anything else takes the first three channels as RGB.
func WriteGrid(path string, batch *tensor.Tensor, c, h, w int) error {
	n := batch.Rows()
	cols := gridCols
	if n < cols {
		cols = n
	}
	rows := (n + cols - 1) / cols
	img := image.NewRGBA(image.Rect(0, 0, cols*w, rows*h))
	for i := 0; i < n; i++ {
		sample := batch.Row(i)
		ox := (i % cols) * w
		oy := (i / cols) * h
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var r, g, b float64
				if c == 1 {
					r = sample[y*w+x]
					g, b = r, r
				} else {
					r = sample[y*w+x]
					g = sample[(h+y)*w+x]
					b = sample[(2*h+y)*w+x]
				}
				img.SetRGBA(ox+x, oy+y, color.RGBA{clip(r), clip(g), clip(b), 255})
			}
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "telemetry: grid file")
	}
	err = png.Encode(file, img)
	file.Close()
	return err
}

func clip(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}
