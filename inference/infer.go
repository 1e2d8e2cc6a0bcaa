// Package inference samples image grids from a trained checkpoint without
// touching the training loop.
package inference

import "path/filepath"
import "strconv"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/config"
import "github.com/neurlang/stylegan/net/stylegan"
import "github.com/neurlang/stylegan/telemetry"
import "github.com/neurlang/stylegan/tensor"
import "github.com/neurlang/stylegan/trainer"

import "math/rand"

// Inferencer holds a generator restored to the smoothed weights of a
// checkpoint, grown to the checkpoint's resolution.
type Inferencer struct {
	generator *stylegan.Generator
	nz        int
	imgChans  int
	imgSize   int
	rng       *rand.Rand
}

// New restores the smoothed generator from a checkpoint artifact.
func New(cfg *config.Config, checkpoint string) (*Inferencer, error) {
	rec, err := trainer.ReadRecord(checkpoint)
	if err != nil {
		return nil, err
	}

	gcfg := stylegan.Config{
		NZ:          cfg.NZ,
		StyleDepth:  cfg.StyleDepth,
		Channels:    cfg.GeneratorChannels,
		ImgChannels: cfg.ImgChannels,
	}
	g := stylegan.NewGenerator(gcfg, cfg.Seed)
	for size := 4; size < rec.ImgSize; size *= 2 {
		g.Grow()
	}
	g.Grow()
	if err := stylegan.ImportState(g.NamedParameters(), rec.GeneratorEMA); err != nil {
		return nil, errors.Wrap(err, "inference: checkpoint does not match config")
	}

	return &Inferencer{
		generator: g,
		nz:        cfg.NZ,
		imgChans:  cfg.ImgChannels,
		imgSize:   rec.ImgSize,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// ImgSize reports the resolution the restored generator produces.
func (inf *Inferencer) ImgSize() int {
	return inf.imgSize
}

// Inference samples n images at full blend and writes them as a PNG grid
// under outDir.
func (inf *Inferencer) Inference(n int, outDir string) (string, error) {
	z := tensor.Randn(inf.rng, n, inf.nz)
	imgs := inf.generator.Forward([]*tensor.Tensor{z}, 1)
	unit := imgs.Clone()
	for i, v := range imgs.Data {
		unit.Data[i] = (v + 1) * 0.5
	}
	path := filepath.Join(outDir, "sample_"+strconv.Itoa(inf.imgSize)+"x"+strconv.Itoa(inf.imgSize)+".png")
	if err := telemetry.WriteGrid(path, unit, inf.imgChans, inf.imgSize, inf.imgSize); err != nil {
		return "", err
	}
	return path, nil
}
