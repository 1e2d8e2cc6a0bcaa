package trainer

import "fmt"

import "github.com/neurlang/stylegan/ema"
import "github.com/neurlang/stylegan/tensor"

// Run drives the whole ladder: grow, train one phase to completion,
// checkpoint, grow again, until the provider has no larger resolution to
// offer. A non-empty checkpoint path resumes from that artifact instead
// of starting at the bottom.
func (t *Trainer) Run(checkpoint string) error {
	// Fixed latents so the periodic sample grids stay comparable across
	// the whole run.
	testZ := tensor.Randn(t.rng, 4, t.nz)

	if checkpoint != "" {
		if err := t.LoadCheckpoint(checkpoint); err != nil {
			return err
		}
	} else {
		if err := t.Grow(); err != nil {
			return err
		}
	}

	for {
		size := t.loader.ImgSize()
		println("phase", fmt.Sprintf("%dx%d", size, size), "lr", fmt.Sprint(t.lr))

		e := t.InitEMA()
		saveEvery := t.loader.Batches()/4 + 1
		iter := 0

		for {
			real, seen, ok := t.loader.Next()
			if !ok {
				break
			}
			alpha := t.Alpha(seen)
			batch := real.Rows()

			dLoss, realScore, fakeScore := t.DiscriminatorStep(real, alpha)
			gLoss := t.GeneratorStep(batch, alpha, e)

			if t.globalIter%t.cfg.LogIter == 0 {
				println("iter", t.globalIter, "alpha", fmt.Sprint(alpha),
					"d", fmt.Sprint(dLoss), "g", fmt.Sprint(gLoss))
				if err := t.logSamples(e, testZ, alpha, dLoss, gLoss, realScore, fakeScore); err != nil {
					return err
				}
			}

			iter++
			if iter%saveEvery == 0 {
				if err := t.SaveEMA(e); err != nil {
					return err
				}
				if err := t.SaveCheckpoint(TickAt(seen)); err != nil {
					return err
				}
			}
			t.globalIter++
			t.tb.Iter(batch)
		}

		if err := t.SaveEMA(e); err != nil {
			return err
		}
		if err := t.SaveCheckpoint(TickLast); err != nil {
			return err
		}
		if err := t.Grow(); err != nil {
			println("ladder done:", err.Error())
			return nil
		}
	}
}

// logSamples records the scalar curves and two sample grids, one from the
// live generator and one from the smoothed twin. The live grid renders
// first because only one generator may be resident on the device at a
// time, and the live one has to move off before the smoothed one moves on.
func (t *Trainer) logSamples(e *ema.EMA, testZ *tensor.Tensor, alpha, dLoss, gLoss, realScore, fakeScore float64) error {
	t.tb.AddScalar("loss/d", dLoss)
	t.tb.AddScalar("loss/g", gLoss)
	t.tb.AddScalar("score/real", realScore)
	t.tb.AddScalar("score/fake", fakeScore)
	t.tb.AddScalar("alpha", alpha)

	live := t.generator.Forward([]*tensor.Tensor{testZ.Clone()}, alpha)
	if err := t.addSampleGrid("sample", live); err != nil {
		return err
	}

	t.shuttle.MoveOff("generator")
	if err := t.shuttle.MoveOn("generator_ema"); err != nil {
		return err
	}
	e.Apply(t.generatorEMA)
	smoothed := t.generatorEMA.Forward([]*tensor.Tensor{testZ.Clone()}, alpha)
	if err := t.addSampleGrid("sample_ema", smoothed); err != nil {
		return err
	}
	t.shuttle.MoveOff("generator_ema")
	return t.shuttle.MoveOn("generator")
}

// addSampleGrid maps generator output from [-1, 1] back to unit range and
// records it as a PNG grid under the given tag.
func (t *Trainer) addSampleGrid(tag string, imgs *tensor.Tensor) error {
	unit := imgs.Clone()
	for i, v := range imgs.Data {
		unit.Data[i] = (v + 1) * 0.5
	}
	size := t.loader.ImgSize()
	return t.tb.AddImages(tag, unit, t.loader.Channels(), size, size)
}
