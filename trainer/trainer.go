package trainer

import "fmt"
import "math"
import "math/rand"
import "os"
import "path/filepath"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/amp"
import "github.com/neurlang/stylegan/config"
import "github.com/neurlang/stylegan/datasets"
import "github.com/neurlang/stylegan/device"
import "github.com/neurlang/stylegan/ema"
import "github.com/neurlang/stylegan/learning"
import "github.com/neurlang/stylegan/net/stylegan"
import "github.com/neurlang/stylegan/telemetry"
import "github.com/neurlang/stylegan/tensor"

// noBlendSize is the largest resolution at which alpha is pinned to 1;
// there is no meaningful architectural transition to fade below it.
const noBlendSize = 8

// mixingProb is the probability a step draws two independent latents.
const mixingProb = 0.9

// r1Coef is the R1 gradient penalty coefficient, 10/2.
const r1Coef = 5.0

// Trainer owns the full mutable training state: the model pair, both
// optimizers, the loss scaler, the phase counters, and the data source.
// Everything runs on the single orchestrating goroutine.
type Trainer struct {
	cfg *config.Config
	nz  int

	loader        *datasets.Loader
	generator     *stylegan.Generator
	generatorEMA  *stylegan.Generator
	discriminator *stylegan.Discriminator

	tb      *telemetry.Recorder
	shuttle *device.Shuttle

	phaseIter int
	lrs       map[int]float64
	hyper     learning.Hyperparameters
	halflife  float64
	optLevel  string

	lr      float64
	styleLR float64
	optG    *learning.Adam
	optD    *learning.Adam
	scaler  *amp.Scaler

	globalIter int
	rng        *rand.Rand
}

// New builds an ungrown trainer over the given provider and device; the
// first Grow (or a checkpoint load) activates the smallest resolution.
func New(cfg *config.Config, p datasets.Provider, dev device.Device) (*Trainer, error) {
	gcfg := stylegan.Config{
		NZ:          cfg.NZ,
		StyleDepth:  cfg.StyleDepth,
		Channels:    cfg.GeneratorChannels,
		ImgChannels: cfg.ImgChannels,
	}
	dcfg := stylegan.Config{
		NZ:          cfg.NZ,
		Channels:    cfg.DiscriminatorChannels,
		ImgChannels: cfg.ImgChannels,
	}
	g := stylegan.NewGenerator(gcfg, cfg.Seed)
	gema := stylegan.NewGenerator(gcfg, cfg.Seed+1)
	// the EMA twin starts from an exact copy of the live weights
	if err := stylegan.ImportState(gema.NamedParameters(), stylegan.ExportState(g.NamedParameters())); err != nil {
		return nil, err
	}
	d := stylegan.NewDiscriminator(dcfg, cfg.Seed+2)

	tb, err := telemetry.NewRecorder(cfg.RunName, cfg.RunDir)
	if err != nil {
		return nil, err
	}

	shuttle := device.NewShuttle(dev, 1)
	if err := shuttle.MoveOn("generator"); err != nil {
		return nil, err
	}

	hyper := learning.Hyperparameters{LR: cfg.DefaultLR, Betas: cfg.Betas, Eps: cfg.Eps}
	hyper.SetLogger(filepath.Join(cfg.RunDir, cfg.RunName, "optimizer.log"))

	return &Trainer{
		cfg:           cfg,
		nz:            cfg.NZ,
		loader:        datasets.NewLoader(p, cfg.BatchSize, cfg.PhaseIter*2, cfg.NCPU, cfg.Seed),
		generator:     g,
		generatorEMA:  gema,
		discriminator: d,
		tb:            tb,
		shuttle:       shuttle,
		phaseIter:     cfg.PhaseIter,
		lrs:           cfg.LRs,
		hyper:         hyper,
		halflife:      cfg.WeightsHalflifeImages,
		optLevel:      cfg.OptLevel,
		rng:           rand.New(rand.NewSource(cfg.Seed + 3)),
	}, nil
}

// Alpha computes the blend factor from the samples seen this phase. The
// ramp spans phaseIter samples of the doubled phase budget, and the small
// tiers train without blending.
func (t *Trainer) Alpha(seen int) float64 {
	if t.loader.ImgSize() <= noBlendSize {
		return 1
	}
	a := float64(seen) / float64(t.phaseIter)
	if a > 1 {
		return 1
	}
	return a
}

// SampleLatents draws one latent batch, or with probability 0.9 two
// independent batches for style-mixing regularization.
func (t *Trainer) SampleLatents(batch int) []*tensor.Tensor {
	if t.rng.Float64() < mixingProb {
		return []*tensor.Tensor{
			tensor.Randn(t.rng, batch, t.nz),
			tensor.Randn(t.rng, batch, t.nz),
		}
	}
	return []*tensor.Tensor{tensor.Randn(t.rng, batch, t.nz)}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softplus computes ln(1+e^x) without overflowing for large x.
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// DiscriminatorStep updates the discriminator on one real batch: softplus
// real loss with the graph retained for the R1 penalty, the penalty
// itself, then the fake loss on freshly generated samples, all scaled
// through the loss scaler before one optimizer step. Returns the summed
// scaled loss and the mean real/fake scores.
func (t *Trainer) DiscriminatorStep(real *tensor.Tensor, alpha float64) (float64, float64, float64) {
	batch := real.Rows()
	scale := t.scaler.LossScale()
	t.optD.ZeroGrad()

	dReal := t.discriminator.Forward(real, alpha)
	var lossReal, realScore float64
	seed := tensor.New(batch, 1)
	for i, v := range dReal.Data {
		lossReal += softplus(-v)
		realScore += v
		seed.Data[i] = -sigmoid(-v) * scale / float64(batch)
	}
	lossReal /= float64(batch)
	realScore /= float64(batch)
	t.discriminator.Backward(seed, true)

	// must run while the caches still hold the real batch
	scaledPenalty := t.discriminator.GradPenalty(r1Coef * scale)

	fake := t.generator.Forward(t.SampleLatents(batch), alpha)
	dFake := t.discriminator.Forward(fake, alpha)
	var lossFake, fakeScore float64
	seedF := tensor.New(batch, 1)
	for i, v := range dFake.Data {
		lossFake += softplus(v)
		fakeScore += v
		seedF.Data[i] = sigmoid(v) * scale / float64(batch)
	}
	lossFake /= float64(batch)
	fakeScore /= float64(batch)
	t.discriminator.Backward(seedF, true)

	t.scaler.Step(t.optD)

	total := scale*lossReal + scale*lossFake + scaledPenalty
	return total, realScore, fakeScore
}

// GeneratorStep updates the generator on one latent batch with the
// discriminator frozen, then immediately overwrites every trainable
// generator parameter with its EMA-smoothed value. That in-place overwrite
// is a second smoothing mechanism alongside the separate EMA model; both
// share one decay schedule and both are deliberate.
func (t *Trainer) GeneratorStep(batch int, alpha float64, e *ema.EMA) float64 {
	scale := t.scaler.LossScale()
	t.optG.ZeroGrad()

	fake := t.generator.Forward(t.SampleLatents(batch), alpha)
	dFake := t.discriminator.Forward(fake, alpha)
	var loss float64
	seed := tensor.New(batch, 1)
	for i, v := range dFake.Data {
		loss += softplus(-v)
		seed.Data[i] = -sigmoid(-v) * scale / float64(batch)
	}
	loss /= float64(batch)

	dImg := t.discriminator.Backward(seed, false)
	t.generator.Backward(dImg)
	t.scaler.Step(t.optG)

	for _, np := range t.generator.NamedParameters() {
		if np.Param.Trainable {
			copy(np.Param.Value.Data, e.Update(np.Name, np.Param.Value.Data))
		}
	}
	return loss
}

// InitEMA derives this phase's decay factor and seeds a fresh shadow from
// the EMA generator's parameters. Growth invalidates the previous phase's
// shadow, so one tracker lives per phase.
func (t *Trainer) InitEMA() *ema.EMA {
	e := ema.New(ema.Decay(t.loader.BatchSize(), t.halflife))
	for _, np := range t.generatorEMA.NamedParameters() {
		if np.Param.Trainable {
			e.Register(np.Name, np.Param.Value.Data)
		}
	}
	return e
}

// SaveEMA writes the shadow into the EMA generator and exports the
// smoothed weights on their own, so sampling does not need the full
// training checkpoint.
func (t *Trainer) SaveEMA(e *ema.EMA) error {
	e.Apply(t.generatorEMA)
	if err := os.MkdirAll(t.cfg.CheckpointDir, 0775); err != nil {
		return errors.Wrap(err, "trainer: checkpoint dir")
	}
	size := t.loader.ImgSize()
	name := filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("%dx%d_ema.pth", size, size))
	return stylegan.WriteZlibStateToFile(stylegan.ExportState(t.generatorEMA.NamedParameters()), name)
}

// Generator exposes the live generator, used by tests and inference.
func (t *Trainer) Generator() *stylegan.Generator {
	return t.generator
}

// GeneratorEMA exposes the EMA generator.
func (t *Trainer) GeneratorEMA() *stylegan.Generator {
	return t.generatorEMA
}

// Discriminator exposes the discriminator.
func (t *Trainer) Discriminator() *stylegan.Discriminator {
	return t.discriminator
}

// Loader exposes the data source.
func (t *Trainer) Loader() *datasets.Loader {
	return t.loader
}

// LearningRates returns the current main and style learning rates.
func (t *Trainer) LearningRates() (float64, float64) {
	return t.lr, t.styleLR
}
