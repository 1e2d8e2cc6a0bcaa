package stylegan

import "math/rand"

import "github.com/neurlang/stylegan/layer"
import "github.com/neurlang/stylegan/tensor"

type dBlock struct {
	res   int // spatial size this block consumes
	ch    int
	outCh int
	dense *layer.Dense
	act   *layer.LeakyReLU
}

// Discriminator scores image batches; it grows tier by tier in lockstep
// with the generator and blends its newest fromRGB path against the
// previous tier's while the new tier fades in.
type Discriminator struct {
	cfg Config
	rng *rand.Rand

	fromRGB []*layer.Dense
	fromAct []*layer.LeakyReLU
	blocks  []*dBlock // blocks[k-1] reduces tier k to tier k-1
	head    *layer.Dense

	lastBlend bool
	lastAlpha float64
	lastBatch int
}

// NewDiscriminator builds an ungrown discriminator; the first Grow call
// creates the 4x4 tier.
func NewDiscriminator(cfg Config, seed int64) *Discriminator {
	d := &Discriminator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
	d.head = layer.NewDense(d.rng, cfg.channelAt(0)*BaseSize*BaseSize, 1)
	return d
}

// Step returns the number of grown tiers.
func (d *Discriminator) Step() int {
	return len(d.fromRGB)
}

// Resolution returns the input image size of the newest tier.
func (d *Discriminator) Resolution() int {
	return resAt(len(d.fromRGB) - 1)
}

// Grow adds the next resolution tier.
func (d *Discriminator) Grow() {
	tier := len(d.fromRGB)
	res := resAt(tier)
	spatial := res * res
	ch := d.cfg.channelAt(tier)
	d.fromRGB = append(d.fromRGB, layer.NewDense(d.rng, d.cfg.ImgChannels*spatial, ch*spatial))
	d.fromAct = append(d.fromAct, layer.NewLeakyReLU())
	if tier >= 1 {
		d.blocks = append(d.blocks, &dBlock{
			res:   res,
			ch:    ch,
			outCh: d.cfg.channelAt(tier - 1),
			dense: layer.NewDense(d.rng, ch*spatial, d.cfg.channelAt(tier-1)*spatial),
			act:   layer.NewLeakyReLU(),
		})
	}
}

func (d *Discriminator) blockFwd(k int, x *tensor.Tensor) *tensor.Tensor {
	blk := d.blocks[k-1]
	a := blk.act.Forward(blk.dense.Forward(x))
	return tensor.Downsample2(a, blk.outCh, blk.res, blk.res)
}

// Forward scores a batch of images at the given blend factor.
func (d *Discriminator) Forward(img *tensor.Tensor, alpha float64) *tensor.Tensor {
	if len(d.fromRGB) == 0 {
		panic("stylegan: forward on ungrown discriminator")
	}
	c := len(d.fromRGB) - 1
	d.lastBatch = img.Rows()
	d.lastAlpha = alpha
	d.lastBlend = c >= 1 && alpha < 1

	x := d.fromAct[c].Forward(d.fromRGB[c].Forward(img))
	if c >= 1 {
		x = d.blockFwd(c, x)
		if d.lastBlend {
			res := resAt(c)
			down := tensor.Downsample2(img, d.cfg.ImgChannels, res, res)
			skip := d.fromAct[c-1].Forward(d.fromRGB[c-1].Forward(down))
			mix := tensor.New(x.Shape...)
			tensor.Lerp(alpha, skip.Data, x.Data, mix.Data)
			x = mix
		}
		for k := c - 1; k >= 1; k-- {
			x = d.blockFwd(k, x)
		}
	}
	return d.head.Forward(x)
}

func (d *Discriminator) denseBack(dn *layer.Dense, dy *tensor.Tensor, accumulate, capture bool) *tensor.Tensor {
	if capture {
		return dn.BackwardCapture(dy)
	}
	return dn.Backward(dy, accumulate)
}

func (d *Discriminator) blockBack(k int, dPooled *tensor.Tensor, accumulate, capture bool) *tensor.Tensor {
	blk := d.blocks[k-1]
	dA := tensor.Downsample2T(dPooled, blk.outCh, blk.res, blk.res)
	dY := blk.act.Backward(dA)
	return d.denseBack(blk.dense, dY, accumulate, capture)
}

func (d *Discriminator) backprop(dScore *tensor.Tensor, accumulate, capture bool) *tensor.Tensor {
	c := len(d.fromRGB) - 1
	dx := d.denseBack(d.head, dScore, accumulate, capture)
	if c == 0 {
		dT := d.fromAct[0].Backward(dx)
		return d.denseBack(d.fromRGB[0], dT, accumulate, capture)
	}
	for k := 1; k <= c-1; k++ {
		dx = d.blockBack(k, dx, accumulate, capture)
	}
	var dImgSkip *tensor.Tensor
	if d.lastBlend {
		res := resAt(c)
		dSkip := dx.Clone()
		tensor.Scale(1-d.lastAlpha, dSkip.Data)
		dT := d.fromAct[c-1].Backward(dSkip)
		dDown := d.denseBack(d.fromRGB[c-1], dT, accumulate, capture)
		dImgSkip = tensor.Downsample2T(dDown, d.cfg.ImgChannels, res, res)
		dx = dx.Clone()
		tensor.Scale(d.lastAlpha, dx.Data)
	}
	dx = d.blockBack(c, dx, accumulate, capture)
	dT := d.fromAct[c].Backward(dx)
	dImg := d.denseBack(d.fromRGB[c], dT, accumulate, capture)
	if dImgSkip != nil {
		tensor.Axpy(1, dImgSkip.Data, dImg.Data)
	}
	return dImg
}

// Backward propagates the score gradient through the network, returning the
// image gradient. Parameter gradients accumulate only when accumulate is
// set; a generator update scores with the discriminator frozen.
func (d *Discriminator) Backward(dScore *tensor.Tensor, accumulate bool) *tensor.Tensor {
	return d.backprop(dScore, accumulate, false)
}

func (d *Discriminator) blockPen(k int, r *tensor.Tensor) *tensor.Tensor {
	blk := d.blocks[k-1]
	r1 := blk.dense.PenaltyPass(r)
	r2 := blk.act.Backward(r1)
	return tensor.Downsample2(r2, blk.outCh, blk.res, blk.res)
}

// GradPenalty computes coef * mean_b ||d score_b / d img_b||^2 over the
// batch of the most recent real Forward and accumulates its exact parameter
// gradients. The double backward is closed-form here: activation masks are
// piecewise constant, so the linearized input-gradient network is linear in
// every weight. Must run after the real-loss backward and before the next
// forward, while the caches still hold the real batch.
func (d *Discriminator) GradPenalty(coef float64) float64 {
	batch := d.lastBatch
	ones := tensor.New(batch, 1)
	for i := range ones.Data {
		ones.Data[i] = 1
	}
	g := d.backprop(ones, false, true)

	var sum float64
	for _, v := range g.Data {
		sum += v * v
	}
	penalty := coef * sum / float64(batch)

	r := g.Clone()
	tensor.Scale(2*coef/float64(batch), r.Data)

	c := len(d.fromRGB) - 1
	rx := d.fromAct[c].Backward(d.fromRGB[c].PenaltyPass(r))
	if c >= 1 {
		rx = d.blockPen(c, rx)
		if d.lastBlend {
			res := resAt(c)
			rDown := tensor.Downsample2(r, d.cfg.ImgChannels, res, res)
			rs := d.fromAct[c-1].Backward(d.fromRGB[c-1].PenaltyPass(rDown))
			mix := tensor.New(rx.Shape...)
			tensor.Lerp(d.lastAlpha, rs.Data, rx.Data, mix.Data)
			rx = mix
		}
		for k := c - 1; k >= 1; k-- {
			rx = d.blockPen(k, rx)
		}
	}
	d.head.PenaltyPass(rx)
	return penalty
}

// NamedParameters enumerates all parameters under stable dotted names.
func (d *Discriminator) NamedParameters() []layer.Named {
	var out []layer.Named
	for k, f := range d.fromRGB {
		out = append(out, f.Params(dotted("from_rgb", k))...)
	}
	for k, blk := range d.blocks {
		out = append(out, blk.dense.Params(dotted("blocks", k+1)+".dense")...)
	}
	out = append(out, d.head.Params("head")...)
	return out
}
