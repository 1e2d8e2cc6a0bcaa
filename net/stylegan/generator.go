// Package stylegan implements the progressively growing generator and
// discriminator networks. Both start at the 4x4 tier and add one
// resolution-doubling tier per Grow call; a forward pass accepts the alpha
// factor blending the newest tier against the previous one while it fades
// in. The layers backpropagate by replaying cached inputs, and the
// discriminator additionally exposes an exact R1 gradient penalty.
package stylegan

import "math/rand"

import "github.com/neurlang/stylegan/layer"
import "github.com/neurlang/stylegan/tensor"

// BaseSize is the spatial size of the first tier.
const BaseSize = 4

// Config describes one network's topology.
type Config struct {
	NZ          int   // latent width; also the style width
	StyleDepth  int   // mapper depth (generator only)
	Channels    []int // channels per tier, tier k rendering at 4*2^k
	ImgChannels int   // channels of the rendered image
}

func (c Config) channelAt(tier int) int {
	if tier < len(c.Channels) {
		return c.Channels[tier]
	}
	return c.Channels[len(c.Channels)-1]
}

// resAt returns the spatial size of a tier.
func resAt(tier int) int {
	return BaseSize << tier
}

type synthBlock struct {
	res   int
	inCh  int
	ch    int
	dense *layer.Dense
	style *layer.Dense
	act   *layer.LeakyReLU
	torgb *layer.Dense
	lastA *tensor.Tensor
}

// Generator maps one or two latent vectors to an image at the resolution of
// its newest tier.
type Generator struct {
	cfg Config
	rng *rand.Rand

	mapper    []*layer.Dense
	mapperAct []*layer.LeakyReLU
	constant  *layer.Param
	blocks    []*synthBlock

	lastTwo   bool
	lastCross int
	lastBlend bool
	lastAlpha float64
	lastConst *tensor.Tensor
}

// NewGenerator builds an ungrown generator; the first Grow call creates the
// 4x4 tier.
func NewGenerator(cfg Config, seed int64) *Generator {
	g := &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
	for i := 0; i < cfg.StyleDepth; i++ {
		g.mapper = append(g.mapper, layer.NewDense(g.rng, cfg.NZ, cfg.NZ))
		g.mapperAct = append(g.mapperAct, layer.NewLeakyReLU())
	}
	g.constant = layer.RandnParam(g.rng, 1, cfg.channelAt(0)*BaseSize*BaseSize)
	return g
}

// Step returns the number of grown tiers.
func (g *Generator) Step() int {
	return len(g.blocks)
}

// Resolution returns the output image size of the newest tier.
func (g *Generator) Resolution() int {
	return resAt(len(g.blocks) - 1)
}

// Grow adds the next resolution tier.
func (g *Generator) Grow() {
	tier := len(g.blocks)
	res := resAt(tier)
	ch := g.cfg.channelAt(tier)
	inCh := g.cfg.channelAt(0)
	if tier > 0 {
		inCh = g.cfg.channelAt(tier - 1)
	}
	spatial := res * res
	g.blocks = append(g.blocks, &synthBlock{
		res:   res,
		inCh:  inCh,
		ch:    ch,
		dense: layer.NewDense(g.rng, inCh*spatial, ch*spatial),
		style: layer.NewDense(g.rng, g.cfg.NZ, ch*spatial),
		act:   layer.NewLeakyReLU(),
		torgb: layer.NewDense(g.rng, ch*spatial, g.cfg.ImgChannels*spatial),
	})
}

// mapStyles runs the mapper over one or two latent batches. With two
// latents the batches are stacked so the mapper forward (and later its
// backward) happens exactly once.
func (g *Generator) mapStyles(z []*tensor.Tensor) *tensor.Tensor {
	in := z[0]
	if len(z) == 2 {
		in = tensor.New(2*z[0].Rows(), g.cfg.NZ)
		copy(in.Data[:z[0].Len()], z[0].Data)
		copy(in.Data[z[0].Len():], z[1].Data)
	}
	x := in
	for i, d := range g.mapper {
		x = g.mapperAct[i].Forward(d.Forward(x))
	}
	return x
}

// styleFor returns the style rows a tier consumes: with mixing enabled,
// tiers before the crossover read the first latent's styles and the rest
// read the second's.
func (g *Generator) styleFor(ws *tensor.Tensor, batch, tier int) *tensor.Tensor {
	off := 0
	if g.lastTwo && tier >= g.lastCross {
		off = batch
	}
	w := &tensor.Tensor{Shape: []int{batch, g.cfg.NZ}, Data: ws.Data[off*g.cfg.NZ : (off+batch)*g.cfg.NZ]}
	return w
}

// Forward renders a batch of images from one or two latent batches at the
// given blend factor.
func (g *Generator) Forward(z []*tensor.Tensor, alpha float64) *tensor.Tensor {
	if len(g.blocks) == 0 {
		panic("stylegan: forward on ungrown generator")
	}
	batch := z[0].Rows()
	g.lastTwo = len(z) == 2
	g.lastCross = (len(g.blocks) + 1) / 2
	ws := g.mapStyles(z)

	g.lastConst = tensor.New(batch, g.constant.Value.Len())
	for b := 0; b < batch; b++ {
		copy(g.lastConst.Row(b), g.constant.Value.Data)
	}

	x := g.lastConst
	for k, blk := range g.blocks {
		if k > 0 {
			half := blk.res / 2
			x = tensor.Upsample2(x, blk.inCh, half, half)
		}
		y := blk.dense.Forward(x)
		sy := blk.style.Forward(g.styleFor(ws, batch, k))
		tensor.Axpy(1, sy.Data, y.Data)
		blk.lastA = blk.act.Forward(y)
		x = blk.lastA
	}

	last := g.blocks[len(g.blocks)-1]
	out := last.torgb.Forward(x)
	g.lastBlend = len(g.blocks) > 1 && alpha < 1
	g.lastAlpha = alpha
	if g.lastBlend {
		pblk := g.blocks[len(g.blocks)-2]
		skip := pblk.torgb.Forward(pblk.lastA)
		up := tensor.Upsample2(skip, g.cfg.ImgChannels, pblk.res, pblk.res)
		blended := tensor.New(out.Shape...)
		tensor.Lerp(alpha, up.Data, out.Data, blended.Data)
		out = blended
	}
	return out
}

// Backward accumulates parameter gradients from the output gradient of the
// most recent Forward.
func (g *Generator) Backward(dOut *tensor.Tensor) {
	batch := dOut.Rows()
	n := len(g.blocks)
	last := g.blocks[n-1]

	dRGB := dOut
	var dSkipA *tensor.Tensor
	if g.lastBlend {
		dRGB = dOut.Clone()
		tensor.Scale(g.lastAlpha, dRGB.Data)
		pblk := g.blocks[n-2]
		dUp := dOut.Clone()
		tensor.Scale(1-g.lastAlpha, dUp.Data)
		dSkipRGB := tensor.Upsample2T(dUp, g.cfg.ImgChannels, pblk.res, pblk.res)
		dSkipA = pblk.torgb.Backward(dSkipRGB, true)
	}

	rows := batch
	if g.lastTwo {
		rows = 2 * batch
	}
	dws := tensor.New(rows, g.cfg.NZ)

	dA := last.torgb.Backward(dRGB, true)
	for k := n - 1; k >= 0; k-- {
		blk := g.blocks[k]
		if k == n-2 && dSkipA != nil {
			tensor.Axpy(1, dSkipA.Data, dA.Data)
		}
		dY := blk.act.Backward(dA)
		dw := blk.style.Backward(dY, true)
		off := 0
		if g.lastTwo && k >= g.lastCross {
			off = batch
		}
		for b := 0; b < batch; b++ {
			tensor.Axpy(1, dw.Row(b), dws.Row(off+b))
		}
		dX := blk.dense.Backward(dY, true)
		if k > 0 {
			half := blk.res / 2
			dA = tensor.Upsample2T(dX, blk.inCh, half, half)
		} else {
			for b := 0; b < batch; b++ {
				tensor.Axpy(1, dX.Row(b), g.constant.Grad.Data)
			}
		}
	}

	dx := dws
	for i := len(g.mapper) - 1; i >= 0; i-- {
		dx = g.mapper[i].Backward(g.mapperAct[i].Backward(dx), true)
	}
}

// NamedParameters enumerates all parameters under stable dotted names.
func (g *Generator) NamedParameters() []layer.Named {
	var out []layer.Named
	out = append(out, layer.Named{Name: "const", Param: g.constant})
	for i, d := range g.mapper {
		out = append(out, d.Params(dotted("mapper", i))...)
	}
	for k, blk := range g.blocks {
		out = append(out, blk.dense.Params(dotted("blocks", k)+".dense")...)
		out = append(out, blk.style.Params(dotted("blocks", k)+".style")...)
		out = append(out, blk.torgb.Params(dotted("blocks", k)+".torgb")...)
	}
	return out
}

// MapperParameters enumerates only the style-mapper parameters; the
// generator optimizer drives these at the reduced style learning rate.
func (g *Generator) MapperParameters() []layer.Named {
	var out []layer.Named
	for i, d := range g.mapper {
		out = append(out, d.Params(dotted("mapper", i))...)
	}
	return out
}

// SynthesisParameters enumerates everything outside the style mapper.
func (g *Generator) SynthesisParameters() []layer.Named {
	var out []layer.Named
	out = append(out, layer.Named{Name: "const", Param: g.constant})
	for k, blk := range g.blocks {
		out = append(out, blk.dense.Params(dotted("blocks", k)+".dense")...)
		out = append(out, blk.style.Params(dotted("blocks", k)+".style")...)
		out = append(out, blk.torgb.Params(dotted("blocks", k)+".torgb")...)
	}
	return out
}
