package trainer

import "fmt"

import "github.com/neurlang/stylegan/amp"
import "github.com/neurlang/stylegan/learning"

// Grow advances every collaborator to the next resolution tier together:
// both generators and the discriminator gain a tier, the data source moves
// up, telemetry starts a new segment, and both optimizers are rebuilt from
// scratch over the new parameter sets before being re-wrapped by the loss
// scaler. The error from an exhausted resolution ladder ends the run.
func (t *Trainer) Grow() error {
	if err := t.loader.Grow(); err != nil {
		return err
	}
	t.discriminator.Grow()
	t.generator.Grow()
	t.generatorEMA.Grow()
	size := t.loader.ImgSize()
	if err := t.tb.Renew(fmt.Sprintf("%dx%d", size, size)); err != nil {
		return err
	}

	lr, ok := t.lrs[size]
	if !ok {
		lr = t.hyper.LR
	}
	t.lr = lr
	t.styleLR = lr * 0.01
	t.hyper.Logf("phase %dx%d lr %v style lr %v betas %v", size, size, t.lr, t.styleLR, t.hyper.Betas)

	t.optD = learning.NewAdam(t.hyper.Betas, t.hyper.Eps,
		learning.Group{LR: t.lr, Params: t.discriminator.NamedParameters()})
	t.optG = learning.NewAdam(t.hyper.Betas, t.hyper.Eps,
		learning.Group{LR: t.lr, Params: t.generator.SynthesisParameters()},
		learning.Group{LR: t.styleLR, Params: t.generator.MapperParameters()})

	opts, scaler, err := amp.Initialize([]*learning.Adam{t.optG, t.optD}, t.optLevel)
	if err != nil {
		return err
	}
	t.optG, t.optD = opts[0], opts[1]
	t.scaler = scaler
	return nil
}
