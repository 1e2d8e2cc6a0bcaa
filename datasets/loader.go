package datasets

import "math/rand"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/parallel"
import "github.com/neurlang/stylegan/tensor"

// MinSize is the resolution of the first tier.
const MinSize = 4

// Loader yields training batches at the current resolution tier. It starts
// ungrown; the first Grow call activates the smallest tier. Batches are
// assembled by a single prefetching goroutine, restarted on every Grow, so
// the training loop never waits on image decoding.
type Loader struct {
	provider     Provider
	batchSize    int
	phaseSamples int
	workers      int

	imgSize int
	seen    int
	rng     *rand.Rand

	batches chan *tensor.Tensor
	stop    chan struct{}
}

// NewLoader constructs an ungrown loader. phaseSamples is the number of
// samples one phase delivers; workers bounds the per-batch decode
// parallelism.
func NewLoader(p Provider, batchSize, phaseSamples, workers int, seed int64) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{
		provider:     p,
		batchSize:    batchSize,
		phaseSamples: phaseSamples,
		workers:      workers,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// ImgSize returns the current resolution tier, 0 before the first Grow.
func (l *Loader) ImgSize() int {
	return l.imgSize
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Batches returns the number of batches one phase delivers.
func (l *Loader) Batches() int {
	return l.phaseSamples / l.batchSize
}

// Channels returns the image channel count.
func (l *Loader) Channels() int {
	return l.provider.Channels()
}

// Grow advances to the next resolution tier, resets the phase progress and
// restarts the prefetcher. It fails once the provider has no larger tier.
func (l *Loader) Grow() error {
	next := MinSize
	if l.imgSize != 0 {
		next = l.imgSize * 2
	}
	if next > l.provider.MaxSize() {
		return errors.Errorf("datasets: no %dx%d tier, provider tops out at %dx%d",
			next, next, l.provider.MaxSize(), l.provider.MaxSize())
	}
	l.stopPrefetch()
	l.imgSize = next
	l.seen = 0
	l.startPrefetch()
	return nil
}

// SetCheckpoint restores the phase progress counter to a saved value.
func (l *Loader) SetCheckpoint(samples int) {
	l.seen = samples
}

// Next yields the next batch together with the cumulative samples seen in
// this phase. It reports false once the phase's sample budget is spent.
func (l *Loader) Next() (*tensor.Tensor, int, bool) {
	if l.imgSize == 0 {
		panic("datasets: Next on ungrown loader")
	}
	if l.seen >= l.phaseSamples {
		return nil, l.seen, false
	}
	batch := <-l.batches
	l.seen += l.batchSize
	return batch, l.seen, true
}

// Close stops the prefetcher.
func (l *Loader) Close() {
	l.stopPrefetch()
}

func (l *Loader) stopPrefetch() {
	if l.stop != nil {
		close(l.stop)
		// unblock a producer parked on the channel
		for range l.batches {
		}
		l.stop = nil
		l.batches = nil
	}
}

func (l *Loader) startPrefetch() {
	stop := make(chan struct{})
	batches := make(chan *tensor.Tensor, l.workers)
	l.stop = stop
	l.batches = batches
	size := l.imgSize
	rng := rand.New(rand.NewSource(l.rng.Int63()))
	go func() {
		defer close(batches)
		for {
			batch := l.makeBatch(rng, size)
			select {
			case <-stop:
				return
			case batches <- batch:
			}
		}
	}()
}

func (l *Loader) makeBatch(rng *rand.Rand, size int) *tensor.Tensor {
	c := l.provider.Channels()
	max := l.provider.MaxSize()
	idx := make([]int, l.batchSize)
	for i := range idx {
		idx[i] = rng.Intn(l.provider.Len())
	}
	full := tensor.New(l.batchSize, c*max*max)
	parallel.ForEach(l.batchSize, l.workers, func(i int) {
		l.provider.Image(idx[i], full.Row(i))
	})
	for s := max; s > size; s /= 2 {
		full = tensor.Downsample2(full, c, s, s)
	}
	// map [0,1] into the generator's [-1,1] output range
	for i := range full.Data {
		full.Data[i] = full.Data[i]*2 - 1
	}
	return full
}
