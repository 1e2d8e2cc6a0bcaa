package trainer

import "compress/zlib"
import "encoding/json"
import "fmt"
import "os"
import "path/filepath"
import "strconv"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/learning"
import "github.com/neurlang/stylegan/net/stylegan"

// Tick marks where in a phase a checkpoint was taken: either a specific
// samples-seen count, or "last" for the phase-end checkpoint whose resume
// immediately grows past the saved resolution.
type Tick struct {
	Last    bool
	Samples int
}

// TickAt marks a mid-phase checkpoint at the given samples-seen count.
func TickAt(samples int) Tick {
	return Tick{Samples: samples}
}

// TickLast marks a phase-end checkpoint.
var TickLast = Tick{Last: true}

// String renders the tick the way checkpoint file names encode it.
func (t Tick) String() string {
	if t.Last {
		return "last"
	}
	return strconv.Itoa(t.Samples)
}

// MarshalJSON encodes "last" or the sample count.
func (t Tick) MarshalJSON() ([]byte, error) {
	if t.Last {
		return json.Marshal("last")
	}
	return json.Marshal(t.Samples)
}

// UnmarshalJSON accepts either form.
func (t *Tick) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s != "last" {
			return errors.Errorf("trainer: bad tick %q", s)
		}
		*t = Tick{Last: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return errors.Wrap(err, "trainer: bad tick")
	}
	*t = Tick{Samples: n}
	return nil
}

// Record is the full serialized training state of one checkpoint.
type Record struct {
	Generator              stylegan.StateDict `json:"generator"`
	GeneratorEMA           stylegan.StateDict `json:"generator_ema"`
	Discriminator          stylegan.StateDict `json:"discriminator"`
	GeneratorOptimizer     learning.State     `json:"generator_optimizer"`
	DiscriminatorOptimizer learning.State     `json:"discriminator_optimizer"`
	ImgSize                int                `json:"img_size"`
	Tick                   Tick               `json:"tick"`
}

// WriteRecord writes a checkpoint record as zlib-compressed JSON.
func WriteRecord(rec *Record, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "trainer: create checkpoint")
	}
	zw := zlib.NewWriter(file)
	if err := json.NewEncoder(zw).Encode(rec); err != nil {
		file.Close()
		return errors.Wrap(err, "trainer: encode checkpoint")
	}
	if err := zw.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadRecord reads a checkpoint record back.
func ReadRecord(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "trainer: open checkpoint")
	}
	defer file.Close()
	zr, err := zlib.NewReader(file)
	if err != nil {
		return nil, errors.Wrap(err, "trainer: checkpoint compression")
	}
	rec := &Record{}
	if err := json.NewDecoder(zr).Decode(rec); err != nil {
		return nil, errors.Wrap(err, "trainer: decode checkpoint")
	}
	return rec, zr.Close()
}

// CheckpointPath encodes the resolution and tick into the artifact name.
func CheckpointPath(dir string, size int, tick Tick) string {
	return filepath.Join(dir, fmt.Sprintf("%dx%d_%s.pth", size, size, tick))
}

// SaveCheckpoint serializes the model pair, both optimizers and the phase
// state to a resolution- and tick-named artifact.
func (t *Trainer) SaveCheckpoint(tick Tick) error {
	if err := os.MkdirAll(t.cfg.CheckpointDir, 0775); err != nil {
		return errors.Wrap(err, "trainer: checkpoint dir")
	}
	rec := &Record{
		Generator:              stylegan.ExportState(t.generator.NamedParameters()),
		GeneratorEMA:           stylegan.ExportState(t.generatorEMA.NamedParameters()),
		Discriminator:          stylegan.ExportState(t.discriminator.NamedParameters()),
		GeneratorOptimizer:     t.optG.Export(),
		DiscriminatorOptimizer: t.optD.Export(),
		ImgSize:                t.loader.ImgSize(),
		Tick:                   tick,
	}
	return WriteRecord(rec, CheckpointPath(t.cfg.CheckpointDir, rec.ImgSize, tick))
}

// LoadCheckpoint restores a saved run. Growth is replayed from the bottom
// until the live resolution matches the record, so every intermediate
// optimizer and model shape is reconstructed, then all weights and
// optimizer states are restored. A "last" tick grows once more past the
// saved resolution; a mid-phase tick resumes the phase at its progress
// counter.
func (t *Trainer) LoadCheckpoint(path string) error {
	rec, err := ReadRecord(path)
	if err != nil {
		return err
	}
	println("load", fmt.Sprintf("%dx%d", rec.ImgSize, rec.ImgSize), "checkpoint")

	for t.loader.ImgSize() < rec.ImgSize {
		if err := t.Grow(); err != nil {
			return errors.Wrapf(err, "trainer: checkpoint resolution %d unreachable", rec.ImgSize)
		}
	}
	if t.loader.ImgSize() != rec.ImgSize {
		return errors.Errorf("trainer: checkpoint resolution %d not on the ladder", rec.ImgSize)
	}

	if err := stylegan.ImportState(t.generator.NamedParameters(), rec.Generator); err != nil {
		return err
	}
	if err := stylegan.ImportState(t.generatorEMA.NamedParameters(), rec.GeneratorEMA); err != nil {
		return err
	}
	if err := stylegan.ImportState(t.discriminator.NamedParameters(), rec.Discriminator); err != nil {
		return err
	}
	if err := t.optG.Import(rec.GeneratorOptimizer); err != nil {
		return err
	}
	if err := t.optD.Import(rec.DiscriminatorOptimizer); err != nil {
		return err
	}

	if rec.Tick.Last {
		return t.Grow()
	}
	t.loader.SetCheckpoint(rec.Tick.Samples)
	t.tb.Iter(rec.Tick.Samples)
	return nil
}
