// Package config loads the YAML run configuration shared by training and
// inference.
package config

import "os"
import "runtime"

import "github.com/pkg/errors"
import "gopkg.in/yaml.v3"

// Config is the experiment configuration.
type Config struct {
	Dataset    string `yaml:"dataset"`     // "mnist" or "synthetic"
	DatasetDir string `yaml:"dataset_dir"` // where dataset files live

	GeneratorChannels     []int `yaml:"generator_channels"`
	DiscriminatorChannels []int `yaml:"discriminator_channels"`
	ImgChannels           int   `yaml:"img_channels"`
	NZ                    int   `yaml:"nz"`
	StyleDepth            int   `yaml:"style_depth"`

	LRs       map[int]float64 `yaml:"lrs"` // learning rate per resolution
	DefaultLR float64         `yaml:"default_lr"`
	Betas     [2]float64      `yaml:"betas"`
	Eps       float64         `yaml:"eps"`

	PhaseIter             int     `yaml:"phase_iter"` // samples per nominal phase; a phase delivers twice this
	WeightsHalflifeImages float64 `yaml:"weights_halflife_images"`
	BatchSize             int     `yaml:"batch_size"`
	NCPU                  int     `yaml:"n_cpu"`
	OptLevel              string  `yaml:"opt_level"`
	LogIter               int     `yaml:"log_iter"`

	CheckpointDir string `yaml:"checkpoint_dir"`
	RunDir        string `yaml:"run_dir"`
	RunName       string `yaml:"run_name"`
	Device        string `yaml:"device"` // "host" or "cuda"
	Seed          int64  `yaml:"seed"`
}

// Load reads and validates a configuration file, filling defaults for
// anything unset.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Dataset == "" {
		c.Dataset = "mnist"
	}
	if c.ImgChannels == 0 {
		c.ImgChannels = 1
	}
	if c.DefaultLR == 0 {
		c.DefaultLR = 0.001
	}
	if c.Betas == [2]float64{} {
		c.Betas = [2]float64{0, 0.99}
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	if c.BatchSize == 0 {
		c.BatchSize = 16
	}
	if c.NCPU == 0 {
		c.NCPU = runtime.NumCPU()
	}
	if c.OptLevel == "" {
		c.OptLevel = "O1"
	}
	if c.LogIter == 0 {
		c.LogIter = 100
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = "checkpoints"
	}
	if c.RunDir == "" {
		c.RunDir = "runs"
	}
	if c.RunName == "" {
		c.RunName = "StyleGAN"
	}
	if c.Device == "" {
		c.Device = "host"
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

func (c *Config) validate() error {
	if len(c.GeneratorChannels) == 0 || len(c.DiscriminatorChannels) == 0 {
		return errors.New("config: generator_channels and discriminator_channels are mandatory")
	}
	if c.NZ <= 0 {
		return errors.New("config: nz must be positive")
	}
	if c.StyleDepth <= 0 {
		return errors.New("config: style_depth must be positive")
	}
	if c.PhaseIter <= 0 {
		return errors.New("config: phase_iter must be positive")
	}
	if c.PhaseIter%c.BatchSize != 0 {
		return errors.New("config: phase_iter must be a multiple of batch_size")
	}
	return nil
}
