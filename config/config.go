// Package config loads the three configuration maps consumed by the model
// runtime: architecture, training and callbacks parameters.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReservedLossName is the name under which the total loss is reported.
const ReservedLossName = "loss"

// Task variants.
const (
	VariantSingle    = "single"
	VariantMultitask = "multitask"
)

// Config is the full runtime configuration. It is treated as immutable once
// validated.
type Config struct {
	Architecture Architecture `yaml:"architecture"`
	Training     Training     `yaml:"training"`
	Callbacks    Callbacks    `yaml:"callbacks"`
}

// Architecture describes the network graph.
type Architecture struct {
	Variant       string      `yaml:"variant"`
	InputChannels int         `yaml:"input_channels"`
	InputSize     []int       `yaml:"input_size"` // optional [height, width]
	Trunk         []LayerSpec `yaml:"trunk"`
	Heads         []HeadSpec  `yaml:"heads"`
	Outputs       []string    `yaml:"outputs"`
	WeightsInit   WeightsInit `yaml:"weights_init"`
}

// LayerSpec is one layer of the trunk or of a head.
type LayerSpec struct {
	Type    string  `yaml:"type"` // conv2d, full, relu, sigmoid, tanh, dropout, maxpool2d, upsample2d
	Filters int     `yaml:"filters"`
	Kernel  int     `yaml:"kernel"`
	Units   int     `yaml:"units"`
	P       float64 `yaml:"p"`
	Scale   int     `yaml:"scale"`
}

// HeadSpec is a named prediction head applied to the trunk output.
type HeadSpec struct {
	Name   string      `yaml:"name"`
	Layers []LayerSpec `yaml:"layers"`
}

// WeightsInit names the initialization strategy and its parameters.
type WeightsInit struct {
	Function string             `yaml:"function"`
	Params   map[string]float64 `yaml:"params"`
}

// Training holds the optimization parameters.
type Training struct {
	Epochs    int           `yaml:"epochs"`
	BatchSize int           `yaml:"batch_size"`
	Seed      uint64        `yaml:"seed"`
	SkipInit  bool          `yaml:"skip_init"`
	Losses    []LossSpec    `yaml:"losses"`
	Optimizer OptimizerSpec `yaml:"optimizer"`
}

// LossSpec binds a loss function to a named head.
type LossSpec struct {
	Name     string `yaml:"name"`
	Function string `yaml:"function"`
}

// OptimizerSpec selects a solver.
type OptimizerSpec struct {
	Name         string  `yaml:"name"`
	LearningRate float64 `yaml:"lr"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	Epsilon      float64 `yaml:"epsilon"`
	Momentum     float64 `yaml:"momentum"`
	L2           float64 `yaml:"l2"`
	Clip         float64 `yaml:"clip"`
}

// Callbacks enables the training callbacks. A nil block disables a callback.
type Callbacks struct {
	ModelCheckpoint  *ModelCheckpoint  `yaml:"model_checkpoint"`
	EarlyStopping    *EarlyStopping    `yaml:"early_stopping"`
	TrainingMonitor  *TrainingMonitor  `yaml:"training_monitor"`
	ExperimentTiming *ExperimentTiming `yaml:"experiment_timing"`
}

// ModelCheckpoint writes the best weights seen during training to Filepath.
type ModelCheckpoint struct {
	Filepath     string `yaml:"filepath"`
	SaveBestOnly *bool  `yaml:"save_best_only"`
}

// BestOnly reports whether only improving epochs are written (default true).
func (m ModelCheckpoint) BestOnly() bool {
	return m.SaveBestOnly == nil || *m.SaveBestOnly
}

// EarlyStopping stops training after Patience epochs without improvement.
type EarlyStopping struct {
	Patience int     `yaml:"patience"`
	MinDelta float64 `yaml:"min_delta"`
}

// TrainingMonitor logs losses.
type TrainingMonitor struct {
	LogEvery int `yaml:"log_every"`
}

// ExperimentTiming logs throughput at the end of every epoch.
type ExperimentTiming struct{}

// Overrides captures CLI supplied values.
type Overrides struct {
	Epochs         int
	LearningRate   float64
	Seed           uint64
	CheckpointPath string
	SkipInit       bool
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML from r, applies defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the values used for keys a config file leaves out. Keys
// present in the file win, explicit zeros included.
func Default() *Config {
	return &Config{
		Architecture: Architecture{Variant: VariantSingle},
		Training: Training{
			Epochs:    1,
			Optimizer: OptimizerSpec{Name: "adam", LearningRate: 1e-3},
		},
	}
}

// Defaults fills empty names and unset callback options.
func (c *Config) Defaults() {
	if c.Architecture.Variant == "" {
		c.Architecture.Variant = VariantSingle
	}
	if c.Training.Optimizer.Name == "" {
		c.Training.Optimizer.Name = "adam"
	}
	if m := c.Callbacks.TrainingMonitor; m != nil && m.LogEvery <= 0 {
		m.LogEvery = 50
	}
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs > 0 {
		c.Training.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.Training.Optimizer.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Training.Seed = o.Seed
	}
	if o.CheckpointPath != "" {
		c.Callbacks.ModelCheckpoint = &ModelCheckpoint{Filepath: o.CheckpointPath}
	}
	if o.SkipInit {
		c.Training.SkipInit = true
	}
}

// Validate verifies the config is runnable. Unknown initialization, loss and
// optimizer names are reported later, when the runtime resolves them.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	a := c.Architecture
	if a.InputChannels <= 0 {
		return fmt.Errorf("architecture.input_channels must be > 0 (got %d)", a.InputChannels)
	}
	if len(a.InputSize) != 0 && len(a.InputSize) != 2 {
		return fmt.Errorf("architecture.input_size must be [height, width] (got %v)", a.InputSize)
	}
	if len(a.Trunk) == 0 && len(a.Heads) == 0 {
		return errors.New("architecture needs at least one trunk layer or head")
	}
	for i, h := range a.Heads {
		if h.Name == "" {
			return fmt.Errorf("architecture.heads[%d] has no name", i)
		}
	}
	if c.Training.Epochs < 0 {
		return fmt.Errorf("training.epochs must be >= 0 (got %d)", c.Training.Epochs)
	}
	if c.Training.Optimizer.LearningRate < 0 {
		return fmt.Errorf("training.optimizer.lr must be >= 0 (got %g)", c.Training.Optimizer.LearningRate)
	}
	switch a.Variant {
	case VariantSingle:
		if len(c.Training.Losses) != 1 {
			return fmt.Errorf("single variant needs exactly one loss (got %d)", len(c.Training.Losses))
		}
	case VariantMultitask:
		if len(a.Outputs) == 0 {
			return errors.New("multitask variant needs architecture.outputs")
		}
		if len(c.Training.Losses) != len(a.Outputs) {
			return fmt.Errorf("multitask variant needs one loss per output (got %d losses, %d outputs)",
				len(c.Training.Losses), len(a.Outputs))
		}
	default:
		return fmt.Errorf("unknown architecture.variant %q", a.Variant)
	}
	seen := make(map[string]bool, len(c.Training.Losses))
	for i, l := range c.Training.Losses {
		switch {
		case l.Name == "":
			return fmt.Errorf("training.losses[%d] has no name", i)
		case l.Name == ReservedLossName:
			return fmt.Errorf("training.losses[%d]: name %q is reserved for the total", i, l.Name)
		case seen[l.Name]:
			return fmt.Errorf("training.losses[%d]: duplicate loss name %q", i, l.Name)
		}
		seen[l.Name] = true
	}
	if m := c.Callbacks.ModelCheckpoint; m != nil && m.Filepath == "" {
		return errors.New("callbacks.model_checkpoint.filepath must be set")
	}
	if e := c.Callbacks.EarlyStopping; e != nil && e.Patience < 0 {
		return fmt.Errorf("callbacks.early_stopping.patience must be >= 0 (got %d)", e.Patience)
	}
	return nil
}
