package trainer

import "maps"

import "github.com/neurlang/segmentation/learning"

// Decision is a callback's answer at the end of an epoch.
type Decision int

const (
	Continue Decision = iota
	Stop
)

func (d Decision) String() string {
	if d == Stop {
		return "stop"
	}
	return "continue"
}

// WeightsWriter persists the current network weights.
type WeightsWriter interface {
	WriteZlibWeightsToFile(name string) error
}

// State is the training state a callback observes. Hooks receive copies; the
// loss tables are cloned for every call.
type State struct {
	RunID  string
	Epoch  int // 0 based
	Epochs int
	Steps  int // step bound of the training feed

	Batch     int // index of the current batch within the epoch
	BatchSize int
	Batches   int // batches completed in the current epoch

	Losses      learning.LossTable // last batch
	EpochLosses learning.LossTable // mean over the epoch, set at epoch end
	Validation  learning.LossTable // mean over the validation feed, nil without one

	Model WeightsWriter
}

func (s State) snapshot() State {
	s.Losses = maps.Clone(s.Losses)
	s.EpochLosses = maps.Clone(s.EpochLosses)
	s.Validation = maps.Clone(s.Validation)
	return s
}

// Monitored returns the loss callbacks compare epochs by: the validation
// total when validation ran, the epoch mean training total otherwise. ok is
// false when the epoch produced no loss.
func (s State) Monitored() (loss float64, ok bool) {
	if s.Validation != nil {
		loss, ok = s.Validation[learning.TotalKey]
		return
	}
	loss, ok = s.EpochLosses[learning.TotalKey]
	return
}

// Callback hooks into the training lifecycle. Hooks are called in this order:
// OnTrainBegin, then per epoch OnEpochBegin, per batch OnBatchBegin and
// OnBatchEnd, then OnEpochEnd; finally OnTrainEnd exactly once.
type Callback interface {
	OnTrainBegin(s State)
	OnEpochBegin(s State)
	OnBatchBegin(s State)
	OnBatchEnd(s State)
	OnEpochEnd(s State) (Decision, error)
	OnTrainEnd(s State)
}

// Base implements every hook as a no-op. Embed it and override what you need.
type Base struct{}

func (Base) OnTrainBegin(State) {}
func (Base) OnEpochBegin(State) {}
func (Base) OnBatchBegin(State) {}
func (Base) OnBatchEnd(State) {}
func (Base) OnEpochEnd(State) (Decision, error) { return Continue, nil }
func (Base) OnTrainEnd(State) {}

// Set runs callbacks in order.
type Set []Callback

func (cs Set) TrainBegin(s State) {
	for _, c := range cs {
		c.OnTrainBegin(s.snapshot())
	}
}

func (cs Set) EpochBegin(s State) {
	for _, c := range cs {
		c.OnEpochBegin(s.snapshot())
	}
}

func (cs Set) BatchBegin(s State) {
	for _, c := range cs {
		c.OnBatchBegin(s.snapshot())
	}
}

func (cs Set) BatchEnd(s State) {
	for _, c := range cs {
		c.OnBatchEnd(s.snapshot())
	}
}

// EpochEnd calls every callback and combines their decisions: one Stop stops
// training. The first error is returned after all callbacks ran.
func (cs Set) EpochEnd(s State) (Decision, error) {
	var (
		decision = Continue
		first    error
	)
	for _, c := range cs {
		d, err := c.OnEpochEnd(s.snapshot())
		if err != nil && first == nil {
			first = err
		}
		if d == Stop {
			decision = Stop
		}
	}
	return decision, first
}

func (cs Set) TrainEnd(s State) {
	for _, c := range cs {
		c.OnTrainEnd(s.snapshot())
	}
}
