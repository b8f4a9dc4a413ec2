package trainer

import "sort"

import "github.com/neurlang/segmentation/learning"
import "github.com/neurlang/segmentation/logging"

// TrainingMonitor logs batch losses every LogEvery batches and the epoch
// and validation means at the end of each epoch.
type TrainingMonitor struct {
	Base
	LogEvery int
	Logger   logging.Logger
}

func (m *TrainingMonitor) OnBatchEnd(s State) {
	if m.LogEvery <= 0 || (s.Batch+1)%m.LogEvery != 0 {
		return
	}
	logging.OrNoOp(m.Logger).Info("batch", append([]any{"run_id", s.RunID, "epoch", s.Epoch, "batch", s.Batch},
		tableArgs("", s.Losses)...)...)
}

func (m *TrainingMonitor) OnEpochEnd(s State) (Decision, error) {
	args := []any{"run_id", s.RunID, "epoch", s.Epoch, "batches", s.Batches}
	args = append(args, tableArgs("", s.EpochLosses)...)
	args = append(args, tableArgs("val_", s.Validation)...)
	logging.OrNoOp(m.Logger).Info("epoch", args...)
	return Continue, nil
}

func tableArgs(prefix string, t learning.LossTable) []any {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, prefix+k, t[k])
	}
	return args
}
