package trainer

import "time"

import "github.com/neurlang/segmentation/learning"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/metrics"

// ExperimentTiming measures how long batches take to arrive and to compute
// and logs the epoch throughput.
type ExperimentTiming struct {
	Base
	Logger logging.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	window    metrics.Window
	waitSince time.Time
	begin     time.Time
	dataTime  time.Duration
	last      metrics.Snapshot
}

func (e *ExperimentTiming) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *ExperimentTiming) OnEpochBegin(State) {
	e.window = metrics.Window{}
	e.waitSince = e.now()
}

func (e *ExperimentTiming) OnBatchBegin(State) {
	e.begin = e.now()
	e.dataTime = e.begin.Sub(e.waitSince)
}

func (e *ExperimentTiming) OnBatchEnd(s State) {
	end := e.now()
	e.window.Record(s.BatchSize, e.dataTime, end.Sub(e.begin), s.Losses[learning.TotalKey])
	e.waitSince = end
}

func (e *ExperimentTiming) OnEpochEnd(s State) (Decision, error) {
	e.last = e.window.Snapshot()
	logging.OrNoOp(e.Logger).Info("epoch timing", "run_id", s.RunID, "epoch", s.Epoch,
		"batches", e.last.Steps, "samples_per_sec", e.last.SamplesPerSec,
		"data_ms", e.last.AvgDataMS, "compute_ms", e.last.AvgComputeMS)
	return Continue, nil
}

// Last returns the timing of the last completed epoch.
func (e *ExperimentTiming) Last() metrics.Snapshot {
	return e.last
}
