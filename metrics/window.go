// Package metrics aggregates per batch timings into throughput figures.
package metrics

import "time"

// Window accumulates timing stats across multiple batches.
type Window struct {
	samples  int
	data     time.Duration
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds one batch. dataTime is the time spent waiting for the batch,
// computeTime the time spent on the step.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Steps returns the number of batches recorded since the last snapshot.
func (w *Window) Steps() int {
	return w.steps
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps, Samples: w.samples}
	total := w.data + w.compute
	if total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps         int
	Samples       int
	SamplesPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
	LastLoss      float64
}
