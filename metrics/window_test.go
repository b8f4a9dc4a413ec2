package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(8, 10*time.Millisecond, 90*time.Millisecond, 0.5)
	w.Record(8, 30*time.Millisecond, 70*time.Millisecond, 0.25)
	assert.Equal(t, 2, w.Steps())

	snap := w.Snapshot()
	assert.Equal(t, 2, snap.Steps)
	assert.Equal(t, 16, snap.Samples)
	assert.InDelta(t, 80.0, snap.SamplesPerSec, 1e-9)
	assert.InDelta(t, 20.0, snap.AvgDataMS, 1e-9)
	assert.InDelta(t, 80.0, snap.AvgComputeMS, 1e-9)
	assert.Equal(t, 0.25, snap.LastLoss)

	assert.Equal(t, 0, w.Steps())
	assert.Equal(t, Snapshot{}, w.Snapshot())
}
