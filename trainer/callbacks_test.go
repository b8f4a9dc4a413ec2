package trainer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/segmentation/config"
	"github.com/neurlang/segmentation/learning"
)

type countingWriter struct {
	writes int
}

func (w *countingWriter) WriteZlibWeightsToFile(name string) error {
	w.writes++
	return os.WriteFile(name, []byte{byte(w.writes)}, 0o644)
}

func epochEnd(epoch int, loss float64, m WeightsWriter) State {
	return State{Epoch: epoch, EpochLosses: learning.LossTable{learning.TotalKey: loss}, Model: m}
}

func TestModelCheckpointBestOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.json.zlib")
	w := &countingWriter{}
	m := &ModelCheckpoint{Filepath: path, BestOnly: true}
	m.OnTrainBegin(State{})

	for i, loss := range []float64{1.0, 0.5, 0.7, 0.4, 0.9} {
		d, err := m.OnEpochEnd(epochEnd(i, loss, w))
		require.NoError(t, err)
		assert.Equal(t, Continue, d)
	}
	assert.Equal(t, 3, w.writes)
	assert.Equal(t, 0.4, m.Best())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)
}

func TestModelCheckpointEveryEpoch(t *testing.T) {
	w := &countingWriter{}
	m := &ModelCheckpoint{Filepath: filepath.Join(t.TempDir(), "w"), BestOnly: false}
	m.OnTrainBegin(State{})
	for i, loss := range []float64{1.0, 2.0, 3.0} {
		_, err := m.OnEpochEnd(epochEnd(i, loss, w))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, w.writes)
}

func TestModelCheckpointPrefersValidation(t *testing.T) {
	w := &countingWriter{}
	m := &ModelCheckpoint{Filepath: filepath.Join(t.TempDir(), "w"), BestOnly: true}
	m.OnTrainBegin(State{})
	s := epochEnd(0, 0.1, w)
	s.Validation = learning.LossTable{learning.TotalKey: 0.8}
	_, err := m.OnEpochEnd(s)
	require.NoError(t, err)
	assert.Equal(t, 0.8, m.Best())

	_, err = m.OnEpochEnd(State{Epoch: 1, Model: w})
	require.NoError(t, err)
	assert.Equal(t, 1, w.writes, "epochs without losses are skipped")
}

func TestEarlyStopping(t *testing.T) {
	e := &EarlyStopping{Patience: 2, MinDelta: 0.01}
	e.OnTrainBegin(State{})
	var decisions []Decision
	for i, loss := range []float64{1.0, 0.8, 0.795, 0.79, 0.85} {
		d, err := e.OnEpochEnd(epochEnd(i, loss, nil))
		require.NoError(t, err)
		decisions = append(decisions, d)
	}
	assert.Equal(t, []Decision{Continue, Continue, Continue, Continue, Stop}, decisions)

	e.OnTrainBegin(State{})
	d, _ := e.OnEpochEnd(epochEnd(0, 5, nil))
	assert.Equal(t, Continue, d, "state resets between runs")
}

func TestExperimentTiming(t *testing.T) {
	clock := time.Unix(0, 0)
	e := &ExperimentTiming{Now: func() time.Time { return clock }}
	e.OnEpochBegin(State{})
	for i := 0; i < 2; i++ {
		clock = clock.Add(10 * time.Millisecond)
		e.OnBatchBegin(State{})
		clock = clock.Add(40 * time.Millisecond)
		e.OnBatchEnd(State{BatchSize: 4, Losses: learning.LossTable{learning.TotalKey: 1}})
	}
	_, err := e.OnEpochEnd(State{})
	require.NoError(t, err)
	snap := e.Last()
	assert.Equal(t, 2, snap.Steps)
	assert.InDelta(t, 80.0, snap.SamplesPerSec, 1e-9)
	assert.InDelta(t, 10.0, snap.AvgDataMS, 1e-9)
	assert.InDelta(t, 40.0, snap.AvgComputeMS, 1e-9)
}

func TestNewCallbacks(t *testing.T) {
	cfg := config.Callbacks{
		ModelCheckpoint:  &config.ModelCheckpoint{Filepath: "best.json.zlib"},
		EarlyStopping:    &config.EarlyStopping{Patience: 3},
		TrainingMonitor:  &config.TrainingMonitor{LogEvery: 5},
		ExperimentTiming: &config.ExperimentTiming{},
	}
	set := NewCallbacks(cfg, nil)
	require.Len(t, set, 4)
	assert.IsType(t, &TrainingMonitor{}, set[0])
	assert.IsType(t, &ExperimentTiming{}, set[1])
	cp := set[2].(*ModelCheckpoint)
	assert.True(t, cp.BestOnly)
	assert.Equal(t, "best.json.zlib", cp.Filepath)
	assert.Equal(t, 3, set[3].(*EarlyStopping).Patience)

	assert.Empty(t, NewCallbacks(config.Callbacks{}, nil))
}

type loader struct {
	err   error
	calls int
}

func (l *loader) ReadZlibWeightsFromFile(string) error {
	l.calls++
	return l.err
}

func TestResume(t *testing.T) {
	l := &loader{}
	assert.False(t, Resume(l, false, "m.json.zlib", nil))
	assert.False(t, Resume(l, true, "", nil))
	assert.Equal(t, 0, l.calls)
	assert.True(t, Resume(l, true, "m.json.zlib", nil))

	l.err = os.ErrNotExist
	assert.False(t, Resume(l, true, "m.json.zlib", nil))
	assert.Equal(t, 2, l.calls)
}

func TestTableArgsSorted(t *testing.T) {
	args := tableArgs("val_", learning.LossTable{"batch_loss": 1, "batch_mask": 2})
	assert.Equal(t, []any{"val_batch_loss", 1.0, "val_batch_mask", 2.0}, args)
}
