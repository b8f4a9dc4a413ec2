package trainer

import "math"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/logging"

// ModelCheckpoint writes the network weights to Filepath at the end of an
// epoch. With BestOnly set only epochs improving the monitored loss are
// written, so the file holds the best weights of the run.
type ModelCheckpoint struct {
	Base
	Filepath string
	BestOnly bool
	Logger   logging.Logger

	best float64
}

func (m *ModelCheckpoint) OnTrainBegin(State) {
	m.best = math.Inf(1)
}

func (m *ModelCheckpoint) OnEpochEnd(s State) (Decision, error) {
	loss, ok := s.Monitored()
	if !ok {
		return Continue, nil
	}
	if m.BestOnly && !(loss < m.best) {
		return Continue, nil
	}
	if loss < m.best {
		m.best = loss
	}
	if err := s.Model.WriteZlibWeightsToFile(m.Filepath); err != nil {
		return Continue, errors.Wrapf(err, "checkpoint %s", m.Filepath)
	}
	logging.OrNoOp(m.Logger).Info("checkpoint written", "run_id", s.RunID, "epoch", s.Epoch,
		"loss", loss, "path", m.Filepath)
	return Continue, nil
}

// Best returns the best monitored loss seen so far.
func (m *ModelCheckpoint) Best() float64 {
	return m.best
}
