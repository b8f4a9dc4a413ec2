package trainer

import "math"

import "github.com/neurlang/segmentation/logging"

// EarlyStopping stops training once the monitored loss has not improved by
// more than MinDelta for Patience consecutive epochs.
type EarlyStopping struct {
	Base
	Patience int
	MinDelta float64
	Logger   logging.Logger

	best float64
	wait int
}

func (e *EarlyStopping) OnTrainBegin(State) {
	e.best = math.Inf(1)
	e.wait = 0
}

func (e *EarlyStopping) OnEpochEnd(s State) (Decision, error) {
	loss, ok := s.Monitored()
	if !ok {
		return Continue, nil
	}
	if loss < e.best-e.MinDelta {
		e.best = loss
		e.wait = 0
		return Continue, nil
	}
	e.wait++
	if e.wait > e.Patience {
		logging.OrNoOp(e.Logger).Info("early stopping", "run_id", s.RunID, "epoch", s.Epoch,
			"best", e.best, "patience", e.Patience)
		return Stop, nil
	}
	return Continue, nil
}
