package trainer

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/logging"

// NewCallbacks builds the callbacks enabled in the configuration, in a
// fixed order: monitor, timing, checkpoint, early stopping.
func NewCallbacks(cfg config.Callbacks, logger logging.Logger) Set {
	logger = logging.OrNoOp(logger)
	var set Set
	if m := cfg.TrainingMonitor; m != nil {
		set = append(set, &TrainingMonitor{LogEvery: m.LogEvery, Logger: logger.With("callback", "training_monitor")})
	}
	if cfg.ExperimentTiming != nil {
		set = append(set, &ExperimentTiming{Logger: logger.With("callback", "experiment_timing")})
	}
	if m := cfg.ModelCheckpoint; m != nil {
		set = append(set, &ModelCheckpoint{
			Filepath: m.Filepath,
			BestOnly: m.BestOnly(),
			Logger:   logger.With("callback", "model_checkpoint"),
		})
	}
	if e := cfg.EarlyStopping; e != nil {
		set = append(set, &EarlyStopping{
			Patience: e.Patience,
			MinDelta: e.MinDelta,
			Logger:   logger.With("callback", "early_stopping"),
		})
	}
	return set
}
