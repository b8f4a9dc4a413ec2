package main

import "context"
import "flag"
import "os"
import "os/signal"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/datasets"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/model"
import "github.com/neurlang/segmentation/trainer"

func main() {
	cfgPath := flag.String("config", "configs/unet_multitask.yaml", "model config .yaml file")
	dstmodel := flag.String("dstmodel", "nuclei.json.zlib", "model destination .json.zlib file")
	resume := flag.Bool("resume", false, "resume training from -dstmodel")
	epochs := flag.Int("epochs", 0, "override training.epochs")
	lr := flag.Float64("lr", 0, "override training.optimizer.lr")
	seed := flag.Uint64("seed", 0, "override training.seed")
	samples := flag.Int("samples", 256, "number of synthetic training samples")
	steps := flag.Int("steps", -1, "last batch index of every epoch, -1 for all")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	format := flag.String("log-format", "json", "json or text")
	pgo := flag.Bool("pgo", false, "write a cpu profile to default.pgo")
	flag.Parse()

	log := logging.NewSlogLogger(logging.ParseLevel(*level), *format, os.Stderr)
	fatal := func(msg string, err error) {
		log.Error(msg, "error", err)
		os.Exit(1)
	}

	if *pgo {
		stop, err := startProfile("default.pgo")
		if err != nil {
			fatal("cpu profile", err)
		}
		defer stop()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("config", err)
	}
	_, statErr := os.Stat(*dstmodel)
	skipInit := *resume && statErr == nil
	cfg.ApplyOverrides(config.Overrides{
		Epochs:       *epochs,
		LearningRate: *lr,
		Seed:         *seed,
		SkipInit:     skipInit,
	})

	m, err := model.New(cfg, model.WithLogger(log))
	if err != nil {
		fatal("model", err)
	}
	defer m.Close()
	if skipInit && !trainer.Resume(m.Network(), true, *dstmodel, log) {
		os.Exit(1)
	}

	train, valid, err := synthetic(cfg, *samples)
	if err != nil {
		fatal("dataset", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	validFeed := valid.Feed(-1)
	if err := m.Fit(ctx, train.Feed(*steps), &validFeed); err != nil && ctx.Err() == nil {
		fatal("fit", err)
	}
	if err := m.Save(*dstmodel); err != nil {
		fatal("save", err)
	}
	log.Info("done", "model", *dstmodel)
}

func synthetic(cfg *config.Config, samples int) (train, valid datasets.Slice, err error) {
	size := 32
	if len(cfg.Architecture.InputSize) == 2 {
		size = cfg.Architecture.InputSize[0]
	}
	batch := cfg.Training.BatchSize
	if batch <= 0 {
		batch = 8
	}
	gen := datasets.Synthetic{
		Samples:   samples,
		BatchSize: batch,
		Size:      size,
		Channels:  cfg.Architecture.InputChannels,
		Multitask: cfg.Architecture.Variant == config.VariantMultitask,
		Seed:      cfg.Training.Seed,
	}
	if train, err = gen.Generate(); err != nil {
		return nil, nil, err
	}
	gen.Samples = max(samples/4, 1)
	gen.Seed++
	if valid, err = gen.Generate(); err != nil {
		return nil, nil, err
	}
	return train, valid, nil
}
