package main

import "context"
import "flag"
import "os"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/datasets"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/model"

func main() {
	cfgPath := flag.String("config", "configs/unet_multitask.yaml", "model config .yaml file")
	srcmodel := flag.String("srcmodel", "nuclei.json.zlib", "model source .json.zlib file")
	samples := flag.Int("samples", 32, "number of synthetic samples to predict")
	steps := flag.Int("steps", -1, "last batch index to predict, -1 for all")
	seed := flag.Uint64("seed", 99, "synthetic data seed")
	format := flag.String("log-format", "json", "json or text")
	flag.Parse()

	log := logging.NewSlogLogger(logging.LevelInfo, *format, os.Stderr)
	fatal := func(msg string, err error) {
		log.Error(msg, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("config", err)
	}
	m, err := model.New(cfg, model.WithLogger(log))
	if err != nil {
		fatal("model", err)
	}
	defer m.Close()
	if err := m.Load(*srcmodel); err != nil {
		fatal("load", err)
	}

	size := 32
	if len(cfg.Architecture.InputSize) == 2 {
		size = cfg.Architecture.InputSize[0]
	}
	data, err := datasets.Synthetic{
		Samples:   *samples,
		BatchSize: max(cfg.Training.BatchSize, 1),
		Size:      size,
		Channels:  cfg.Architecture.InputChannels,
		Seed:      *seed,
	}.Generate()
	if err != nil {
		fatal("dataset", err)
	}

	out, err := m.Transform(context.Background(), data.WithoutTargets().Feed(*steps))
	if err != nil {
		fatal("transform", err)
	}
	for _, key := range out.Keys() {
		values := out[key].Data().([]float64)
		var sum float64
		var above int
		for _, v := range values {
			sum += v
			if v > 0.5 {
				above++
			}
		}
		log.Info("prediction", "output", key, "shape", []int(out[key].Shape()),
			"mean", sum/float64(len(values)), "above_half", float64(above)/float64(len(values)))
	}
}
