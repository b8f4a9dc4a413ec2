package datasets

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"gorgonia.org/tensor"

	"github.com/neurlang/segmentation/parallel"
)

// Synthetic renders grayscale images of random nuclei (discs) together with
// mask, contour and center targets.
type Synthetic struct {
	Samples   int
	BatchSize int
	Size      int // image height and width
	Channels  int
	MaxNuclei int
	Multitask bool // emit mask, contour and center targets instead of mask only
	Seed      uint64
	Workers   int
}

type sample struct {
	image, mask, contour, center []float64
}

// Generate renders all samples and groups them into batches. The last batch
// may be smaller than BatchSize.
func (s Synthetic) Generate() (Slice, error) {
	if s.Samples <= 0 || s.BatchSize <= 0 || s.Size <= 0 {
		return nil, fmt.Errorf("synthetic: samples, batch size and size must be > 0 (got %d, %d, %d)",
			s.Samples, s.BatchSize, s.Size)
	}
	if s.Channels <= 0 {
		s.Channels = 1
	}
	if s.MaxNuclei <= 0 {
		s.MaxNuclei = 3
	}
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}

	samples := make([]sample, s.Samples)
	err := parallel.ForEach(s.Samples, s.Workers, func(i int) error {
		samples[i] = s.render(rand.New(rand.NewPCG(s.Seed, uint64(i))))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out Slice
	for start := 0; start < s.Samples; start += s.BatchSize {
		end := start + s.BatchSize
		if end > s.Samples {
			end = s.Samples
		}
		out = append(out, s.pack(samples[start:end]))
	}
	return out, nil
}

func (s Synthetic) render(rng *rand.Rand) sample {
	n := s.Size * s.Size
	sm := sample{
		image:   make([]float64, n),
		mask:    make([]float64, n),
		contour: make([]float64, n),
		center:  make([]float64, n),
	}
	for i := range sm.image {
		sm.image[i] = 0.1 * rng.Float64()
	}

	maxRadius := math.Max(2, float64(s.Size)/6)
	nuclei := 1 + rng.IntN(s.MaxNuclei)
	for k := 0; k < nuclei; k++ {
		r := 2 + rng.Float64()*(maxRadius-2)
		cx := rng.Float64() * float64(s.Size)
		cy := rng.Float64() * float64(s.Size)
		bright := 0.6 + 0.4*rng.Float64()
		for y := 0; y < s.Size; y++ {
			for x := 0; x < s.Size; x++ {
				d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
				if d > r {
					continue
				}
				i := y*s.Size + x
				sm.image[i] = bright
				sm.mask[i] = 1
				if d >= r-1 {
					sm.contour[i] = 1
				}
				if d <= math.Max(1, r/3) {
					sm.center[i] = 1
				}
			}
		}
	}
	return sm
}

func (s Synthetic) pack(samples []sample) Batch {
	n := s.Size * s.Size
	b := len(samples)
	input := make([]float64, 0, b*s.Channels*n)
	targets := [][]float64{make([]float64, 0, b*n)}
	if s.Multitask {
		targets = append(targets, make([]float64, 0, b*n), make([]float64, 0, b*n))
	}
	for _, sm := range samples {
		for c := 0; c < s.Channels; c++ {
			input = append(input, sm.image...)
		}
		targets[0] = append(targets[0], sm.mask...)
		if s.Multitask {
			targets[1] = append(targets[1], sm.contour...)
			targets[2] = append(targets[2], sm.center...)
		}
	}

	batch := Batch{Input: tensor.New(tensor.WithShape(b, s.Channels, s.Size, s.Size), tensor.WithBacking(input))}
	for _, t := range targets {
		batch.Targets = append(batch.Targets, tensor.New(tensor.WithShape(b, 1, s.Size, s.Size), tensor.WithBacking(t)))
	}
	return batch
}
