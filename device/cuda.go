//go:build cuda

package device

import "fmt"

import "gorgonia.org/cu"
import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/datasets"

// Cuda runs the graph operations on the first CUDA device. Parameters and
// batches stay host resident and the VM moves them to device memory.
type Cuda struct {
	name   string
	memory int64
}

func probe() Policy {
	devices, err := cu.NumDevices()
	if err != nil || devices == 0 {
		return Host{}
	}
	name, err := cu.Device(0).Name()
	if err != nil {
		return Host{}
	}
	memory, _ := cu.Device(0).TotalMem()
	return &Cuda{name: name, memory: memory}
}

func (c *Cuda) Name() string { return "cuda:0" }

func (c *Cuda) Describe() string {
	return fmt.Sprintf("%s (%d MiB)", c.name, c.memory>>20)
}

func (c *Cuda) Accelerated() bool { return true }

func (c *Cuda) PlaceModel(m Placeable) bool {
	return place(m, c.Name())
}

func (c *Cuda) PlaceBatch(b datasets.Batch) datasets.Batch { return b }

func (c *Cuda) ToHost(v gorgonia.Value) (*tensor.Dense, error) {
	return toHost(v)
}

func (c *Cuda) MachineOpts() []gorgonia.VMOpt {
	return []gorgonia.VMOpt{gorgonia.UseCudaFor()}
}
