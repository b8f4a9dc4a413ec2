// Package device decides where the network parameters and batch tensors
// live during training and inference. Accelerator availability is probed
// once per process.
package device

import "fmt"
import "sync"

import "github.com/klauspost/cpuid/v2"
import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/datasets"

// HostName is the name of the host device.
const HostName = "cpu"

// Placeable is a model that records where its parameters live.
type Placeable interface {
	Placement() string
	SetPlacement(device string)
}

// Policy places models and batches on one device and reads results back.
type Policy interface {
	// Name is the device name models are placed on.
	Name() string

	// Describe returns a human readable description of the device.
	Describe() string

	// Accelerated reports whether the device is an accelerator.
	Accelerated() bool

	// PlaceModel moves m to the device. It reports false when m already
	// lives there.
	PlaceModel(m Placeable) bool

	// PlaceBatch readies the batch tensors for computation on the device.
	PlaceBatch(b datasets.Batch) datasets.Batch

	// ToHost copies a computed value into a fresh host tensor.
	ToHost(v gorgonia.Value) (*tensor.Dense, error)

	// MachineOpts select the device for a gorgonia VM.
	MachineOpts() []gorgonia.VMOpt
}

var (
	detectOnce sync.Once
	detected   Policy
)

// Detect probes for an accelerator the first time it is called and returns
// the same policy afterwards.
func Detect() Policy {
	detectOnce.Do(func() {
		detected = probe()
	})
	return detected
}

// Host keeps everything in host memory.
type Host struct{}

func (Host) Name() string { return HostName }

func (Host) Describe() string {
	return fmt.Sprintf("%s (%d cores, avx2=%t, avx512=%t)", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores,
		cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ))
}

func (Host) Accelerated() bool { return false }

func (Host) PlaceModel(m Placeable) bool {
	return place(m, HostName)
}

func (Host) PlaceBatch(b datasets.Batch) datasets.Batch { return b }

func (Host) ToHost(v gorgonia.Value) (*tensor.Dense, error) {
	return toHost(v)
}

func (Host) MachineOpts() []gorgonia.VMOpt { return nil }

func place(m Placeable, name string) bool {
	if m.Placement() == name {
		return false
	}
	m.SetPlacement(name)
	return true
}

func toHost(v gorgonia.Value) (*tensor.Dense, error) {
	d, ok := v.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("device: cannot read back %T", v)
	}
	return d.Clone().(*tensor.Dense), nil
}
