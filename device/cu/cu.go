// Package cu backs the accelerator placement with CUDA device probing.
// Only the command binary links it, so builds without the CUDA toolkit can
// still run every other package.
package cu

import "github.com/pkg/errors"

import "gorgonia.org/cu"

// Accelerator is one CUDA device.
type Accelerator struct {
	index int
	name  string
}

// New probes CUDA device index.
func New(index int) (*Accelerator, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return nil, errors.Wrap(err, "cu: probing devices")
	}
	if index < 0 || index >= n {
		return nil, errors.Errorf("cu: device %d out of range, %d device(s) present", index, n)
	}
	name, err := cu.Device(index).Name()
	if err != nil {
		return nil, errors.Wrapf(err, "cu: device %d name", index)
	}
	return &Accelerator{index: index, name: name}, nil
}

// Name implements device.Device.
func (a *Accelerator) Name() string {
	return a.name
}

// TotalMem implements device.Device.
func (a *Accelerator) TotalMem() (uint64, error) {
	mem, err := cu.Device(a.index).TotalMem()
	if err != nil {
		return 0, errors.Wrapf(err, "cu: device %d memory", a.index)
	}
	return uint64(mem), nil
}
