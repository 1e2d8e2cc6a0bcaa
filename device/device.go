// Package device models accelerator placement. The memory budget assumes
// the live generator and its EMA twin never reside on the accelerator at
// the same time, so the trainer moves one off before moving the other on;
// the Shuttle type enforces that ordering.
package device

import "github.com/pkg/errors"

// Device is a compute placement target.
type Device interface {
	Name() string
	// TotalMem returns the device memory in bytes; 0 means unbounded.
	TotalMem() (uint64, error)
}

// Host is the CPU-side placement. It is always available and unbounded.
type Host struct{}

// Name implements Device.
func (Host) Name() string {
	return "host"
}

// TotalMem implements Device.
func (Host) TotalMem() (uint64, error) {
	return 0, nil
}

// Shuttle tracks which models currently reside on the accelerator and
// rejects moves that would exceed the resident budget.
type Shuttle struct {
	dev      Device
	budget   int
	resident map[string]struct{}
}

// NewShuttle builds a shuttle for dev admitting at most budget models.
func NewShuttle(dev Device, budget int) *Shuttle {
	return &Shuttle{dev: dev, budget: budget, resident: make(map[string]struct{})}
}

// Device returns the accelerator this shuttle manages.
func (s *Shuttle) Device() Device {
	return s.dev
}

// MoveOn marks a model resident on the accelerator.
func (s *Shuttle) MoveOn(name string) error {
	if _, ok := s.resident[name]; ok {
		return nil
	}
	if len(s.resident) >= s.budget {
		return errors.Errorf("device: %q does not fit on %s, %d model(s) already resident",
			name, s.dev.Name(), len(s.resident))
	}
	s.resident[name] = struct{}{}
	return nil
}

// MoveOff returns a model to host memory.
func (s *Shuttle) MoveOff(name string) {
	delete(s.resident, name)
}

// Resident reports whether a model currently occupies the accelerator.
func (s *Shuttle) Resident(name string) bool {
	_, ok := s.resident[name]
	return ok
}
