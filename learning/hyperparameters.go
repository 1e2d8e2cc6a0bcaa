// Package learning implements the Adam optimizer driving both StyleGAN
// networks. Optimizers are derived values of the current parameter set: a
// growth event changes parameter shapes, so the trainer rebuilds them from
// scratch instead of mutating a live one.
package learning

import "log"
import "os"

// Hyperparameters selects the optimization schedule for one network.
type Hyperparameters struct {
	LR    float64    // learning rate for the main parameter group
	Betas [2]float64 // Adam first/second moment decay
	Eps   float64    // denominator fuzz

	l *log.Logger
}

// SetLogger sets the output logger file where optimizer diagnostics go.
func (h *Hyperparameters) SetLogger(filename string) {
	outfile, _ := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	h.l = log.New(outfile, "", 0)
}

// Logf writes to the diagnostics logger if one was set.
func (h *Hyperparameters) Logf(format string, args ...interface{}) {
	if h.l != nil {
		h.l.Printf(format, args...)
	}
}
