// Package altitude turns decoded GGA altitudes into a ground-level
// baseline and then into altitudes relative to that baseline.
package altitude

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinSamples is the smallest calibration target: sample variance divides
// by N-1.
const MinSamples = 2

var (
	ErrTargetTooSmall = fmt.Errorf("altitude: calibration needs at least %d samples", MinSamples)
	ErrCalibrated     = errors.New("altitude: calibration already complete")
)

// Baseline is the ground-level reference computed from the calibration
// samples. It does not change once computed.
type Baseline struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"` // Sample variance, m^2
	StdDev   float64 `json:"stdDev"`
	Samples  int     `json:"samples"`
}

// Calibrator collects altitude samples until the target count is reached.
type Calibrator struct {
	target   int
	samples  []float64
	baseline *Baseline
}

// NewCalibrator returns a Calibrator for target samples. Targets below
// MinSamples are rejected, never clamped.
func NewCalibrator(target int) (*Calibrator, error) {
	if target < MinSamples {
		return nil, fmt.Errorf("%w (got %d)", ErrTargetTooSmall, target)
	}
	return &Calibrator{
		target:  target,
		samples: make([]float64, 0, target),
	}, nil
}

// Add appends one sample. It reports true on the call that completes
// calibration, and only on that call.
func (c *Calibrator) Add(alt float64) (bool, error) {
	if c.baseline != nil {
		return false, ErrCalibrated
	}
	c.samples = append(c.samples, alt)
	if len(c.samples) < c.target {
		return false, nil
	}

	mean, variance := stat.MeanVariance(c.samples, nil)
	c.baseline = &Baseline{
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Samples:  len(c.samples),
	}
	return true, nil
}

// Progress returns the number of samples collected and the target.
func (c *Calibrator) Progress() (collected, target int) {
	return len(c.samples), c.target
}

// Baseline returns the computed baseline once calibration is complete.
func (c *Calibrator) Baseline() (Baseline, bool) {
	if c.baseline == nil {
		return Baseline{}, false
	}
	return *c.baseline, true
}

// Done reports whether the target has been reached.
func (c *Calibrator) Done() bool { return c.baseline != nil }
