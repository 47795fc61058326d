package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/afroash/soilsim/internal/config"
)

// SensorDynamics converts a raw signal sample into a simulated sensor
// reading: a discrete first-order lag (the exact zero-order-hold
// discretization of a single-pole low-pass with time constant τ)
// followed by additive Gaussian measurement noise. One instance per
// physical quantity; the filter state is owned exclusively by it.
//
// The noise source is an injected, seedable generator so a run can be
// replayed bit-for-bit from the same seed.
type SensorDynamics struct {
	alpha float64 // per-step decay factor exp(-Δt/τ)
	sigma float64
	rng   *rand.Rand

	filtered float64
	seeded   bool
}

// NewSensorDynamics builds the response model for one quantity sampled
// every sampleInterval.
func NewSensorDynamics(sampleInterval time.Duration, sc config.SensorConfig, rng *rand.Rand) (*SensorDynamics, error) {
	if sampleInterval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %s", sampleInterval)
	}
	if sc.TimeConstant <= 0 {
		return nil, fmt.Errorf("time constant must be positive, got %s", sc.TimeConstant)
	}
	if sc.NoiseSigma < 0 {
		return nil, fmt.Errorf("noise sigma must not be negative, got %g", sc.NoiseSigma)
	}
	if rng == nil {
		return nil, fmt.Errorf("noise generator is required")
	}
	return &SensorDynamics{
		alpha: math.Exp(-sampleInterval.Seconds() / sc.TimeConstant.Seconds()),
		sigma: sc.NoiseSigma,
		rng:   rng,
	}, nil
}

// Step feeds one raw sample through the lag filter and returns the
// noisy reading. On the first call the filter state is seeded to the
// raw value itself, so there is no artificial transient at t=0.
//
// The noisy reading is not clamped to physical bounds: noise may
// transiently push it outside the sensible range, which matches real
// instrument behaviour.
func (d *SensorDynamics) Step(raw float64) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("raw value must be finite, got %v", raw)
	}
	if !d.seeded {
		d.filtered = raw
		d.seeded = true
	} else {
		d.filtered = d.alpha*d.filtered + (1-d.alpha)*raw
	}
	return d.filtered + d.rng.NormFloat64()*d.sigma, nil
}

// Filtered returns the lag filter's internal state (pre-noise)
func (d *SensorDynamics) Filtered() float64 {
	return d.filtered
}
