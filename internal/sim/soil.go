package sim

import (
	"fmt"
	"math"

	"github.com/afroash/soilsim/internal/config"
)

// SoilMoistureModel advances volumetric water content (VWC, in %) one
// timestep at a time: continuous evaporation, periodic discrete
// irrigation pulses, and clamping to the physical bounds. State is
// owned exclusively by this model; callers advance it only via Step,
// exactly once per simulated tick.
type SoilMoistureModel struct {
	soil config.SoilConfig

	vwc       float64
	lastPulse float64 // sim time of the last applied irrigation pulse
	lastT     float64
	stepped   bool
}

// NewSoilMoistureModel creates a model starting at the configured
// initial VWC with the irrigation schedule anchored at t=0.
func NewSoilMoistureModel(site *config.SiteConfig) *SoilMoistureModel {
	return &SoilMoistureModel{
		soil: site.Soil,
		vwc:  site.Soil.InitialVWC,
	}
}

// VWC returns the current volumetric water content in percent
func (m *SoilMoistureModel) VWC() float64 {
	return m.vwc
}

// Step advances the moisture state by dt seconds ending at sim time t.
// Not idempotent: calling twice advances state twice. t must increase
// monotonically across calls.
//
// Out-of-range results are clamped, never reported as errors:
// evaporation cannot drain below MinVWC (residual bound moisture) and
// irrigation cannot fill above MaxVWC (saturation/runoff).
func (m *SoilMoistureModel) Step(dt, t float64) (float64, error) {
	if err := checkSimTime(t); err != nil {
		return 0, err
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return 0, fmt.Errorf("step size must be positive and finite, got %v", dt)
	}
	if m.stepped && t <= m.lastT {
		return 0, fmt.Errorf("step time must increase monotonically: got %v after %v", t, m.lastT)
	}
	m.lastT = t
	m.stepped = true

	m.vwc -= m.soil.EvaporationPerSecond * dt

	interval := m.soil.IrrigationInterval.Seconds()
	if elapsed := t - m.lastPulse; elapsed >= interval {
		// Edge-triggered: by default at most one pulse fires per step
		// even when a coarse dt spans several intervals. With catch-up
		// enabled, every skipped interval delivers its pulse.
		pulses := 1.0
		if m.soil.IrrigationCatchUp {
			pulses = math.Floor(elapsed / interval)
		}
		m.vwc += m.soil.IrrigationPulseVWC * pulses
		m.lastPulse += interval * pulses
	}

	m.vwc = clamp(m.vwc, m.soil.MinVWC, m.soil.MaxVWC)
	return m.vwc, nil
}

// clamp constrains v to [lo, hi], saturating at the bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
