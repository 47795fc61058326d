package sim

import (
	"math"

	"github.com/afroash/soilsim/internal/config"
)

// IsActive reports whether the device is inside its sampling window at
// sim time t: awake for the first Awake seconds of every CyclePeriod,
// asleep for the remainder. Pure and stateless.
func IsActive(t float64, site *config.SiteConfig) bool {
	phase := math.Mod(t, site.DutyCycle.CyclePeriod.Seconds())
	return phase < site.DutyCycle.Awake.Seconds()
}
