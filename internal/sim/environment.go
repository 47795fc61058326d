package sim

import (
	"fmt"
	"math"

	"github.com/afroash/soilsim/internal/config"
	"github.com/afroash/soilsim/internal/models"
)

const (
	hoursPerDay    = 24.0
	secondsPerHour = 3600.0

	// airTempPhaseHours shifts the sine trough to local midnight, so
	// the daily minimum falls near hour 0 and the maximum near hour 11.
	airTempPhaseHours = 5.0

	// humidityPhaseHours puts humidity roughly in anti-phase with
	// temperature: peak pre-dawn, trough mid-day.
	humidityPhaseHours = 7.0
)

// Generate returns the raw (unfiltered, noiseless) environmental
// signals at simulation time t seconds. It is a pure function: the
// same t and site always produce the same sample. Physical bounds are
// not enforced here; amplitudes are caller-chosen to stay plausible.
func Generate(t float64, site *config.SiteConfig) (models.EnvironmentalSample, error) {
	if err := checkSimTime(t); err != nil {
		return models.EnvironmentalSample{}, err
	}

	c := site.Climate
	hr := math.Mod(t/secondsPerHour, hoursPerDay)

	air := c.AirTempMean + c.AirTempAmplitude*diurnal(hr-airTempPhaseHours)
	rh := c.HumidityMean + c.HumidityAmplitude*diurnal(hr+humidityPhaseHours)
	soil := (c.AirTempMean + c.SoilTempOffset) +
		c.SoilTempAmplitude*diurnal(hr-airTempPhaseHours-c.SoilTempLagHours)

	return models.EnvironmentalSample{
		AirTemp:  air,
		Humidity: rh,
		SoilTemp: soil,
	}, nil
}

// diurnal evaluates the 24-hour sinusoid at the given phase in hours
func diurnal(hr float64) float64 {
	return math.Sin(2 * math.Pi * hr / hoursPerDay)
}

// checkSimTime rejects times a correct driver must never pass in
func checkSimTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("simulation time must be finite, got %v", t)
	}
	if t < 0 {
		return fmt.Errorf("simulation time must not be negative, got %v", t)
	}
	return nil
}
