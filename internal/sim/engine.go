package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/afroash/soilsim/internal/config"
	"github.com/afroash/soilsim/internal/models"
)

// Engine owns the simulation timeline and composes the sub-models in
// their fixed order each tick: environment generation, soil-moisture
// stepping, per-quantity sensor dynamics, duty-cycle gating. The
// recurrences are inherently sequential, so the engine is strictly
// single-threaded; callers must not share one engine across
// goroutines.
type Engine struct {
	site     *config.SiteConfig
	deviceID string

	soil         *SoilMoistureModel
	airTemp      *SensorDynamics
	humidity     *SensorDynamics
	soilTemp     *SensorDynamics
	soilMoisture *SensorDynamics

	start time.Time
	t     float64
	ticks int64
}

// NewEngine validates the site parameters and builds a fresh engine.
// Each quantity gets its own noise stream derived from the seed, so
// traces are reproducible per quantity regardless of tick order.
func NewEngine(site *config.SiteConfig, deviceID string, seed int64) (*Engine, error) {
	if site == nil {
		return nil, fmt.Errorf("site config is required")
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	e := &Engine{
		site:     site,
		deviceID: deviceID,
		soil:     NewSoilMoistureModel(site),
		start:    time.Now(),
	}

	quantities := []struct {
		dst **SensorDynamics
		cfg config.SensorConfig
	}{
		{&e.airTemp, site.Sensors.AirTemp},
		{&e.humidity, site.Sensors.Humidity},
		{&e.soilTemp, site.Sensors.SoilTemp},
		{&e.soilMoisture, site.Sensors.SoilMoisture},
	}
	for i, q := range quantities {
		d, err := NewSensorDynamics(site.SampleInterval, q.cfg, rand.New(rand.NewSource(seed+int64(i))))
		if err != nil {
			return nil, err
		}
		*q.dst = d
	}

	return e, nil
}

// SimTime returns the simulation time in seconds of the next tick
func (e *Engine) SimTime() float64 {
	return e.t
}

// Ticks returns how many ticks have been executed
func (e *Engine) Ticks() int64 {
	return e.ticks
}

// TotalTicks returns how many ticks a full run of the configured
// duration comprises
func (e *Engine) TotalTicks() int64 {
	return int64(e.site.Duration.Seconds() / e.site.SampleInterval.Seconds())
}

// Tick advances the simulation by one sample interval and returns the
// reading for the tick. Sleeping ticks still advance the physical
// state (soil dries whether or not anyone is watching) and are marked
// StatusSleeping rather than dropped, so downstream consumers can tell
// a power-save gap from a sensor fault.
func (e *Engine) Tick() (*models.Reading, error) {
	t := e.t
	dt := e.site.SampleInterval.Seconds()

	env, err := Generate(t, e.site)
	if err != nil {
		return nil, err
	}

	rawVWC, err := e.soil.Step(dt, t+dt)
	if err != nil {
		return nil, err
	}

	airTemp, err := e.airTemp.Step(env.AirTemp)
	if err != nil {
		return nil, err
	}
	humidity, err := e.humidity.Step(env.Humidity)
	if err != nil {
		return nil, err
	}
	soilTemp, err := e.soilTemp.Step(env.SoilTemp)
	if err != nil {
		return nil, err
	}
	moisture, err := e.soilMoisture.Step(rawVWC)
	if err != nil {
		return nil, err
	}

	status := models.StatusSleeping
	if IsActive(t, e.site) {
		status = models.StatusActive
	}

	e.t += dt
	e.ticks++

	return &models.Reading{
		DeviceID:     e.deviceID,
		Timestamp:    e.start.Add(time.Duration(t * float64(time.Second))),
		SimTime:      t,
		AirTemp:      airTemp,
		Humidity:     humidity,
		SoilTemp:     soilTemp,
		SoilMoisture: moisture,
		Status:       status,
	}, nil
}

// Run executes the full configured duration, invoking emit for every
// tick, as fast as the sinks accept them. It stops early when the
// context is cancelled or emit returns an error.
func (e *Engine) Run(ctx context.Context, emit func(*models.Reading) error) error {
	total := e.TotalTicks()
	for e.ticks < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		reading, err := e.Tick()
		if err != nil {
			return err
		}
		if err := emit(reading); err != nil {
			return err
		}
	}
	return nil
}
