package models

import (
	"fmt"
	"time"
)

// Status indicates what the simulated device was doing when a reading
// was produced. A sleeping tick is not a fault; the device is correctly
// declining to sample during its power-save window.
type Status string

const (
	StatusActive   Status = "active"
	StatusSleeping Status = "sleeping"
)

// Reading is one simulated sensor sample: the four monitored quantities
// after lag filtering and noise injection, stamped with both wall-clock
// time and simulation time.
type Reading struct {
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	SimTime      float64   `json:"sim_time"` // seconds since simulation start
	AirTemp      float64   `json:"air_temp"`
	Humidity     float64   `json:"humidity"`
	SoilTemp     float64   `json:"soil_temp"`
	SoilMoisture float64   `json:"soil_moisture"`
	Status       Status    `json:"status"`
}

// EnvironmentalSample holds the raw (unfiltered, noiseless) signals
// produced by the diurnal generator at a given simulation time. Value
// type, recomputed fresh every tick.
type EnvironmentalSample struct {
	AirTemp  float64
	Humidity float64
	SoilTemp float64
}

// IsValid checks that the reading values are within sane bounds.
// Bounds are deliberately relaxed: sensor noise may transiently push a
// reading a little outside the physical range, which matches real
// instruments and is not an error.
func (r *Reading) IsValid() bool {
	const (
		minTemp    = -40.0
		maxTemp    = 60.0
		minPercent = -5.0
		maxPercent = 105.0
	)

	if r.DeviceID == "" {
		return false
	}
	if r.Timestamp.IsZero() {
		return false
	}
	if r.SimTime < 0 {
		return false
	}
	if r.Status != StatusActive && r.Status != StatusSleeping {
		return false
	}
	if r.AirTemp < minTemp || r.AirTemp > maxTemp {
		return false
	}
	if r.SoilTemp < minTemp || r.SoilTemp > maxTemp {
		return false
	}
	if r.Humidity < minPercent || r.Humidity > maxPercent {
		return false
	}
	if r.SoilMoisture < minPercent || r.SoilMoisture > maxPercent {
		return false
	}
	return true
}

// String returns the reading as a human-readable line.
func (r *Reading) String() string {
	return fmt.Sprintf("DeviceID: %s, SimTime: %.0fs, AirTemp: %.2f°C, Humidity: %.1f%%, SoilTemp: %.2f°C, SoilMoisture: %.1f%%, Status: %s",
		r.DeviceID,
		r.SimTime,
		r.AirTemp,
		r.Humidity,
		r.SoilTemp,
		r.SoilMoisture,
		r.Status)
}

// Copy returns a deep copy of the Reading
func (r *Reading) Copy() *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
