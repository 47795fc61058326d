package device

import (
	"context"
	"time"

	"github.com/afroash/soilsim/internal/models"
	"github.com/afroash/soilsim/internal/sim"
	"github.com/rs/zerolog"
)

// Reader paces the simulation engine against wall-clock time, one tick
// per sample interval, and publishes readings on a channel. This is
// the "live" run mode, where the simulator stands in for a real field
// device feeding downstream consumers in real time.
type Reader struct {
	engine   *sim.Engine
	info     *models.DeviceInfo
	interval time.Duration
	logger   zerolog.Logger
	readings chan *models.Reading
}

// NewReader creates a paced reader around an engine
func NewReader(engine *sim.Engine, info *models.DeviceInfo, interval time.Duration, logger zerolog.Logger) *Reader {
	return &Reader{
		engine:   engine,
		info:     info,
		interval: interval,
		logger:   logger,
		readings: make(chan *models.Reading, 10),
	}
}

// Start begins periodic ticking
// Runs until the context is cancelled or the configured duration is done
func (r *Reader) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.readings)

	total := r.engine.TotalTicks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.engine.Ticks() >= total {
				r.logger.Info().Int64("ticks", r.engine.Ticks()).Msg("simulation duration complete")
				return nil
			}
			r.tickAndPublish()
		}
	}
}

// ReadOnce performs a single tick (useful for testing)
func (r *Reader) ReadOnce() (*models.Reading, error) {
	return r.engine.Tick()
}

// tickAndPublish performs a tick and publishes to the channel
func (r *Reader) tickAndPublish() {
	reading, err := r.ReadOnce()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to step simulation")
		return
	}
	r.readings <- reading
	r.logger.Debug().Msgf("tick: %s", reading.String())
}

// Readings returns the channel where readings are published
func (r *Reader) Readings() <-chan *models.Reading {
	return r.readings
}
