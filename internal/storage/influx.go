package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"github.com/afroash/soilsim/internal/config"
	"github.com/afroash/soilsim/internal/models"
)

// InfluxWriter exports readings to an InfluxDB bucket, one point per
// tick, the way the field deployment's ingestion pipeline stores real
// device data.
type InfluxWriter struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	logger      zerolog.Logger
}

// NewInfluxWriter validates the connection settings and creates the writer
func NewInfluxWriter(cfg config.InfluxConfig, logger zerolog.Logger) (*InfluxWriter, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)

	logger.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("Influx export initialized")

	return &InfluxWriter{
		client:      client,
		writeAPI:    writeAPI,
		measurement: cfg.Measurement,
		logger:      logger,
	}, nil
}

// Write stores one reading as an InfluxDB point
func (w *InfluxWriter) Write(ctx context.Context, reading *models.Reading) error {
	tags := map[string]string{
		"device_id": reading.DeviceID,
		"status":    string(reading.Status),
	}
	fields := map[string]interface{}{
		"sim_time":      reading.SimTime,
		"air_temp":      reading.AirTemp,
		"humidity":      reading.Humidity,
		"soil_temp":     reading.SoilTemp,
		"soil_moisture": reading.SoilMoisture,
	}

	point := influxdb2.NewPoint(w.measurement, tags, fields, reading.Timestamp)
	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write influx point: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (w *InfluxWriter) Close() {
	w.client.Close()
}
