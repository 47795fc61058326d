package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/afroash/soilsim/internal/models"
	"github.com/rs/zerolog"
)

// csvHeader is the column order of the tabular export
var csvHeader = []string{
	"device_id",
	"timestamp",
	"sim_time_s",
	"air_temp_c",
	"humidity_pct",
	"soil_temp_c",
	"soil_moisture_pct",
	"status",
}

// CSVWriter appends readings to a CSV file for offline inspection
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	logger zerolog.Logger
	rows   int64
}

// NewCSVWriter creates the file (truncating any previous export) and
// writes the header row
func NewCSVWriter(path string, logger zerolog.Logger) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	logger.Info().Str("path", path).Msg("CSV export initialized")

	return &CSVWriter{
		file:   file,
		writer: writer,
		logger: logger,
	}, nil
}

// Write appends one reading as a CSV row
func (c *CSVWriter) Write(reading *models.Reading) error {
	row := []string{
		reading.DeviceID,
		reading.Timestamp.Format(time.RFC3339),
		strconv.FormatFloat(reading.SimTime, 'f', 1, 64),
		strconv.FormatFloat(reading.AirTemp, 'f', 4, 64),
		strconv.FormatFloat(reading.Humidity, 'f', 4, 64),
		strconv.FormatFloat(reading.SoilTemp, 'f', 4, 64),
		strconv.FormatFloat(reading.SoilMoisture, 'f', 4, 64),
		string(reading.Status),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	c.rows++
	return nil
}

// Rows returns how many readings have been written
func (c *CSVWriter) Rows() int64 {
	return c.rows
}

// Close flushes and closes the export file
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	c.logger.Info().Int64("rows", c.rows).Msg("CSV export closed")
	return c.file.Close()
}
