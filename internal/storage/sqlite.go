package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/soilsim/internal/models"
)

// Store defines the interface for simulated reading storage
type Store interface {
	Close() error
	Migrate() error
	InsertReading(reading *models.Reading) error
	InsertBatch(readings []*models.Reading) error
	GetReadingsInRange(deviceID string, start, end time.Time, limit int) ([]*models.Reading, error)
	GetLatestReading(deviceID string) (*models.Reading, error)
	GetDailyStats(deviceID string, start, end time.Time) ([]DailyStat, error)
	DeleteOlderThan(days int) (int64, error)
	GetStorageStats() (*StorageStats, error)
	GetDeviceIDs() ([]string, error)
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore handles persistent storage of simulated readings
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// DailyStat represents aggregated statistics for a single simulated day
type DailyStat struct {
	Date            time.Time `json:"date"`
	DeviceID        string    `json:"device_id"`
	MinAirTemp      float64   `json:"min_air_temp"`
	MaxAirTemp      float64   `json:"max_air_temp"`
	AvgAirTemp      float64   `json:"avg_air_temp"`
	AvgHumidity     float64   `json:"avg_humidity"`
	AvgSoilTemp     float64   `json:"avg_soil_temp"`
	MinSoilMoisture float64   `json:"min_soil_moisture"`
	MaxSoilMoisture float64   `json:"max_soil_moisture"`
	AvgSoilMoisture float64   `json:"avg_soil_moisture"`
	ActiveCount     int       `json:"active_count"`
	ReadingCount    int       `json:"reading_count"`
}

// StorageStats contains information about the database
type StorageStats struct {
	TotalReadings  int64     `json:"total_readings"`
	OldestReading  time.Time `json:"oldest_reading,omitempty"`
	NewestReading  time.Time `json:"newest_reading,omitempty"`
	UniqueDevices  int       `json:"unique_devices"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply performance pragmas for SQLite
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	// Auto-migrate schema
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		sim_time REAL NOT NULL,
		air_temp REAL NOT NULL,
		humidity REAL NOT NULL,
		soil_temp REAL NOT NULL,
		soil_moisture REAL NOT NULL,
		status TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_readings_device_time ON readings(device_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_readings_time ON readings(recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_readings_sim_time ON readings(device_id, sim_time);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// InsertReading inserts a single reading into the database
func (s *SQLiteStore) InsertReading(reading *models.Reading) error {
	query := `
		INSERT INTO readings (device_id, sim_time, air_temp, humidity, soil_temp, soil_moisture, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		reading.DeviceID,
		reading.SimTime,
		reading.AirTemp,
		reading.Humidity,
		reading.SoilTemp,
		reading.SoilMoisture,
		string(reading.Status),
		reading.Timestamp.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// InsertBatch inserts multiple readings in a single transaction
func (s *SQLiteStore) InsertBatch(readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO readings (device_id, sim_time, air_temp, humidity, soil_temp, soil_moisture, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		_, err := stmt.Exec(
			reading.DeviceID,
			reading.SimTime,
			reading.AirTemp,
			reading.Humidity,
			reading.SoilTemp,
			reading.SoilMoisture,
			string(reading.Status),
			reading.Timestamp.Format("2006-01-02 15:04:05"),
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(readings)).Msg("Batch insert completed")
	return nil
}

// GetReadingsInRange returns readings within a time range
func (s *SQLiteStore) GetReadingsInRange(deviceID string, start, end time.Time, limit int) ([]*models.Reading, error) {
	var query string
	var args []interface{}

	if deviceID == "" {
		query = `
			SELECT id, device_id, sim_time, air_temp, humidity, soil_temp, soil_moisture, status, recorded_at, created_at
			FROM readings
			WHERE recorded_at BETWEEN ? AND ?
			ORDER BY recorded_at DESC
			LIMIT ?
		`
		args = []interface{}{
			start.Format("2006-01-02 15:04:05"),
			end.Format("2006-01-02 15:04:05"),
			limit,
		}
	} else {
		query = `
			SELECT id, device_id, sim_time, air_temp, humidity, soil_temp, soil_moisture, status, recorded_at, created_at
			FROM readings
			WHERE device_id = ? AND recorded_at BETWEEN ? AND ?
			ORDER BY recorded_at DESC
			LIMIT ?
		`
		args = []interface{}{
			deviceID,
			start.Format("2006-01-02 15:04:05"),
			end.Format("2006-01-02 15:04:05"),
			limit,
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanReadings(rows)
}

// GetLatestReading returns the most recent reading for a device
func (s *SQLiteStore) GetLatestReading(deviceID string) (*models.Reading, error) {
	query := `
		SELECT id, device_id, sim_time, air_temp, humidity, soil_temp, soil_moisture, status, recorded_at, created_at
		FROM readings
		WHERE device_id = ?
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	row := s.db.QueryRow(query, deviceID)
	reading, err := s.scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

// GetDailyStats returns aggregated daily statistics for a time range
func (s *SQLiteStore) GetDailyStats(deviceID string, start, end time.Time) ([]DailyStat, error) {
	var query string
	var args []interface{}

	selectCols := `
		date(recorded_at) as date,
		device_id,
		MIN(air_temp) as min_air_temp,
		MAX(air_temp) as max_air_temp,
		AVG(air_temp) as avg_air_temp,
		AVG(humidity) as avg_humidity,
		AVG(soil_temp) as avg_soil_temp,
		MIN(soil_moisture) as min_soil_moisture,
		MAX(soil_moisture) as max_soil_moisture,
		AVG(soil_moisture) as avg_soil_moisture,
		SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END) as active_count,
		COUNT(*) as reading_count
	`

	if deviceID == "" {
		query = `
			SELECT ` + selectCols + `
			FROM readings
			WHERE recorded_at BETWEEN ? AND ?
			GROUP BY date(recorded_at), device_id
			ORDER BY date DESC
		`
		args = []interface{}{
			start.Format("2006-01-02 15:04:05"),
			end.Format("2006-01-02 15:04:05"),
		}
	} else {
		query = `
			SELECT ` + selectCols + `
			FROM readings
			WHERE device_id = ? AND recorded_at BETWEEN ? AND ?
			GROUP BY date(recorded_at), device_id
			ORDER BY date DESC
		`
		args = []interface{}{
			deviceID,
			start.Format("2006-01-02 15:04:05"),
			end.Format("2006-01-02 15:04:05"),
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var stat DailyStat
		var dateStr string

		err := rows.Scan(
			&dateStr,
			&stat.DeviceID,
			&stat.MinAirTemp,
			&stat.MaxAirTemp,
			&stat.AvgAirTemp,
			&stat.AvgHumidity,
			&stat.AvgSoilTemp,
			&stat.MinSoilMoisture,
			&stat.MaxSoilMoisture,
			&stat.AvgSoilMoisture,
			&stat.ActiveCount,
			&stat.ReadingCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}

		stat.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}

		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan removes readings older than the specified number of days
// Note: Deletes based on recorded_at (simulated timestamp), not created_at (insert time)
func (s *SQLiteStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.Exec(
		"DELETE FROM readings WHERE recorded_at < ?",
		cutoff.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info().
		Int("days", days).
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Deleted old readings")

	return deleted, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLiteStore) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&stats.TotalReadings)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	// If no readings, return early with zero values
	if stats.TotalReadings == 0 {
		return stats, nil
	}

	var oldestStr, newestStr string
	err = s.db.QueryRow("SELECT MIN(recorded_at), MAX(recorded_at) FROM readings").
		Scan(&oldestStr, &newestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to get timestamp range: %w", err)
	}

	stats.OldestReading, _ = s.parseTimestamp(oldestStr)
	stats.NewestReading, _ = s.parseTimestamp(newestStr)

	err = s.db.QueryRow("SELECT COUNT(DISTINCT device_id) FROM readings").Scan(&stats.UniqueDevices)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}

	// Get database size using PRAGMA
	var pageCount, pageSize int64
	s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// GetDeviceIDs returns a list of all unique device IDs in the database
func (s *SQLiteStore) GetDeviceIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT device_id FROM readings ORDER BY device_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query device IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// scanReading is a helper to scan a row into a Reading struct
func (s *SQLiteStore) scanReading(row interface{ Scan(...interface{}) error }) (*models.Reading, error) {
	var r models.Reading
	var id int64
	var status string
	var recordedAt, createdAt string

	err := row.Scan(&id, &r.DeviceID, &r.SimTime, &r.AirTemp, &r.Humidity, &r.SoilTemp, &r.SoilMoisture, &status, &recordedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)

	r.Timestamp, err = s.parseTimestamp(recordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
	}

	return &r, nil
}

// scanReadings scans multiple rows into a slice of readings
func (s *SQLiteStore) scanReadings(rows *sql.Rows) ([]*models.Reading, error) {
	var readings []*models.Reading

	for rows.Next() {
		reading, err := s.scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return readings, nil
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func (s *SQLiteStore) parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
