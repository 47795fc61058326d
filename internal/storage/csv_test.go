package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCSVWriter_WriteAndReread(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	writer, err := NewCSVWriter(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCSVWriter failed: %v", err)
	}

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := testReading("dev-1", base.Add(time.Duration(i)*time.Minute), float64(i*60))
		if err := writer.Write(r); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if writer.Rows() != 3 {
		t.Errorf("Rows() = %d, want 3", writer.Rows())
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to reopen export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if len(records) != 4 { // header + 3 rows
		t.Fatalf("got %d records, want 4", len(records))
	}

	header := records[0]
	if header[0] != "device_id" || header[len(header)-1] != "status" {
		t.Errorf("unexpected header: %v", header)
	}

	first := records[1]
	if first[0] != "dev-1" {
		t.Errorf("device column = %q, want dev-1", first[0])
	}
	if first[2] != "0.0" {
		t.Errorf("sim_time column = %q, want 0.0", first[2])
	}
	if first[1] != base.Format(time.RFC3339) {
		t.Errorf("timestamp column = %q, want %q", first[1], base.Format(time.RFC3339))
	}
	if first[7] != "active" {
		t.Errorf("status column = %q, want active", first[7])
	}
}

func TestNewCSVWriter_BadPath(t *testing.T) {
	if _, err := NewCSVWriter(filepath.Join(t.TempDir(), "missing", "export.csv"), zerolog.Nop()); err == nil {
		t.Error("expected an error for an unwritable path")
	}
}

func TestCSVWriter_TruncatesPreviousExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("stale content\n"), 0644); err != nil {
		t.Fatalf("failed to seed stale file: %v", err)
	}

	writer, err := NewCSVWriter(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCSVWriter failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if string(data) != "device_id,timestamp,sim_time_s,air_temp_c,humidity_pct,soil_temp_c,soil_moisture_pct,status\n" {
		t.Errorf("export not truncated to header only: %q", data)
	}
}
