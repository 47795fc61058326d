package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "device:\n  id: test-device\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device.ID != "test-device" {
		t.Errorf("Device.ID = %q, want test-device", cfg.Device.ID)
	}
	if cfg.Site.SampleInterval != 2*time.Second {
		t.Errorf("SampleInterval = %v, want 2s", cfg.Site.SampleInterval)
	}
	if cfg.Site.Climate.AirTempMean != 15.0 {
		t.Errorf("AirTempMean = %v, want 15", cfg.Site.Climate.AirTempMean)
	}
	if cfg.Site.Soil.InitialVWC != 60.0 {
		t.Errorf("InitialVWC = %v, want 60", cfg.Site.Soil.InitialVWC)
	}
	if cfg.Site.Sensors.SoilTemp.TimeConstant != 6*time.Second {
		t.Errorf("SoilTemp.TimeConstant = %v, want 6s", cfg.Site.Sensors.SoilTemp.TimeConstant)
	}
	if cfg.Site.DutyCycle.CyclePeriod != 31*time.Minute {
		t.Errorf("DutyCycle.CyclePeriod = %v, want 31m", cfg.Site.DutyCycle.CyclePeriod)
	}
	if cfg.Run.Mode != "batch" {
		t.Errorf("Run.Mode = %q, want batch", cfg.Run.Mode)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadConfig_ExplicitValuesSurviveDefaults(t *testing.T) {
	path := writeConfigFile(t, `
device:
  id: greenhouse-7
site:
  sample_interval: 5s
  duration: 24h
  soil:
    initial_vwc: 45
    min_vwc: 10
    max_vwc: 80
    evaporation_per_second: 0.0001
    irrigation_pulse_vwc: 4
    irrigation_interval: 12h
run:
  mode: live
  seed: 7
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Site.SampleInterval != 5*time.Second {
		t.Errorf("SampleInterval = %v, want 5s", cfg.Site.SampleInterval)
	}
	if cfg.Site.Soil.InitialVWC != 45 {
		t.Errorf("InitialVWC = %v, want 45", cfg.Site.Soil.InitialVWC)
	}
	if cfg.Site.Soil.IrrigationInterval != 12*time.Hour {
		t.Errorf("IrrigationInterval = %v, want 12h", cfg.Site.Soil.IrrigationInterval)
	}
	if cfg.Run.Mode != "live" || cfg.Run.Seed != 7 {
		t.Errorf("Run = %+v, want live/7", cfg.Run)
	}
	// Untouched sections still get the baseline
	if cfg.Site.Climate.AirTempAmplitude != 11.0 {
		t.Errorf("AirTempAmplitude = %v, want 11", cfg.Site.Climate.AirTempAmplitude)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "device: [this is not\n  a mapping\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error for malformed YAML")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DEVICE_ID", "env-device")
	t.Setenv("RUN_SEED", "12345")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MQTT_HOST", "broker.example.com")

	path := writeConfigFile(t, "device:\n  id: file-device\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device.ID != "env-device" {
		t.Errorf("Device.ID = %q, want env override env-device", cfg.Device.ID)
	}
	if cfg.Run.Seed != 12345 {
		t.Errorf("Run.Seed = %d, want 12345", cfg.Run.Seed)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Outputs.MQTT.Host != "broker.example.com" {
		t.Errorf("MQTT.Host = %q, want broker.example.com", cfg.Outputs.MQTT.Host)
	}
}

func TestSiteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SiteConfig)
		wantErr string
	}{
		{"baseline is valid", func(s *SiteConfig) {}, ""},
		{"zero sample interval", func(s *SiteConfig) { s.SampleInterval = 0 }, "sample interval"},
		{"negative duration", func(s *SiteConfig) { s.Duration = -time.Hour }, "duration"},
		{"min above max VWC", func(s *SiteConfig) { s.Soil.MinVWC = 80 }, "min VWC"},
		{"initial at the floor", func(s *SiteConfig) { s.Soil.InitialVWC = s.Soil.MinVWC }, "initial VWC"},
		{"initial above ceiling", func(s *SiteConfig) { s.Soil.InitialVWC = 99 }, "initial VWC"},
		{"negative evaporation", func(s *SiteConfig) { s.Soil.EvaporationPerSecond = -1 }, "evaporation"},
		{"negative pulse", func(s *SiteConfig) { s.Soil.IrrigationPulseVWC = -1 }, "irrigation pulse"},
		{"zero irrigation interval", func(s *SiteConfig) { s.Soil.IrrigationInterval = 0 }, "irrigation interval"},
		{"zero time constant", func(s *SiteConfig) { s.Sensors.Humidity.TimeConstant = 0 }, "time constant"},
		{"negative noise sigma", func(s *SiteConfig) { s.Sensors.AirTemp.NoiseSigma = -0.1 }, "noise sigma"},
		{"zero cycle period", func(s *SiteConfig) { s.DutyCycle.CyclePeriod = 0 }, "cycle period"},
		{"awake equals period", func(s *SiteConfig) { s.DutyCycle.Awake = s.DutyCycle.CyclePeriod }, "awake window"},
		{"awake exceeds period", func(s *SiteConfig) { s.DutyCycle.Awake = 2 * s.DutyCycle.CyclePeriod }, "awake window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := DefaultSiteConfig()
			tt.mutate(&site)
			err := site.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_RunMode(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Run.Mode = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown run mode")
	}
}

func TestOutputsConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OutputsConfig)
	}{
		{"sqlite zero batch", func(o *OutputsConfig) {
			o.SQLite.Enabled = true
			o.SQLite.BatchSize = 0
		}},
		{"mqtt invalid qos", func(o *OutputsConfig) {
			o.MQTT.Enabled = true
			o.MQTT.QoS = 3
		}},
		{"influx missing token", func(o *OutputsConfig) {
			o.Influx.Enabled = true
			o.Influx.URL = "http://localhost:8086"
			o.Influx.Org = "farm"
			o.Influx.Bucket = "soil"
		}},
		{"stream missing token", func(o *OutputsConfig) {
			o.Stream.Enabled = true
		}},
		{"stream bad port", func(o *OutputsConfig) {
			o.Stream.Enabled = true
			o.Stream.AuthToken = "secret"
			o.Stream.Port = 70000
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o OutputsConfig
			o.ApplyDefaults()
			tt.mutate(&o)
			if err := o.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestOutputsConfig_StringMasksSecrets(t *testing.T) {
	var o OutputsConfig
	o.ApplyDefaults()
	o.Influx.Enabled = true
	o.Influx.URL = "http://localhost:8086"
	o.Influx.Token = "supersecrettoken"

	s := o.String()
	if strings.Contains(s, "supersecrettoken") {
		t.Errorf("String() leaked the influx token: %s", s)
	}
	if !strings.Contains(s, "supe****") {
		t.Errorf("String() should show the masked token prefix: %s", s)
	}
}
