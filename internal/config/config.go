package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the simulator binary
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Site    SiteConfig    `yaml:"site"`
	Run     RunConfig     `yaml:"run"`
	Outputs OutputsConfig `yaml:"outputs"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig identifies the simulated device
type DeviceConfig struct {
	ID       string `yaml:"id"`
	SiteName string `yaml:"site_name"`
	Model    string `yaml:"model"`
}

// SiteConfig is the immutable parameter record for one deployment
// site: climate means/swings, soil-moisture behaviour, per-quantity
// sensor response, and the device duty cycle. It is constructed once
// at startup, validated, and never mutated by any sub-model.
type SiteConfig struct {
	// Geographic metadata, informational only — not used in the math.
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	AltitudeM float64 `yaml:"altitude_m"`

	SampleInterval time.Duration `yaml:"sample_interval"`
	Duration       time.Duration `yaml:"duration"`

	Climate   ClimateConfig   `yaml:"climate"`
	Soil      SoilConfig      `yaml:"soil"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	DutyCycle DutyCycleConfig `yaml:"duty_cycle"`
}

// ClimateConfig parameterizes the diurnal generator. Temperatures in
// °C, humidity in %RH, phase lags in hours.
type ClimateConfig struct {
	AirTempMean       float64 `yaml:"air_temp_mean"`
	AirTempAmplitude  float64 `yaml:"air_temp_amplitude"`
	HumidityMean      float64 `yaml:"humidity_mean"`
	HumidityAmplitude float64 `yaml:"humidity_amplitude"`
	SoilTempOffset    float64 `yaml:"soil_temp_offset"` // added to AirTempMean
	SoilTempAmplitude float64 `yaml:"soil_temp_amplitude"`
	SoilTempLagHours  float64 `yaml:"soil_temp_lag_hours"`
}

// SoilConfig parameterizes the soil-moisture model. VWC values are
// percentages.
type SoilConfig struct {
	InitialVWC           float64       `yaml:"initial_vwc"`
	MinVWC               float64       `yaml:"min_vwc"`
	MaxVWC               float64       `yaml:"max_vwc"`
	EvaporationPerSecond float64       `yaml:"evaporation_per_second"`
	IrrigationPulseVWC   float64       `yaml:"irrigation_pulse_vwc"`
	IrrigationInterval   time.Duration `yaml:"irrigation_interval"`
	// IrrigationCatchUp applies floor((t-last)/interval) pulses when a
	// coarse timestep spans several irrigation intervals. Default off:
	// at most one pulse fires per step.
	IrrigationCatchUp bool `yaml:"irrigation_catch_up"`
}

// SensorConfig is the response model for one physical quantity
type SensorConfig struct {
	TimeConstant time.Duration `yaml:"time_constant"`
	NoiseSigma   float64       `yaml:"noise_sigma"`
}

// SensorsConfig holds one sensor response model per monitored quantity
type SensorsConfig struct {
	AirTemp      SensorConfig `yaml:"air_temp"`
	Humidity     SensorConfig `yaml:"humidity"`
	SoilTemp     SensorConfig `yaml:"soil_temp"`
	SoilMoisture SensorConfig `yaml:"soil_moisture"`
}

// DutyCycleConfig models the wake/sleep pattern of the battery-powered
// device: awake for the first Awake of every CyclePeriod.
type DutyCycleConfig struct {
	CyclePeriod time.Duration `yaml:"cycle_period"`
	Awake       time.Duration `yaml:"awake"`
}

// RunConfig controls how the driver executes the simulation
type RunConfig struct {
	// Mode is "batch" (whole duration as fast as possible) or "live"
	// (paced by SampleInterval in wall-clock time).
	Mode string `yaml:"mode"`
	// Seed for the noise generators; same seed, same trace.
	Seed int64 `yaml:"seed"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// DefaultSiteConfig returns the November–December baseline for the
// mid-elevation Himalayan field station the device will deploy to.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Latitude:       27.7,
		Longitude:      85.3,
		AltitudeM:      1400,
		SampleInterval: 2 * time.Second,
		Duration:       7 * 24 * time.Hour,
		Climate: ClimateConfig{
			AirTempMean:       15.0,
			AirTempAmplitude:  11.0,
			HumidityMean:      50.0,
			HumidityAmplitude: 15.0,
			SoilTempOffset:    2.0,
			SoilTempAmplitude: 6.0,
			SoilTempLagHours:  2.0,
		},
		Soil: SoilConfig{
			InitialVWC:           60.0,
			MinVWC:               15.0,
			MaxVWC:               70.0,
			EvaporationPerSecond: 0.2 / 3600.0, // 0.2 %VWC per hour
			IrrigationPulseVWC:   6.0,
			IrrigationInterval:   36 * time.Hour,
		},
		Sensors: SensorsConfig{
			AirTemp:      SensorConfig{TimeConstant: 2 * time.Second, NoiseSigma: 0.1},
			Humidity:     SensorConfig{TimeConstant: 2 * time.Second, NoiseSigma: 0.5},
			SoilTemp:     SensorConfig{TimeConstant: 6 * time.Second, NoiseSigma: 0.05},
			SoilMoisture: SensorConfig{TimeConstant: 2 * time.Second, NoiseSigma: 0.7},
		},
		DutyCycle: DutyCycleConfig{
			CyclePeriod: 31 * time.Minute,
			Awake:       60 * time.Second,
		},
	}
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = "soilsim-01"
	}
	if c.Device.SiteName == "" {
		c.Device.SiteName = "Himalayan Field Station"
	}
	if c.Device.Model == "" {
		c.Device.Model = "SOIL-SIM"
	}

	def := DefaultSiteConfig()
	s := &c.Site
	if s.Latitude == 0 && s.Longitude == 0 {
		s.Latitude = def.Latitude
		s.Longitude = def.Longitude
		s.AltitudeM = def.AltitudeM
	}
	if s.SampleInterval == 0 {
		s.SampleInterval = def.SampleInterval
	}
	if s.Duration == 0 {
		s.Duration = def.Duration
	}
	if s.Climate == (ClimateConfig{}) {
		s.Climate = def.Climate
	}
	if s.Soil == (SoilConfig{}) {
		s.Soil = def.Soil
	}
	if s.Sensors.AirTemp == (SensorConfig{}) {
		s.Sensors.AirTemp = def.Sensors.AirTemp
	}
	if s.Sensors.Humidity == (SensorConfig{}) {
		s.Sensors.Humidity = def.Sensors.Humidity
	}
	if s.Sensors.SoilTemp == (SensorConfig{}) {
		s.Sensors.SoilTemp = def.Sensors.SoilTemp
	}
	if s.Sensors.SoilMoisture == (SensorConfig{}) {
		s.Sensors.SoilMoisture = def.Sensors.SoilMoisture
	}
	if s.DutyCycle == (DutyCycleConfig{}) {
		s.DutyCycle = def.DutyCycle
	}

	if c.Run.Mode == "" {
		c.Run.Mode = "batch"
	}
	if c.Run.Seed == 0 {
		c.Run.Seed = 1
	}

	c.Outputs.ApplyDefaults()

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv("DEVICE_ID"); v != "" {
		c.Device.ID = v
	}
	if v := os.Getenv("RUN_MODE"); v != "" {
		c.Run.Mode = v
	}
	if v := os.Getenv("RUN_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Run.Seed = seed
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	c.Outputs.OverrideFromEnv()
}

// Validate checks if the configuration is valid. Invalid parameters
// fail the run here, before any stepping; values are never silently
// corrected or clamped.
func (c *Config) Validate() error {
	if c.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if c.Run.Mode != "batch" && c.Run.Mode != "live" {
		return fmt.Errorf("run mode must be \"batch\" or \"live\", got %q", c.Run.Mode)
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	return c.Outputs.Validate()
}

// Validate checks the site parameters against the model invariants
func (s *SiteConfig) Validate() error {
	if s.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %s", s.SampleInterval)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("simulation duration must be positive, got %s", s.Duration)
	}

	soil := s.Soil
	if soil.MinVWC >= soil.MaxVWC {
		return fmt.Errorf("min VWC (%.2f) must be below max VWC (%.2f)", soil.MinVWC, soil.MaxVWC)
	}
	if soil.InitialVWC <= soil.MinVWC || soil.InitialVWC >= soil.MaxVWC {
		return fmt.Errorf("initial VWC (%.2f) must be strictly between min (%.2f) and max (%.2f)",
			soil.InitialVWC, soil.MinVWC, soil.MaxVWC)
	}
	if soil.EvaporationPerSecond < 0 {
		return fmt.Errorf("evaporation rate must not be negative, got %g", soil.EvaporationPerSecond)
	}
	if soil.IrrigationPulseVWC < 0 {
		return fmt.Errorf("irrigation pulse must not be negative, got %g", soil.IrrigationPulseVWC)
	}
	if soil.IrrigationInterval <= 0 {
		return fmt.Errorf("irrigation interval must be positive, got %s", soil.IrrigationInterval)
	}

	sensors := map[string]SensorConfig{
		"air_temp":      s.Sensors.AirTemp,
		"humidity":      s.Sensors.Humidity,
		"soil_temp":     s.Sensors.SoilTemp,
		"soil_moisture": s.Sensors.SoilMoisture,
	}
	for name, sc := range sensors {
		if sc.TimeConstant <= 0 {
			return fmt.Errorf("sensor %s: time constant must be positive, got %s", name, sc.TimeConstant)
		}
		if sc.NoiseSigma < 0 {
			return fmt.Errorf("sensor %s: noise sigma must not be negative, got %g", name, sc.NoiseSigma)
		}
	}

	dc := s.DutyCycle
	if dc.CyclePeriod <= 0 {
		return fmt.Errorf("duty cycle period must be positive, got %s", dc.CyclePeriod)
	}
	if dc.Awake <= 0 {
		return fmt.Errorf("duty cycle awake window must be positive, got %s", dc.Awake)
	}
	if dc.Awake >= dc.CyclePeriod {
		return fmt.Errorf("duty cycle awake window (%s) must be shorter than the cycle period (%s)",
			dc.Awake, dc.CyclePeriod)
	}

	return nil
}

// String returns a safe string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Device: %+v, Site: [lat=%.2f lon=%.2f alt=%.0fm interval=%s duration=%s], Run: %+v, Outputs: %s, Logging: %+v}",
		c.Device,
		c.Site.Latitude,
		c.Site.Longitude,
		c.Site.AltitudeM,
		c.Site.SampleInterval,
		c.Site.Duration,
		c.Run,
		c.Outputs.String(),
		c.Logging,
	)
}
