package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// OutputsConfig enables and configures the sinks the driver fans each
// published reading out to. All sinks are optional; with none enabled
// the driver only logs.
type OutputsConfig struct {
	CSV    CSVConfig    `yaml:"csv"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Influx InfluxConfig `yaml:"influx"`
	Stream StreamConfig `yaml:"stream"`
}

// CSVConfig configures the tabular time-series export
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SQLiteConfig configures the local time-series database
type SQLiteConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	ChannelSize   int           `yaml:"channel_size"`
	RetentionDays int           `yaml:"retention_days"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// MQTTConfig configures publishing readings to a broker, the way the
// real device would uplink from the field
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	// BufferSize readings are held while the broker is unreachable
	BufferSize int `yaml:"buffer_size"`
}

// InfluxConfig configures the InfluxDB time-series export
type InfluxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// StreamConfig configures the live WebSocket broadcast endpoint
type StreamConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ApplyDefaults sets default values for any unset sink fields
func (o *OutputsConfig) ApplyDefaults() {
	if o.CSV.Path == "" {
		o.CSV.Path = "./data/soilsim.csv"
	}
	if o.SQLite.Path == "" {
		o.SQLite.Path = "./data/soilsim.db"
	}
	if o.SQLite.BatchSize == 0 {
		o.SQLite.BatchSize = 100
	}
	if o.SQLite.FlushPeriod == 0 {
		o.SQLite.FlushPeriod = 5 * time.Second
	}
	if o.SQLite.ChannelSize == 0 {
		o.SQLite.ChannelSize = 1000
	}
	if o.SQLite.RetentionDays == 0 {
		o.SQLite.RetentionDays = 30
	}
	if o.SQLite.CleanupPeriod == 0 {
		o.SQLite.CleanupPeriod = 1 * time.Hour
	}
	if o.MQTT.Host == "" {
		o.MQTT.Host = "localhost"
	}
	if o.MQTT.Port == 0 {
		o.MQTT.Port = 1883
	}
	if o.MQTT.ClientID == "" {
		o.MQTT.ClientID = "soilsim"
	}
	if o.MQTT.Topic == "" {
		o.MQTT.Topic = "sensor/soilsim/readings"
	}
	if o.MQTT.BufferSize == 0 {
		o.MQTT.BufferSize = 1000
	}
	if o.Influx.Measurement == "" {
		o.Influx.Measurement = "soil_readings"
	}
	if o.Stream.Host == "" {
		o.Stream.Host = "localhost"
	}
	if o.Stream.Port == 0 {
		o.Stream.Port = 8090
	}
}

// OverrideFromEnv overrides sink settings from environment variables
func (o *OutputsConfig) OverrideFromEnv() {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		o.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		o.MQTT.Password = v
	}
	if v := os.Getenv("INFLUX_URL"); v != "" {
		o.Influx.URL = v
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		o.Influx.Token = v
	}
	if v := os.Getenv("STREAM_AUTH_TOKEN"); v != "" {
		o.Stream.AuthToken = v
	}
}

// Validate checks enabled sinks for required settings
func (o *OutputsConfig) Validate() error {
	if o.CSV.Enabled && o.CSV.Path == "" {
		return fmt.Errorf("csv output enabled but no path configured")
	}
	if o.SQLite.Enabled {
		if o.SQLite.Path == "" {
			return fmt.Errorf("sqlite output enabled but no path configured")
		}
		if o.SQLite.BatchSize < 1 {
			return fmt.Errorf("sqlite batch size must be at least 1")
		}
		if o.SQLite.RetentionDays < 1 {
			return fmt.Errorf("sqlite retention days must be at least 1")
		}
	}
	if o.MQTT.Enabled {
		if o.MQTT.Host == "" {
			return fmt.Errorf("mqtt output enabled but no broker host configured")
		}
		if o.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2")
		}
	}
	if o.Influx.Enabled {
		if o.Influx.URL == "" || o.Influx.Token == "" || o.Influx.Org == "" || o.Influx.Bucket == "" {
			return fmt.Errorf("influx output enabled but url/token/org/bucket incomplete")
		}
	}
	if o.Stream.Enabled {
		if o.Stream.Port < 1 || o.Stream.Port > 65535 {
			return fmt.Errorf("stream port must be between 1 and 65535")
		}
		if o.Stream.AuthToken == "" {
			return fmt.Errorf("stream output enabled but no auth token configured")
		}
	}
	return nil
}

// String returns a safe representation listing enabled sinks (secrets masked)
func (o *OutputsConfig) String() string {
	var enabled []string
	if o.CSV.Enabled {
		enabled = append(enabled, "csv:"+o.CSV.Path)
	}
	if o.SQLite.Enabled {
		enabled = append(enabled, "sqlite:"+o.SQLite.Path)
	}
	if o.MQTT.Enabled {
		enabled = append(enabled, fmt.Sprintf("mqtt:%s:%d/%s", o.MQTT.Host, o.MQTT.Port, o.MQTT.Topic))
	}
	if o.Influx.Enabled {
		enabled = append(enabled, fmt.Sprintf("influx:%s token=%s", o.Influx.URL, maskToken(o.Influx.Token)))
	}
	if o.Stream.Enabled {
		enabled = append(enabled, fmt.Sprintf("stream:%s:%d", o.Stream.Host, o.Stream.Port))
	}
	if len(enabled) == 0 {
		return "Outputs[none]"
	}
	return "Outputs[" + strings.Join(enabled, ", ") + "]"
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
