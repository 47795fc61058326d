package models

import "time"

// DeviceInfo contains metadata about the simulated device
type DeviceInfo struct {
	ID        string    `json:"id"`
	SiteName  string    `json:"site_name"`
	Model     string    `json:"model"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
}

// Uptime returns the duration since the simulated device started
func (d *DeviceInfo) Uptime() time.Duration {
	return time.Since(d.StartTime)
}

// NewDeviceInfo creates a new DeviceInfo with the current time as start time
func NewDeviceInfo(id, siteName, model, version string) *DeviceInfo {
	return &DeviceInfo{
		ID:        id,
		SiteName:  siteName,
		Model:     model,
		Version:   version,
		StartTime: time.Now(),
	}
}
