// Package settings manages persistent user settings for the shusefs CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultDeviceURL is the device endpoint GetDeviceURL reports when no
// default_device_url has been saved.
const DefaultDeviceURL = "ws://shellyplus1-000000.local/rpc"

// Settings holds persistent user preferences.
type Settings struct {
	// DefaultDeviceURL is the saved default device websocket URL, shown
	// by `shusefs settings show`; the device commands take their URL as
	// a required argument and do not read it.
	DefaultDeviceURL string `json:"default_device_url,omitempty"`

	// LastMountPoint is the most recent mount point, saved by `shusefs
	// mount` and shown by `shusefs settings show`.
	LastMountPoint string `json:"last_mount_point,omitempty"`

	// ReconnectMinBackoffMS and ReconnectMaxBackoffMS bound the
	// transport's exponential reconnect backoff, in milliseconds.
	ReconnectMinBackoffMS int `json:"reconnect_min_backoff_ms,omitempty"`
	ReconnectMaxBackoffMS int `json:"reconnect_max_backoff_ms,omitempty"`

	// AuditLogPath overrides the default RPC audit log path.
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// AuditMaxSizeMB is the max audit log size in MB before rotation (default: 10).
	AuditMaxSizeMB int `json:"audit_max_size_mb,omitempty"`

	// AuditMaxBackups is the max number of rotated audit log files (default: 10).
	AuditMaxBackups int `json:"audit_max_backups,omitempty"`

	// MQTTMirrorEnabled turns on the redundant MQTT status mirror
	// alongside the primary WebSocket session. Disabled by default.
	MQTTMirrorEnabled bool `json:"mqtt_mirror_enabled,omitempty"`
}

const (
	// DefaultAuditMaxSizeMB is the default maximum audit log size in megabytes.
	DefaultAuditMaxSizeMB = 10

	// DefaultAuditMaxBackups is the default maximum number of rotated audit log files.
	DefaultAuditMaxBackups = 10

	// DefaultReconnectMinBackoffMS is the starting backoff before the
	// first reconnect attempt.
	DefaultReconnectMinBackoffMS = 500

	// DefaultReconnectMaxBackoffMS caps the exponential reconnect backoff.
	DefaultReconnectMaxBackoffMS = 30000
)

// DefaultSettingsPath returns the default path for the settings file.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shusefs_settings.json"
	}
	return filepath.Join(home, ".shusefs", "settings.json")
}

// Load reads settings from the default location.
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location.
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path.
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetDeviceURL returns the device URL with a fallback default.
func (s *Settings) GetDeviceURL() string {
	if s.DefaultDeviceURL != "" {
		return s.DefaultDeviceURL
	}
	return DefaultDeviceURL
}

// GetReconnectMinBackoffMS returns the minimum reconnect backoff with a default.
func (s *Settings) GetReconnectMinBackoffMS() int {
	if s.ReconnectMinBackoffMS > 0 {
		return s.ReconnectMinBackoffMS
	}
	return DefaultReconnectMinBackoffMS
}

// GetReconnectMaxBackoffMS returns the maximum reconnect backoff with a default.
func (s *Settings) GetReconnectMaxBackoffMS() int {
	if s.ReconnectMaxBackoffMS > 0 {
		return s.ReconnectMaxBackoffMS
	}
	return DefaultReconnectMaxBackoffMS
}

// GetAuditLogPath returns the audit log path with a fallback default.
func (s *Settings) GetAuditLogPath() string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	return "/var/log/shusefs/audit.log"
}

// GetAuditMaxSizeMB returns the audit max size in MB with a default of 10.
func (s *Settings) GetAuditMaxSizeMB() int {
	if s.AuditMaxSizeMB > 0 {
		return s.AuditMaxSizeMB
	}
	return DefaultAuditMaxSizeMB
}

// GetAuditMaxBackups returns the audit max backups with a default of 10.
func (s *Settings) GetAuditMaxBackups() int {
	if s.AuditMaxBackups > 0 {
		return s.AuditMaxBackups
	}
	return DefaultAuditMaxBackups
}

// Clear resets all settings to defaults.
func (s *Settings) Clear() {
	*s = Settings{}
}
