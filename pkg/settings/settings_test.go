package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetDeviceURL(); got != DefaultDeviceURL {
		t.Errorf("GetDeviceURL() default = %q, want %q", got, DefaultDeviceURL)
	}
	if got := s.GetReconnectMinBackoffMS(); got != DefaultReconnectMinBackoffMS {
		t.Errorf("GetReconnectMinBackoffMS() default = %d, want %d", got, DefaultReconnectMinBackoffMS)
	}
	if got := s.GetReconnectMaxBackoffMS(); got != DefaultReconnectMaxBackoffMS {
		t.Errorf("GetReconnectMaxBackoffMS() default = %d, want %d", got, DefaultReconnectMaxBackoffMS)
	}
	if s.LastMountPoint != "" {
		t.Errorf("LastMountPoint should be empty, got %q", s.LastMountPoint)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		DefaultDeviceURL: "ws://test/rpc",
		LastMountPoint:   "/mnt/shelly",
		AuditLogPath:     "/path",
	}

	s.Clear()

	if s.DefaultDeviceURL != "" || s.LastMountPoint != "" || s.AuditLogPath != "" {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shusefs-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "settings.json")

	original := &Settings{
		DefaultDeviceURL: "ws://shellyplus1-aabbcc.local/rpc",
		LastMountPoint:   "/mnt/shelly",
		MQTTMirrorEnabled: true,
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if loaded.DefaultDeviceURL != original.DefaultDeviceURL {
		t.Errorf("DefaultDeviceURL mismatch: got %q, want %q", loaded.DefaultDeviceURL, original.DefaultDeviceURL)
	}
	if loaded.LastMountPoint != original.LastMountPoint {
		t.Errorf("LastMountPoint mismatch: got %q, want %q", loaded.LastMountPoint, original.LastMountPoint)
	}
	if loaded.MQTTMirrorEnabled != original.MQTTMirrorEnabled {
		t.Errorf("MQTTMirrorEnabled mismatch: got %v, want %v", loaded.MQTTMirrorEnabled, original.MQTTMirrorEnabled)
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom("/nonexistent/path/settings.json")
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil {
		t.Fatal("LoadFrom() should return non-nil Settings")
	}
	if s.DefaultDeviceURL != "" {
		t.Error("LoadFrom() non-existent should return empty settings")
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shusefs-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "settings.json")
	if err := os.WriteFile(path, []byte("invalid json {"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	_, err = LoadFrom(path)
	if err == nil {
		t.Error("LoadFrom() with invalid JSON should error")
	}
}

func TestSettings_SaveCreatesDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shusefs-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "subdir", "nested", "settings.json")

	s := &Settings{DefaultDeviceURL: "ws://test/rpc"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() should create directories: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("SaveTo() should have created the file")
	}
}

func TestDefaultSettingsPath(t *testing.T) {
	path := DefaultSettingsPath()
	if path == "" {
		t.Error("DefaultSettingsPath() should not be empty")
	}
	if !filepath.IsAbs(path) && path != "shusefs_settings.json" {
		t.Errorf("DefaultSettingsPath() should be absolute or fallback, got %q", path)
	}
}

func TestLoad(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	tmpDir, err := os.MkdirTemp("", "shusefs-test-home-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	os.Setenv("HOME", tmpDir)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() with non-existent file should not error: %v", err)
	}
	if s == nil {
		t.Fatal("Load() should return non-nil Settings")
	}
	if s.DefaultDeviceURL != "" {
		t.Error("Load() with non-existent file should return empty settings")
	}

	shusefsDir := filepath.Join(tmpDir, ".shusefs")
	if err := os.MkdirAll(shusefsDir, 0755); err != nil {
		t.Fatalf("Failed to create .shusefs dir: %v", err)
	}

	settingsPath := filepath.Join(shusefsDir, "settings.json")
	testSettings := `{"default_device_url":"ws://test-device/rpc","last_mount_point":"/mnt/test"}`
	if err := os.WriteFile(settingsPath, []byte(testSettings), 0644); err != nil {
		t.Fatalf("Failed to write test settings: %v", err)
	}

	s, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.DefaultDeviceURL != "ws://test-device/rpc" {
		t.Errorf("Load() DefaultDeviceURL = %q, want %q", s.DefaultDeviceURL, "ws://test-device/rpc")
	}
	if s.LastMountPoint != "/mnt/test" {
		t.Errorf("Load() LastMountPoint = %q, want %q", s.LastMountPoint, "/mnt/test")
	}
}

func TestSave(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	tmpDir, err := os.MkdirTemp("", "shusefs-test-home-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	os.Setenv("HOME", tmpDir)

	s := &Settings{
		DefaultDeviceURL: "ws://saved-device/rpc",
		LastMountPoint:   "/mnt/saved",
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, ".shusefs", "settings.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Save() did not create file at %s", expectedPath)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() after Save() failed: %v", err)
	}
	if loaded.DefaultDeviceURL != "ws://saved-device/rpc" {
		t.Errorf("After Save(), DefaultDeviceURL = %q, want %q", loaded.DefaultDeviceURL, "ws://saved-device/rpc")
	}
}

func TestDefaultSettingsPath_NoHome(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	os.Unsetenv("HOME")

	path := DefaultSettingsPath()
	if path != "shusefs_settings.json" {
		t.Errorf("DefaultSettingsPath() with no HOME = %q, want %q", path, "shusefs_settings.json")
	}
}

func TestLoadFrom_ReadError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shusefs-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dirAsFile := filepath.Join(tmpDir, "settings.json")
	if err := os.Mkdir(dirAsFile, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	_, err = LoadFrom(dirAsFile)
	if err == nil {
		t.Error("LoadFrom() should error when path is a directory")
	}
}

func TestSaveTo_MkdirError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shusefs-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	blockingFile := filepath.Join(tmpDir, "blocker")
	if err := os.WriteFile(blockingFile, []byte("blocking"), 0644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}

	path := filepath.Join(blockingFile, "subdir", "settings.json")
	s := &Settings{DefaultDeviceURL: "ws://test/rpc"}

	err = s.SaveTo(path)
	if err == nil {
		t.Error("SaveTo() should fail when directory creation fails")
	}
}
