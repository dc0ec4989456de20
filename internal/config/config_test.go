package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
version: "1.0"
system:
  name: overwatch-nairobi
  storage_path: /var/lib/overwatch
  logging:
    level: debug
cameras:
  - id: cam_1
    name: Uhuru Highway North
    enabled: true
    location:
      lat: -1.286389
      lon: 36.817223
      description: airport access road
    scene:
      crowd_density: high
  - id: cam_2
    name: Parking Level 2
    enabled: false
pipeline:
  incident_risk_threshold: 0.35
server:
  port: 9090
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.System.Name != "overwatch-nairobi" {
		t.Errorf("system name = %q", cfg.System.Name)
	}
	if cfg.System.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.System.Logging.Level)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("cameras = %d, want 2", len(cfg.Cameras))
	}
	if cfg.Cameras[0].Location.Description != "airport access road" {
		t.Errorf("location description = %q", cfg.Cameras[0].Location.Description)
	}
	if cfg.Pipeline.IncidentRiskThreshold != 0.35 {
		t.Errorf("risk threshold = %v", cfg.Pipeline.IncidentRiskThreshold)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "version: \"1.0\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pipeline.TrackerMaxDistance != 150 {
		t.Errorf("tracker max distance default = %v", cfg.Pipeline.TrackerMaxDistance)
	}
	if cfg.Pipeline.TrackerMinHits != 3 {
		t.Errorf("min hits default = %d", cfg.Pipeline.TrackerMinHits)
	}
	if cfg.Pipeline.TrackerMaxAge != 30 {
		t.Errorf("max age default = %d", cfg.Pipeline.TrackerMaxAge)
	}
	if cfg.Pipeline.PlateVerifyThreshold != 0.85 {
		t.Errorf("plate threshold default = %v", cfg.Pipeline.PlateVerifyThreshold)
	}
	if cfg.Pipeline.IncidentRiskThreshold != 0.3 {
		t.Errorf("risk threshold default = %v", cfg.Pipeline.IncidentRiskThreshold)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port default = %d", cfg.Server.Port)
	}
	if cfg.Bus.Port != 12001 {
		t.Errorf("bus port default = %d", cfg.Bus.Port)
	}
	if cfg.System.Logging.Level != "info" {
		t.Errorf("log level default = %q", cfg.System.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "cameras: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateDuplicateCameraID(t *testing.T) {
	_, err := Load(writeConfig(t, `
cameras:
  - id: cam_1
  - id: cam_1
`))
	if err == nil {
		t.Error("expected error for duplicate camera id")
	}
}

func TestValidateThresholdRange(t *testing.T) {
	_, err := Load(writeConfig(t, "pipeline:\n  incident_risk_threshold: 1.5\n"))
	if err == nil {
		t.Error("expected error for out-of-range threshold")
	}
}

func TestGetCamera(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cam := cfg.GetCamera("cam_1"); cam == nil || cam.Name != "Uhuru Highway North" {
		t.Errorf("GetCamera(cam_1) = %+v", cam)
	}
	if cfg.GetCamera("missing") != nil {
		t.Error("GetCamera of unknown id should return nil")
	}
}

func TestEnabledCameras(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	enabled := cfg.EnabledCameras()
	if len(enabled) != 1 || enabled[0].ID != "cam_1" {
		t.Errorf("EnabledCameras = %+v", enabled)
	}
}

func TestFrameIntervalDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cameras[0].FrameIntervalMS != 1000 {
		t.Errorf("frame interval default = %d", cfg.Cameras[0].FrameIntervalMS)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.Server.Port = 7070
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Server.Port != 7070 {
		t.Errorf("port after round trip = %d, want 7070", reloaded.Server.Port)
	}
	if len(reloaded.Cameras) != 2 {
		t.Errorf("cameras after round trip = %d", len(reloaded.Cameras))
	}
}
