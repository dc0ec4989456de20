// Package config provides configuration management for the overwatch system
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config represents the main overwatch configuration
type Config struct {
	Version  string         `yaml:"version"`
	System   SystemConfig   `yaml:"system"`
	Cameras  []CameraConfig `yaml:"cameras"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
	Bus      BusConfig      `yaml:"bus"`

	// Internal fields
	mu       sync.RWMutex    `yaml:"-"`
	path     string          `yaml:"-"`
	watchers []func(*Config) `yaml:"-"`
}

// SystemConfig holds system-wide settings
type SystemConfig struct {
	Name        string        `yaml:"name"`
	Timezone    string        `yaml:"timezone"`
	StoragePath string        `yaml:"storage_path"`
	Logging     LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CameraConfig holds configuration for a single camera feed
type CameraConfig struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Location LocationConfig `yaml:"location,omitempty" json:"location,omitempty"`
	Scene    SceneConfig    `yaml:"scene,omitempty" json:"scene,omitempty"`
	// FrameIntervalMS is how often the frame source ticks, in milliseconds.
	FrameIntervalMS int `yaml:"frame_interval_ms,omitempty" json:"frame_interval_ms,omitempty"`
}

// LocationConfig holds camera placement info
type LocationConfig struct {
	Lat         float64 `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lon         float64 `yaml:"lon,omitempty" json:"lon,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// SceneConfig holds the situational context fed to risk assessment
type SceneConfig struct {
	Weather      string `yaml:"weather,omitempty" json:"weather,omitempty"`
	Traffic      string `yaml:"traffic,omitempty" json:"traffic,omitempty"`
	CrowdDensity string `yaml:"crowd_density,omitempty" json:"crowd_density,omitempty"`
}

// PipelineConfig holds detection pipeline thresholds
type PipelineConfig struct {
	// Tracker association gate in pixel-equivalent units
	TrackerMaxDistance float64 `yaml:"tracker_max_distance"`
	// Frames matched before a track is reported
	TrackerMinHits int `yaml:"tracker_min_hits"`
	// Unmatched frames before a track is removed
	TrackerMaxAge int `yaml:"tracker_max_age"`
	// Plate confidence above which a track is verified
	PlateVerifyThreshold float64 `yaml:"plate_verify_threshold"`
	// Risk score above which an incident is opened
	IncidentRiskThreshold float64 `yaml:"incident_risk_threshold"`
	// How often the retention sweeper runs
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	// Seed for the simulated detector
	SimulatorSeed int64 `yaml:"simulator_seed,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BusConfig holds event bus settings
type BusConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.path = path
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no cameras.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Save saves the configuration to a YAML file
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveUnlocked()
}

// saveUnlocked saves without acquiring lock (caller must hold lock)
func (c *Config) saveUnlocked() error {
	// Copy for marshalling so the mutex is not serialized.
	cfgCopy := &Config{
		Version:  c.Version,
		System:   c.System,
		Cameras:  c.Cameras,
		Pipeline: c.Pipeline,
		Server:   c.Server,
		Bus:      c.Bus,
	}

	data, err := yaml.Marshal(cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# Overwatch System Configuration\n# Auto-generated - manual edits are preserved\n\n"
	data = append([]byte(header), data...)

	// Atomic write
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return os.Rename(tmpPath, c.path)
}

// Watch starts watching for configuration file changes
func (c *Config) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					time.Sleep(100 * time.Millisecond) // Debounce
					c.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watch error", "error", err)
			}
		}
	}()

	return watcher.Add(c.path)
}

// OnChange registers a callback for config changes
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// reload reloads the configuration from disk
func (c *Config) reload() {
	newCfg, err := Load(c.path)
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		return
	}

	c.mu.Lock()
	// Copy fields individually to avoid copying the mutex
	c.Version = newCfg.Version
	c.System = newCfg.System
	c.Cameras = newCfg.Cameras
	c.Pipeline = newCfg.Pipeline
	c.Server = newCfg.Server
	c.Bus = newCfg.Bus
	watchers := c.watchers
	c.mu.Unlock()

	slog.Info("Configuration reloaded")

	for _, fn := range watchers {
		fn(c)
	}
}

// GetCamera returns a camera by ID
func (c *Config) GetCamera(id string) *CameraConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.Cameras {
		if c.Cameras[i].ID == id {
			return &c.Cameras[i]
		}
	}
	return nil
}

// EnabledCameras returns the cameras with processing enabled.
func (c *Config) EnabledCameras() []CameraConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []CameraConfig
	for _, cam := range c.Cameras {
		if cam.Enabled {
			out = append(out, cam)
		}
	}
	return out
}

// SetPath sets the path for the config file (used for saving)
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// GetPath returns the current config file path
func (c *Config) GetPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// setDefaults sets default values for unset fields
func (c *Config) setDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.System.Name == "" {
		c.System.Name = "overwatch"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
	if c.System.StoragePath == "" {
		c.System.StoragePath = "/data"
	}
	if c.System.Logging.Level == "" {
		c.System.Logging.Level = "info"
	}
	if c.Pipeline.TrackerMaxDistance == 0 {
		c.Pipeline.TrackerMaxDistance = 150
	}
	if c.Pipeline.TrackerMinHits == 0 {
		c.Pipeline.TrackerMinHits = 3
	}
	if c.Pipeline.TrackerMaxAge == 0 {
		c.Pipeline.TrackerMaxAge = 30
	}
	if c.Pipeline.PlateVerifyThreshold == 0 {
		c.Pipeline.PlateVerifyThreshold = 0.85
	}
	if c.Pipeline.IncidentRiskThreshold == 0 {
		c.Pipeline.IncidentRiskThreshold = 0.3
	}
	if c.Pipeline.SweepIntervalMinutes == 0 {
		c.Pipeline.SweepIntervalMinutes = 60
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Bus.Host == "" {
		c.Bus.Host = "127.0.0.1"
	}
	if c.Bus.Port == 0 {
		c.Bus.Port = 12001
	}

	for i := range c.Cameras {
		if c.Cameras[i].FrameIntervalMS == 0 {
			c.Cameras[i].FrameIntervalMS = 1000
		}
	}
}

// validate rejects configurations that cannot run.
func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera with empty id")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id: %s", cam.ID)
		}
		seen[cam.ID] = true
	}
	if c.Pipeline.IncidentRiskThreshold < 0 || c.Pipeline.IncidentRiskThreshold > 1 {
		return fmt.Errorf("incident_risk_threshold out of range: %v", c.Pipeline.IncidentRiskThreshold)
	}
	return nil
}
