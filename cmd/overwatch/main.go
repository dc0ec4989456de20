// Package main provides the overwatch system entry point: it wires the
// detection pipeline, managers, event bus, and API server for the
// configured cameras.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/alert"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/api"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/audit"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/bus"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/config"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/evidence"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/incident"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/milestone"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/tracking"
)

func main() {
	// Load config first so the log level can come from it.
	configPath := getEnv("CONFIG_PATH", "/data/config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
		slog.Warn("Using default configuration", "config_path", configPath, "error", err)
	}

	logLevel := slog.LevelInfo
	if cfg.System.Logging.Level == "debug" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("Starting overwatch system",
		"version", cfg.Version,
		"cameras", len(cfg.EnabledCameras()),
		"api_port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataPath := getEnv("DATA_PATH", cfg.System.StoragePath)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		slog.Error("Failed to create data directory", "path", dataPath, "error", err)
		os.Exit(1)
	}

	// Database and migrations.
	db, err := database.Open(database.DefaultConfig(dataPath))
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.NewMigrator(db).Run(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Embedded NATS event bus.
	eventBus, err := bus.New(bus.Config{
		Host:     cfg.Bus.Host,
		Port:     cfg.Bus.Port,
		StoreDir: filepath.Join(dataPath, "bus"),
	}, logger)
	if err != nil {
		slog.Error("Failed to start event bus", "error", err)
		os.Exit(1)
	}
	defer eventBus.Stop()

	// Managers over the shared audit trail.
	auditLog := audit.NewLog(db)
	evidenceMgr := evidence.NewManager(evidence.NewStore(db), auditLog)
	milestoneMgr := milestone.NewManager(milestone.NewStore(db), auditLog)

	sweeper := evidence.NewSweeper(evidenceMgr)
	sweeper.Start(ctx, time.Duration(cfg.Pipeline.SweepIntervalMinutes)*time.Minute)
	defer sweeper.Stop()

	// Pipeline: engine, orchestrator, per-camera workers.
	orchestrator := incident.NewOrchestrator(incident.Config{
		RiskThreshold: cfg.Pipeline.IncidentRiskThreshold,
		Tracker: tracking.Config{
			MaxDistance:          cfg.Pipeline.TrackerMaxDistance,
			MinHits:              cfg.Pipeline.TrackerMinHits,
			MaxAge:               cfg.Pipeline.TrackerMaxAge,
			PlateVerifyThreshold: cfg.Pipeline.PlateVerifyThreshold,
		},
	}, risk.NewEngine(), evidenceMgr, alert.NewBusSink(eventBus), eventBus, incident.NewStore(db))
	orchestrator.SetReviewOpener(milestoneMgr)

	detector := detection.NewSimulatedDetector(cfg.Pipeline.SimulatorSeed)
	defer detector.Close()

	var wg sync.WaitGroup
	for _, cam := range cfg.EnabledCameras() {
		source := detection.NewTickingFrameSource(cam.ID,
			time.Duration(cam.FrameIntervalMS)*time.Millisecond)
		worker := incident.NewWorker(cam.ID, incident.Scene{
			Location:     cam.Location.Description,
			Weather:      cam.Scene.Weather,
			Traffic:      cam.Scene.Traffic,
			CrowdDensity: risk.CrowdDensity(cam.Scene.CrowdDensity),
		}, source, detector, orchestrator)

		wg.Add(1)
		go func(src *detection.TickingFrameSource) {
			defer wg.Done()
			defer src.Close()
			worker.Run(ctx)
		}(source)
	}

	// API: health endpoint plus the WebSocket alert relay.
	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, api.NewHub(), eventBus)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("API server failed", "error", err)
			cancel()
		}
	}()

	// Reload thresholds are picked up on restart; watching still logs edits.
	if err := cfg.Watch(); err != nil {
		slog.Warn("Config watch unavailable", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("Shutting down", "signal", s.String())
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API shutdown error", "error", err)
	}
	wg.Wait()
	slog.Info("Overwatch system stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
