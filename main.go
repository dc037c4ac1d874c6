package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/capture"
	"github.com/surfvision/camtuner/internal/config"
	"github.com/surfvision/camtuner/internal/health"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/requests"
	"github.com/surfvision/camtuner/internal/service"
	"github.com/surfvision/camtuner/internal/state"
	"github.com/surfvision/camtuner/internal/storage"
	"github.com/surfvision/camtuner/internal/telemetry"
	"github.com/surfvision/camtuner/internal/video"
	"github.com/surfvision/camtuner/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const cameraControlTimeout = 5 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Camera Tuner",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"site", cfg.Site,
		"cameras", len(cfg.Cameras),
	)

	// Create main context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistent state database
	stateMgr, err := state.NewManager(cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to open state database", "error", err)
		os.Exit(1)
	}
	defer stateMgr.Close()

	// Snapshot storage and retention
	store, err := storage.NewSnapshotStore(storage.StoreConfig{
		BaseDir:           cfg.Storage.SnapshotsDir,
		JPEGQuality:       cfg.Storage.JPEGQuality,
		AnnotateFocusGrid: cfg.Storage.AnnotateFocusGrid,
	}, log)
	if err != nil {
		log.Error("Failed to create snapshot store", "error", err)
		os.Exit(1)
	}
	diskMon := storage.NewDiskMonitor(cfg.Storage.SnapshotsDir,
		cfg.Storage.MaxDiskUsagePercent, log)
	retention := storage.NewRetentionPolicy(cfg.Storage.SnapshotsDir,
		cfg.Storage.RetentionDays, diskMon, log)

	// Frame decoder (exec'd ffmpeg)
	decoder, err := video.NewDecoder(log)
	if err != nil {
		log.Error("Failed to locate ffmpeg", "error", err)
		os.Exit(1)
	}

	// Per-camera HTTP control
	controllers := make(map[string]*camera.Controller, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		controllers[cam.ID] = camera.NewController(cam.ControlBaseURL(),
			cameraControlTimeout, log)
	}

	// Telemetry toward the backend
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	collector := telemetry.NewCollector(cfg.Site, diskMon)
	backend := telemetry.NewClient(cfg.Backend.Server, "camtuner", hostname,
		cfg.Backend.Timeout, log)

	// Create service manager
	svcMgr := service.NewManager(log)

	svcMgr.Register(storage.NewJanitor(retention, diskMon, log))
	svcMgr.Register(telemetry.NewSender(collector, backend, cfg.Telemetry, log))

	poller := requests.NewPoller(backend, cfg.Telemetry.Interval, log)
	registerCommands(poller, collector, store, stateMgr, controllers)
	if cfg.Backend.Server != "" {
		svcMgr.Register(poller)
	}

	for _, cam := range cfg.Cameras {
		svcMgr.Register(capture.NewTuner(cam, cfg, capture.TunerDeps{
			Controller: controllers[cam.ID],
			Decoder:    decoder,
			Store:      store,
			State:      stateMgr,
			Collector:  collector,
			Logger:     log,
		}))
	}

	// Health checks served by the web API
	checks := health.NewRegistry(log)
	checks.Register("database", health.DatabaseCheck(stateMgr.GetDB()))
	checks.Register("disk", health.DiskCheck(diskMon))
	checks.Register("snapshots_dir", health.DirectoryCheck(cfg.Storage.SnapshotsDir))
	if cfg.Backend.Server != "" {
		checks.Register("backend", health.BackendCheck(cfg.Backend.Server))
	}
	for id, ctrl := range controllers {
		checks.Register("camera:"+id, health.CameraCheck(ctrl))
	}

	webSrv := web.NewServer(cfg.Web, web.Deps{
		Collector:   collector,
		Controllers: controllers,
		States:      stateMgr,
		Store:       store,
		Checks:      checks,
		Manager:     svcMgr,
	}, log)
	webSrv.SetVersion(version)
	svcMgr.Register(webSrv)

	// Start all services
	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	// Start graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}

// registerCommands wires the backend request commands the site responds to.
func registerCommands(
	poller *requests.Poller,
	collector *telemetry.Collector,
	store *storage.SnapshotStore,
	stateMgr *state.Manager,
	controllers map[string]*camera.Controller,
) {
	poller.RegisterCommand("status", func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error) {
		return map[string]interface{}{
			"system":  collector.SystemReport(),
			"cameras": collector.Reports(),
		}, nil
	})

	poller.RegisterCommand("snapshot", func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error) {
		cameraID := req.Params["camera"]
		if cameraID == "" {
			return nil, fmt.Errorf("missing camera param")
		}
		info, err := store.Latest(cameraID)
		if err != nil {
			return nil, err
		}
		return info, nil
	})

	poller.RegisterCommand("refresh", func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error) {
		ctrl, err := lookupController(controllers, req.Params["camera"])
		if err != nil {
			return nil, err
		}
		settings, err := ctrl.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		return settings, nil
	})

	poller.RegisterCommand("set_setting", func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error) {
		ctrl, err := lookupController(controllers, req.Params["camera"])
		if err != nil {
			return nil, err
		}
		key := req.Params["key"]
		value := req.Params["value"]
		if key == "" || value == "" {
			return nil, fmt.Errorf("missing key or value param")
		}
		if err := ctrl.Set(ctx, key, value); err != nil {
			return nil, err
		}
		return map[string]string{key: value}, nil
	})

	poller.RegisterCommand("history", func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error) {
		cameraID := req.Params["camera"]
		if cameraID == "" {
			return nil, fmt.Errorf("missing camera param")
		}
		samples, err := stateMgr.RecentSamples(ctx, cameraID, 20)
		if err != nil {
			return nil, err
		}
		adjustments, err := stateMgr.RecentAdjustments(ctx, cameraID, 20)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"samples":     samples,
			"adjustments": adjustments,
		}, nil
	})
}

func lookupController(controllers map[string]*camera.Controller, cameraID string) (*camera.Controller, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("missing camera param")
	}
	ctrl, ok := controllers[cameraID]
	if !ok {
		return nil, fmt.Errorf("unknown camera %q", cameraID)
	}
	return ctrl, nil
}
