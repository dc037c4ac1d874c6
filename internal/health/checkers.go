package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/storage"
)

// DatabaseCheck verifies the state database responds
func DatabaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		return nil
	}
}

// DiskCheck fails once the snapshot filesystem crosses its usage ceiling
func DiskCheck(mon *storage.DiskMonitor) CheckFunc {
	return func(ctx context.Context) error {
		full, err := mon.IsFull()
		if err != nil {
			return fmt.Errorf("disk stat failed: %w", err)
		}
		if full {
			usage, _ := mon.GetUsage()
			return fmt.Errorf("disk usage %.1f%% over ceiling %.1f%%",
				usage.UsagePercent, mon.MaxUsagePercent())
		}
		return nil
	}
}

// DirectoryCheck verifies a data directory exists and is writable
func DirectoryCheck(dir string) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("directory missing: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("directory not writable: %w", err)
		}
		probe.Close()
		os.Remove(probe.Name())
		return nil
	}
}

// BackendCheck verifies the operator backend answers HTTP at all. Any
// response counts; the backend decides its own status codes.
func BackendCheck(serverURL string) CheckFunc {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL, nil)
		if err != nil {
			return fmt.Errorf("bad backend url: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		resp.Body.Close()
		return nil
	}
}

// CameraCheck reflects the control client's last contact with the camera.
// It reads cached state, so it never blocks on the network.
func CameraCheck(ctrl *camera.Controller) CheckFunc {
	return func(ctx context.Context) error {
		status := ctrl.Status()
		if !status.Reachable {
			return fmt.Errorf("camera at %s unreachable", ctrl.BaseURL())
		}
		return nil
	}
}
