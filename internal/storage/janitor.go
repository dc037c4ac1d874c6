package storage

import (
	"context"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/service"
)

// janitorInterval is how often retention is enforced
const janitorInterval = time.Hour

// Janitor runs the retention policy on a schedule and raises a storage
// warning event when the disk crosses its usage ceiling
type Janitor struct {
	*service.ServiceBase
	policy *RetentionPolicy
	disk   *DiskMonitor
	cancel context.CancelFunc
}

// NewJanitor creates the storage janitor service
func NewJanitor(policy *RetentionPolicy, disk *DiskMonitor, log *logger.Logger) *Janitor {
	return &Janitor{
		ServiceBase: service.NewServiceBase("storage-janitor", log),
		policy:      policy,
		disk:        disk,
	}
}

// Start launches the enforcement loop
func (j *Janitor) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	go j.run(loopCtx)

	j.GetStatus().SetStatus(service.StatusRunning)
	j.LogInfo("Storage janitor started", "interval", janitorInterval.String())
	return nil
}

// Stop cancels the enforcement loop
func (j *Janitor) Stop(ctx context.Context) error {
	j.GetStatus().SetStatus(service.StatusStopping)
	if j.cancel != nil {
		j.cancel()
	}
	j.GetStatus().SetStatus(service.StatusStopped)
	j.LogInfo("Storage janitor stopped")
	return nil
}

func (j *Janitor) run(ctx context.Context) {
	// One pass at startup, then hourly
	j.sweep(ctx)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if full, err := j.disk.IsFull(); err == nil && full {
		usage, _ := j.disk.GetUsage()
		j.LogWarn("Disk usage over ceiling", "usage_percent", usage.UsagePercent)
		j.PublishEvent(service.EventTypeStorageWarning, map[string]interface{}{
			"usage_percent": usage.UsagePercent,
		})
	}

	if err := j.policy.Enforce(ctx); err != nil {
		j.LogWarn("Retention pass failed", "error", err)
	}
}
