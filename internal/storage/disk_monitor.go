package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// DiskUsage contains filesystem usage for the snapshot directory
type DiskUsage struct {
	TotalBytes     int64   `json:"total_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// DiskMonitor reports disk usage for a path with a short cache, since
// callers poll it every cycle
type DiskMonitor struct {
	path            string
	maxUsagePercent float64
	log             *logger.Logger

	mu            sync.RWMutex
	lastCheck     time.Time
	cacheDuration time.Duration
	cachedUsage   *DiskUsage
}

// NewDiskMonitor creates a disk monitor for the given path
func NewDiskMonitor(path string, maxUsagePercent float64, log *logger.Logger) *DiskMonitor {
	if maxUsagePercent <= 0 {
		maxUsagePercent = 80.0
	}
	return &DiskMonitor{
		path:            path,
		maxUsagePercent: maxUsagePercent,
		log:             log,
		cacheDuration:   30 * time.Second,
	}
}

// GetUsage returns current disk usage, served from cache when fresh
func (d *DiskMonitor) GetUsage() (*DiskUsage, error) {
	d.mu.RLock()
	if d.cachedUsage != nil && time.Since(d.lastCheck) < d.cacheDuration {
		usage := *d.cachedUsage
		d.mu.RUnlock()
		return &usage, nil
	}
	d.mu.RUnlock()

	usage, err := d.statFilesystem()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cachedUsage = usage
	d.lastCheck = time.Now()
	d.mu.Unlock()

	return usage, nil
}

// IsFull reports whether usage exceeds the configured maximum
func (d *DiskMonitor) IsFull() (bool, error) {
	usage, err := d.GetUsage()
	if err != nil {
		return false, err
	}
	return usage.UsagePercent >= d.maxUsagePercent, nil
}

// MaxUsagePercent returns the configured usage ceiling
func (d *DiskMonitor) MaxUsagePercent() float64 {
	return d.maxUsagePercent
}

func (d *DiskMonitor) statFilesystem() (*DiskUsage, error) {
	absPath, err := filepath.Abs(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	totalBytes := int64(stat.Blocks) * int64(stat.Bsize)
	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	usedBytes := totalBytes - availableBytes

	usagePercent := 0.0
	if totalBytes > 0 {
		usagePercent = float64(usedBytes) / float64(totalBytes) * 100.0
	}

	return &DiskUsage{
		TotalBytes:     totalBytes,
		UsedBytes:      usedBytes,
		AvailableBytes: availableBytes,
		UsagePercent:   usagePercent,
	}, nil
}
