package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// RetentionPolicy deletes snapshots past their retention age and, when the
// disk is still over its usage ceiling, the oldest remaining ones
type RetentionPolicy struct {
	baseDir       string
	retentionDays int
	disk          *DiskMonitor
	log           *logger.Logger

	mu        sync.Mutex
	enforcing bool
}

// NewRetentionPolicy creates a retention policy over the snapshot directory
func NewRetentionPolicy(baseDir string, retentionDays int, disk *DiskMonitor, log *logger.Logger) *RetentionPolicy {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &RetentionPolicy{
		baseDir:       baseDir,
		retentionDays: retentionDays,
		disk:          disk,
		log:           log,
	}
}

// Enforce runs one retention pass. Concurrent passes are rejected.
func (r *RetentionPolicy) Enforce(ctx context.Context) error {
	r.mu.Lock()
	if r.enforcing {
		r.mu.Unlock()
		return fmt.Errorf("retention pass already running")
	}
	r.enforcing = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.enforcing = false
		r.mu.Unlock()
	}()

	if err := r.deleteExpired(ctx); err != nil {
		r.log.Warn("Failed to delete expired snapshots", "error", err)
	}
	if err := r.freeDiskSpace(ctx); err != nil {
		r.log.Warn("Failed to free disk space", "error", err)
	}
	return nil
}

func (r *RetentionPolicy) deleteExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)

	files, err := r.listSnapshots()
	if err != nil {
		return err
	}

	deleted := 0
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			r.log.Warn("Failed to delete expired snapshot", "path", f.Path, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		r.log.Info("Deleted expired snapshots", "count", deleted)
		r.removeEmptyDirs()
	}
	return nil
}

// freeDiskSpace deletes oldest snapshots until the disk drops below the
// usage ceiling
func (r *RetentionPolicy) freeDiskSpace(ctx context.Context) error {
	if r.disk == nil {
		return nil
	}

	full, err := r.disk.IsFull()
	if err != nil {
		return err
	}
	if !full {
		return nil
	}

	files, err := r.listSnapshots()
	if err != nil {
		return err
	}

	usage, err := r.disk.GetUsage()
	if err != nil {
		return err
	}

	// Estimate how many bytes must go; re-statting the filesystem after
	// every unlink would defeat the monitor's cache
	excess := usage.UsedBytes - int64(float64(usage.TotalBytes)*r.disk.MaxUsagePercent()/100)

	var freed int64
	deleted := 0
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if freed >= excess {
			break
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			continue
		}
		freed += f.SizeBytes
		deleted++
	}

	if deleted > 0 {
		r.log.Warn("Deleted snapshots to reclaim disk space",
			"count", deleted,
			"freed_bytes", freed,
			"usage_percent", usage.UsagePercent)
		r.removeEmptyDirs()
	}
	return nil
}

// listSnapshots walks the base directory, oldest first
func (r *RetentionPolicy) listSnapshots() ([]SnapshotInfo, error) {
	var files []SnapshotInfo
	err := filepath.WalkDir(r.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".jpg") {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, SnapshotInfo{
			Path:      path,
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk snapshot directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// removeEmptyDirs prunes date directories left behind by deletions
func (r *RetentionPolicy) removeEmptyDirs() {
	var dirs []string
	filepath.WalkDir(r.baseDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != r.baseDir {
			dirs = append(dirs, path)
		}
		return nil
	})
	// Deepest first
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
}
