package telemetry

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/storage"
)

// Collector aggregates the latest per-camera reports for the sender and
// the web API. The capture loop updates it after every cycle.
type Collector struct {
	site    string
	host    string
	disk    *storage.DiskMonitor
	started time.Time

	mu      sync.RWMutex
	reports map[string]CameraReport
}

// NewCollector creates a collector for the given site
func NewCollector(site string, disk *storage.DiskMonitor) *Collector {
	host, _ := os.Hostname()
	return &Collector{
		site:    site,
		host:    host,
		disk:    disk,
		started: time.Now(),
		reports: make(map[string]CameraReport),
	}
}

// Update stores a camera's latest report
func (c *Collector) Update(report CameraReport) {
	report.Site = c.site
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}

	c.mu.Lock()
	c.reports[report.CameraID] = report
	c.mu.Unlock()
}

// Report returns the latest report for one camera
func (c *Collector) Report(cameraID string) (CameraReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	report, ok := c.reports[cameraID]
	return report, ok
}

// Reports returns the latest report for every camera
func (c *Collector) Reports() []CameraReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CameraReport, 0, len(c.reports))
	for _, report := range c.reports {
		out = append(out, report)
	}
	return out
}

// SystemReport builds the appliance-level report
func (c *Collector) SystemReport() SystemReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := SystemReport{
		Site:           c.site,
		Hostname:       c.host,
		Timestamp:      time.Now(),
		UptimeSeconds:  time.Since(c.started).Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}

	if c.disk != nil {
		if usage, err := c.disk.GetUsage(); err == nil {
			report.DiskUsagePct = usage.UsagePercent
		}
	}
	return report
}
