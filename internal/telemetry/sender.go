package telemetry

import (
	"context"
	"time"

	"github.com/surfvision/camtuner/internal/config"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/service"
)

// Sender periodically posts collected reports to the backend
type Sender struct {
	*service.ServiceBase
	collector *Collector
	client    *Client
	interval  time.Duration
	enabled   bool
	cancel    context.CancelFunc
}

// NewSender creates the telemetry sender service
func NewSender(collector *Collector, client *Client, cfg config.TelemetryConfig, log *logger.Logger) *Sender {
	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &Sender{
		ServiceBase: service.NewServiceBase("telemetry-sender", log),
		collector:   collector,
		client:      client,
		interval:    interval,
		enabled:     cfg.Enabled,
	}
}

// Start starts the reporting loop
func (s *Sender) Start(ctx context.Context) error {
	if !s.enabled {
		s.LogInfo("Telemetry transmission is disabled")
		s.GetStatus().SetStatus(service.StatusRunning)
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.reportLoop(loopCtx)

	s.GetStatus().SetStatus(service.StatusRunning)
	s.LogInfo("Telemetry sender started", "interval", s.interval.String())
	return nil
}

// Stop stops the reporting loop
func (s *Sender) Stop(ctx context.Context) error {
	s.GetStatus().SetStatus(service.StatusStopping)
	if s.cancel != nil {
		s.cancel()
	}
	s.GetStatus().SetStatus(service.StatusStopped)
	s.LogInfo("Telemetry sender stopped")
	return nil
}

func (s *Sender) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush posts everything the collector currently holds. Individual post
// failures are logged and skipped; the next tick retries with fresh data.
func (s *Sender) Flush(ctx context.Context) {
	for _, report := range s.collector.Reports() {
		if err := s.client.PostCameraInfo(ctx, report); err != nil {
			s.LogWarn("Failed to post camera report", "camera_id", report.CameraID, "error", err)
			continue
		}
		s.LogDebug("Posted camera report", "camera_id", report.CameraID)
	}

	if err := s.client.PostSystemInfo(ctx, s.collector.SystemReport()); err != nil {
		s.LogWarn("Failed to post system report", "error", err)
	}
}
