package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/surfvision/camtuner/internal/advisor"
	"github.com/surfvision/camtuner/internal/analysis"
	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/config"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/service"
	"github.com/surfvision/camtuner/internal/state"
	"github.com/surfvision/camtuner/internal/storage"
	"github.com/surfvision/camtuner/internal/telemetry"
	"github.com/surfvision/camtuner/internal/video"
)

// offHoursCheckInterval is how often the loop re-checks the clock while
// outside operating hours
const offHoursCheckInterval = 5 * time.Minute

// TunerDeps bundles the shared components a camera tuner needs
type TunerDeps struct {
	Controller *camera.Controller
	Decoder    *video.Decoder
	Store      *storage.SnapshotStore
	State      *state.Manager
	Collector  *telemetry.Collector
	Logger     *logger.Logger
}

// Tuner runs the measure-decide-apply cycle for one camera
type Tuner struct {
	*service.ServiceBase
	cam      config.CameraConfig
	capture  config.CaptureConfig
	analyze  config.AnalysisConfig
	advise   config.AdvisorConfig
	deps     TunerDeps
	exposure *analysis.ExposureAnalyzer
	focus    *analysis.FocusAnalyzer
	adv      *advisor.Advisor
	cancel   context.CancelFunc

	// replaceable in tests
	now func() time.Time
}

// NewTuner creates the tuning service for one camera
func NewTuner(cam config.CameraConfig, cfg *config.Config, deps TunerDeps) *Tuner {
	return &Tuner{
		ServiceBase: service.NewServiceBase(fmt.Sprintf("tuner-%s", cam.ID), deps.Logger),
		cam:         cam,
		capture:     cfg.Capture,
		analyze:     cfg.Analysis,
		advise:      cfg.Advisor,
		deps:        deps,
		exposure:    analysis.NewExposureAnalyzer(cfg.Analysis.TargetBrightness),
		focus:       analysis.NewFocusAnalyzer(),
		adv: advisor.New(cfg.Analysis.TargetBrightness,
			cfg.Analysis.BrightnessTolerance, cfg.Advisor.SolarNoonHour),
		now: time.Now,
	}
}

// Start registers the camera and launches the tuning loop
func (t *Tuner) Start(ctx context.Context) error {
	t.GetStatus().SetStatus(service.StatusStarting)

	if err := t.deps.State.SaveCamera(ctx, state.CameraRecord{
		ID:      t.cam.ID,
		IP:      t.cam.IP,
		RTSPURL: t.cam.RTSPURL(),
	}); err != nil {
		return fmt.Errorf("failed to register camera %s: %w", t.cam.ID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.loop(loopCtx)

	t.GetStatus().SetStatus(service.StatusRunning)
	t.LogInfo("Camera tuner started", "camera_id", t.cam.ID, "url", t.cam.RTSPURL())
	return nil
}

// Stop cancels the tuning loop
func (t *Tuner) Stop(ctx context.Context) error {
	t.GetStatus().SetStatus(service.StatusStopping)
	if t.cancel != nil {
		t.cancel()
	}
	t.GetStatus().SetStatus(service.StatusStopped)
	t.LogInfo("Camera tuner stopped", "camera_id", t.cam.ID)
	return nil
}

func (t *Tuner) loop(ctx context.Context) {
	// First cycle runs immediately; failures only delay the next attempt
	for {
		if withinOperatingHours(t.now(), t.capture.StartHour, t.capture.EndHour) {
			if err := t.RunCycle(ctx); err != nil && ctx.Err() == nil {
				t.LogError("Tuning cycle failed", err, "camera_id", t.cam.ID)
				t.reportFailure(err)
			}
			if !sleepCtx(ctx, t.capture.Interval) {
				return
			}
			continue
		}

		t.LogDebug("Outside operating hours, idling", "camera_id", t.cam.ID)
		if !sleepCtx(ctx, offHoursCheckInterval) {
			return
		}
	}
}

// RunCycle performs one full pass: read settings, grab a keyframe, analyze
// it, decide, optionally apply, snapshot and record.
func (t *Tuner) RunCycle(ctx context.Context) error {
	current, err := t.deps.Controller.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("settings refresh: %w", err)
	}

	frame, method, err := t.captureFrame(ctx)
	if err != nil {
		return fmt.Errorf("frame capture: %w", err)
	}

	report := t.evaluate(frame, current)
	report.StreamMethod = string(method)

	applied := false
	if report.Recommendation != nil && t.advise.AutoAdjust &&
		report.Recommendation.ShouldApply(t.advise.ConfidenceThreshold) {
		if err := t.applyRecommendation(ctx, *report.Recommendation); err != nil {
			t.LogWarn("Failed to apply recommendation", "camera_id", t.cam.ID, "error", err)
		} else {
			applied = true
		}
	}
	report.Applied = applied
	t.publishDecision(report, applied)

	grid := t.focusGrid(frame)
	if info, err := t.deps.Store.Save(t.cam.ID, frame, grid); err != nil {
		t.LogWarn("Failed to save snapshot", "camera_id", t.cam.ID, "error", err)
	} else {
		report.SnapshotPath = info.Path
		t.PublishEvent(service.EventTypeSnapshotSaved, map[string]interface{}{
			"camera_id": t.cam.ID,
			"path":      info.Path,
		})
	}

	t.record(ctx, report, current)
	t.deps.Collector.Update(report)
	return nil
}

// captureFrame connects, waits for a keyframe, decodes it and tears the
// session down
func (t *Tuner) captureFrame(ctx context.Context) (*video.Frame, camera.ProbeMethod, error) {
	source := camera.NewSource(camera.SourceConfig{
		URL:             t.cam.RTSPURL(),
		ConnectTimeout:  t.capture.ConnectTimeout,
		ReadTimeout:     t.capture.ReadTimeout,
		MaxProbePackets: t.capture.MaxProbePackets,
	}, t.deps.Logger)

	if err := source.Connect(ctx); err != nil {
		return nil, "", err
	}
	defer source.Close()

	t.PublishEvent(service.EventTypeStreamConnected, map[string]interface{}{
		"camera_id": t.cam.ID,
		"method":    string(source.Method()),
	})

	annexB, err := source.CaptureKeyFrame(ctx)
	if err != nil {
		return nil, source.Method(), err
	}

	frame, err := t.deps.Decoder.DecodeKeyFrame(ctx, annexB)
	if err != nil {
		return nil, source.Method(), err
	}
	return frame, source.Method(), nil
}

// evaluate runs the analyzers and the advisor over one decoded frame
func (t *Tuner) evaluate(frame *video.Frame, current camera.Settings) telemetry.CameraReport {
	luma := frame.Luma()
	exposure := t.exposure.AnalyzeGray(luma, frame.Width, frame.Height)
	focus := t.focus.Analyze(luma, frame.Width, frame.Height)

	rec := t.adv.Recommend(exposure, advisor.Settings{
		ISO:          current.ISO,
		EVBias:       current.EVBias,
		Aperture:     current.Aperture,
		ShutterAngle: current.ShutterAngle,
	}, t.now())

	t.PublishEvent(service.EventTypeFrameAnalyzed, map[string]interface{}{
		"camera_id":      t.cam.ID,
		"exposure_score": exposure.Score,
		"focus_score":    focus.Score,
	})

	return telemetry.CameraReport{
		CameraID:       t.cam.ID,
		IP:             t.cam.IP,
		Timestamp:      t.now(),
		Settings:       current,
		CameraStatus:   t.deps.Controller.Status(),
		Exposure:       &exposure,
		Focus:          &focus,
		Recommendation: &rec,
	}
}

func (t *Tuner) applyRecommendation(ctx context.Context, rec advisor.Recommendation) error {
	return t.deps.Controller.ApplySettings(ctx, camera.Settings{
		ISO:          rec.ISO,
		EVBias:       rec.EVBias,
		Aperture:     rec.Aperture,
		ShutterAngle: rec.ShutterAngle,
	})
}

func (t *Tuner) focusGrid(frame *video.Frame) *analysis.FocusGrid {
	rows, cols := t.analyze.FocusGridRows, t.analyze.FocusGridCols
	if rows <= 0 || cols <= 0 {
		return nil
	}
	grid := t.focus.Grid(frame.Luma(), frame.Width, frame.Height, rows, cols)
	return &grid
}

func (t *Tuner) publishDecision(report telemetry.CameraReport, applied bool) {
	rec := report.Recommendation
	if rec == nil || len(rec.Reasons) == 0 {
		return
	}
	eventType := service.EventTypeSettingsRejected
	if applied {
		eventType = service.EventTypeSettingsApplied
	}
	t.PublishEvent(eventType, map[string]interface{}{
		"camera_id":  t.cam.ID,
		"confidence": rec.Confidence,
		"reasons":    rec.Reasons,
	})
}

// record persists the cycle's sample and, when the advisor proposed
// something, the adjustment decision
func (t *Tuner) record(ctx context.Context, report telemetry.CameraReport, before camera.Settings) {
	if _, err := t.deps.State.RecordSample(ctx, state.MetricSample{
		CameraID:          t.cam.ID,
		TakenAt:           report.Timestamp,
		MeanBrightness:    report.Exposure.MeanBrightness,
		Contrast:          report.Exposure.Contrast,
		ClippedHighlights: report.Exposure.ClippedHighlights,
		ClippedShadows:    report.Exposure.ClippedShadows,
		ExposureScore:     report.Exposure.Score,
		Sharpness:         report.Focus.Sharpness,
		FocusScore:        report.Focus.Score,
		SnapshotPath:      report.SnapshotPath,
	}); err != nil {
		t.LogWarn("Failed to record sample", "camera_id", t.cam.ID, "error", err)
	}

	rec := report.Recommendation
	if rec != nil && len(rec.Reasons) > 0 {
		if _, err := t.deps.State.RecordAdjustment(ctx, state.AdjustmentRecord{
			CameraID:     t.cam.ID,
			DecidedAt:    report.Timestamp,
			ISOFrom:      before.ISO,
			ISOTo:        rec.ISO,
			EVFrom:       before.EVBias,
			EVTo:         rec.EVBias,
			ApertureFrom: before.Aperture,
			ApertureTo:   rec.Aperture,
			ShutterFrom:  before.ShutterAngle,
			ShutterTo:    rec.ShutterAngle,
			Confidence:   rec.Confidence,
			Reasons:      rec.Reasons,
			Applied:      report.Applied,
		}); err != nil {
			t.LogWarn("Failed to record adjustment", "camera_id", t.cam.ID, "error", err)
		}
	}

	if err := t.deps.State.UpdateCameraLastSeen(ctx, t.cam.ID); err != nil {
		t.LogWarn("Failed to update camera last seen", "camera_id", t.cam.ID, "error", err)
	}
}

func (t *Tuner) reportFailure(err error) {
	t.deps.Collector.Update(telemetry.CameraReport{
		CameraID:  t.cam.ID,
		IP:        t.cam.IP,
		Timestamp: t.now(),
		Settings:  t.deps.Controller.Settings(),
		Error:     err.Error(),
	})
	t.PublishEvent(service.EventTypeStreamDisconnected, map[string]interface{}{
		"camera_id": t.cam.ID,
		"reason":    err.Error(),
	})
}

// withinOperatingHours reports whether hour falls in [start, end)
func withinOperatingHours(now time.Time, startHour, endHour int) bool {
	if startHour == endHour {
		return true
	}
	h := now.Hour()
	if startHour < endHour {
		return h >= startHour && h < endHour
	}
	// Window wraps midnight
	return h >= startHour || h < endHour
}

// sleepCtx sleeps for d, returning false when the context is cancelled
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
