package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfvision/camtuner/internal/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSystemStateRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveSystemState(ctx, "last_cycle", "2025-06-15T10:00:00Z"))

	value, err := m.GetSystemState(ctx, "last_cycle")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15T10:00:00Z", value)

	// Upsert overwrites
	require.NoError(t, m.SaveSystemState(ctx, "last_cycle", "updated"))
	value, err = m.GetSystemState(ctx, "last_cycle")
	require.NoError(t, err)
	assert.Equal(t, "updated", value)
}

func TestSystemStateMissingKey(t *testing.T) {
	m := newTestManager(t)

	value, err := m.GetSystemState(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCameraSaveAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cam := CameraRecord{
		ID:      "cam-01",
		IP:      "192.168.1.50",
		RTSPURL: "rtsp://192.168.1.50/live_stream",
	}
	require.NoError(t, m.SaveCamera(ctx, cam))

	got, err := m.GetCamera(ctx, "cam-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cam.IP, got.IP)
	assert.Nil(t, got.LastSeen)

	require.NoError(t, m.UpdateCameraLastSeen(ctx, "cam-01"))
	got, err = m.GetCamera(ctx, "cam-01")
	require.NoError(t, err)
	assert.NotNil(t, got.LastSeen)
}

func TestCameraGetUnknown(t *testing.T) {
	m := newTestManager(t)

	got, err := m.GetCamera(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListCameras(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveCamera(ctx, CameraRecord{ID: "cam-02", IP: "10.0.0.2", RTSPURL: "rtsp://10.0.0.2/live_stream"}))
	require.NoError(t, m.SaveCamera(ctx, CameraRecord{ID: "cam-01", IP: "10.0.0.1", RTSPURL: "rtsp://10.0.0.1/live_stream"}))

	cameras, err := m.ListCameras(ctx)
	require.NoError(t, err)
	require.Len(t, cameras, 2)
	assert.Equal(t, "cam-01", cameras[0].ID)
	assert.Equal(t, "cam-02", cameras[1].ID)
}

func TestRecordAndQuerySamples(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveCamera(ctx, CameraRecord{ID: "cam-01", IP: "10.0.0.1", RTSPURL: "rtsp://10.0.0.1/live_stream"}))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := m.RecordSample(ctx, MetricSample{
			CameraID:       "cam-01",
			TakenAt:        base.Add(time.Duration(i) * time.Minute),
			MeanBrightness: 120 + float64(i),
			ExposureScore:  80,
			FocusScore:     65,
		})
		require.NoError(t, err)
	}

	samples, err := m.RecentSamples(ctx, "cam-01", 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	// Most recent first
	assert.InDelta(t, 122, samples[0].MeanBrightness, 0.01)
	assert.InDelta(t, 121, samples[1].MeanBrightness, 0.01)
}

func TestRecordAndQueryAdjustments(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveCamera(ctx, CameraRecord{ID: "cam-01", IP: "10.0.0.1", RTSPURL: "rtsp://10.0.0.1/live_stream"}))

	id, err := m.RecordAdjustment(ctx, AdjustmentRecord{
		CameraID:   "cam-01",
		DecidedAt:  time.Now(),
		ISOFrom:    500,
		ISOTo:      2500,
		Confidence: 0.8,
		Reasons:    []string{"image too dark, switching to high native ISO 2500"},
		Applied:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	adjustments, err := m.RecentAdjustments(ctx, "cam-01", 10)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)

	adj := adjustments[0]
	assert.Equal(t, 500, adj.ISOFrom)
	assert.Equal(t, 2500, adj.ISOTo)
	assert.True(t, adj.Applied)
	require.Len(t, adj.Reasons, 1)
	assert.Contains(t, adj.Reasons[0], "too dark")
}
