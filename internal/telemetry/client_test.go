package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/config"
	"github.com/surfvision/camtuner/internal/logger"
)

type fakeBackend struct {
	caminfo  []map[string]interface{}
	statuses []map[string]string
	requests string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{requests: "[]"}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/caminfo", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		f.caminfo = append(f.caminfo, body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/apis/requests", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.requests))
	})
	mux.HandleFunc("/apis/requests/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.statuses = append(f.statuses, body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/apis/requests/response", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "camtuner", "edge-01", 2*time.Second, logger.NewNopLogger()), backend
}

func TestClientPostCameraInfo(t *testing.T) {
	client, backend := newTestClient(t)

	report := CameraReport{
		Site:      "rooftop",
		CameraID:  "cam-01",
		IP:        "192.168.1.50",
		Timestamp: time.Now(),
		Settings:  camera.Settings{ISO: 500, Aperture: "5.6", ShutterAngle: 180},
	}
	require.NoError(t, client.PostCameraInfo(context.Background(), report))

	require.Len(t, backend.caminfo, 1)
	assert.Equal(t, "cam-01", backend.caminfo[0]["camera_id"])
	assert.Equal(t, "rooftop", backend.caminfo[0]["site"])
}

func TestClientFetchRequests(t *testing.T) {
	client, backend := newTestClient(t)
	backend.requests = `[{"id":"req-1","service":"camtuner","host":"edge-01","command":"snapshot"}]`

	requests, err := client.FetchRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	assert.Equal(t, "snapshot", requests[0].Command)
}

func TestClientFetchRequestsMalformed(t *testing.T) {
	client, backend := newTestClient(t)
	backend.requests = `{"oops":true}`

	_, err := client.FetchRequests(context.Background())
	assert.Error(t, err)
}

func TestClientPostRequestStatus(t *testing.T) {
	client, backend := newTestClient(t)

	require.NoError(t, client.PostRequestStatus(context.Background(), "req-1", "done"))

	require.Len(t, backend.statuses, 1)
	assert.Equal(t, "req-1", backend.statuses[0]["id"])
	assert.Equal(t, "done", backend.statuses[0]["status"])
	assert.Equal(t, "camtuner", backend.statuses[0]["service"])
}

func TestClientBackendDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "camtuner", "edge-01", 200*time.Millisecond, logger.NewNopLogger())

	err := client.PostCameraInfo(context.Background(), CameraReport{CameraID: "cam-01"})
	assert.Error(t, err)
}

func TestCollectorUpdateAndReports(t *testing.T) {
	c := NewCollector("rooftop", nil)

	c.Update(CameraReport{CameraID: "cam-01"})
	c.Update(CameraReport{CameraID: "cam-02"})
	c.Update(CameraReport{CameraID: "cam-01", Applied: true})

	reports := c.Reports()
	assert.Len(t, reports, 2)

	report, ok := c.Report("cam-01")
	require.True(t, ok)
	assert.True(t, report.Applied)
	assert.Equal(t, "rooftop", report.Site)
	assert.False(t, report.Timestamp.IsZero())
}

func TestCollectorSystemReport(t *testing.T) {
	c := NewCollector("rooftop", nil)

	report := c.SystemReport()
	assert.Equal(t, "rooftop", report.Site)
	assert.Greater(t, report.Goroutines, 0)
	assert.Greater(t, report.HeapAllocBytes, uint64(0))
}

func TestSenderFlush(t *testing.T) {
	client, backend := newTestClient(t)

	collector := NewCollector("rooftop", nil)
	collector.Update(CameraReport{CameraID: "cam-01"})

	sender := NewSender(collector, client, config.TelemetryConfig{Enabled: true, Interval: time.Hour}, logger.NewNopLogger())
	sender.Flush(context.Background())

	// One camera report plus the system report
	assert.Len(t, backend.caminfo, 2)
}
