package camera

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfvision/camtuner/internal/logger"
)

// fakeCamera emulates the firmware's /ctrl API
type fakeCamera struct {
	values   map[string]string
	rejected map[string]bool
	setCalls []string
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		values: map[string]string{
			"iso":           "500",
			"ev":            "0.0",
			"iris":          "5.6",
			"shutter_angle": "180",
			"wb":            "auto",
			"focus":         "MF",
			"rec":           "stop",
			"battery":       "87",
		},
		rejected: map[string]bool{},
	}
}

func (f *fakeCamera) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ctrl/get", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("k")
		value, ok := f.values[key]
		if !ok {
			fmt.Fprintf(w, `{"code":1,"desc":"unknown key","key":%q}`, key)
			return
		}
		fmt.Fprintf(w, `{"code":0,"desc":"ok","key":%q,"value":%q,"opts":["500","2500"]}`, key, value)
	})
	mux.HandleFunc("/ctrl/set", func(w http.ResponseWriter, r *http.Request) {
		for key, vals := range r.URL.Query() {
			f.setCalls = append(f.setCalls, key+"="+vals[0])
			if f.rejected[key] {
				fmt.Fprintf(w, `{"code":1,"desc":"rejected","key":%q}`, key)
				return
			}
			f.values[key] = vals[0]
		}
		fmt.Fprint(w, `{"code":0,"desc":"ok"}`)
	})
	return mux
}

func newTestController(t *testing.T) (*Controller, *fakeCamera) {
	t.Helper()
	cam := newFakeCamera()
	srv := httptest.NewServer(cam.handler())
	t.Cleanup(srv.Close)
	return NewController(srv.URL, 2*time.Second, logger.NewNopLogger()), cam
}

func TestControllerGet(t *testing.T) {
	ctrl, _ := newTestController(t)

	value, err := ctrl.Get(context.Background(), "iso")
	require.NoError(t, err)
	assert.Equal(t, "500", value)
}

func TestControllerGetWithOptions(t *testing.T) {
	ctrl, _ := newTestController(t)

	value, opts, err := ctrl.GetWithOptions(context.Background(), "iso")
	require.NoError(t, err)
	assert.Equal(t, "500", value)
	assert.Equal(t, []string{"500", "2500"}, opts)
}

func TestControllerGetUnknownKey(t *testing.T) {
	ctrl, _ := newTestController(t)

	_, err := ctrl.Get(context.Background(), "bogus")
	assert.Error(t, err)
}

func TestControllerSetUpdatesCache(t *testing.T) {
	ctrl, cam := newTestController(t)

	require.NoError(t, ctrl.Set(context.Background(), "iso", "2500"))
	assert.Equal(t, 2500, ctrl.Settings().ISO)
	assert.Equal(t, "2500", cam.values["iso"])
}

func TestControllerRejectedSetLeavesCacheUnchanged(t *testing.T) {
	ctrl, cam := newTestController(t)

	_, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500, ctrl.Settings().ISO)

	cam.rejected["iso"] = true
	err = ctrl.Set(context.Background(), "iso", "2500")
	assert.Error(t, err)
	assert.Equal(t, 500, ctrl.Settings().ISO)
}

func TestControllerRefresh(t *testing.T) {
	ctrl, _ := newTestController(t)

	settings, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 500, settings.ISO)
	assert.Equal(t, 0.0, settings.EVBias)
	assert.Equal(t, "5.6", settings.Aperture)
	assert.Equal(t, 180, settings.ShutterAngle)
	assert.Equal(t, "auto", settings.WhiteBalance)
	assert.Equal(t, 87, ctrl.Status().BatteryPercent)
	assert.True(t, ctrl.Status().Reachable)
}

func TestControllerRecordingToggle(t *testing.T) {
	ctrl, cam := newTestController(t)

	_, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, ctrl.Status().Recording)

	require.NoError(t, ctrl.StartRecording(context.Background()))
	assert.True(t, ctrl.Status().Recording)
	assert.Equal(t, "start", cam.values["rec"])

	require.NoError(t, ctrl.StopRecording(context.Background()))
	assert.False(t, ctrl.Status().Recording)
	assert.Equal(t, "stop", cam.values["rec"])
}

func TestControllerRefreshSkipsMalformedField(t *testing.T) {
	ctrl, cam := newTestController(t)

	_, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 180, ctrl.Settings().ShutterAngle)

	// Firmware glitch: shutter_angle turns non-numeric
	cam.values["shutter_angle"] = "???"
	settings, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180, settings.ShutterAngle)
}

func TestControllerRefreshUnreachable(t *testing.T) {
	ctrl := NewController("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNopLogger())

	_, err := ctrl.Refresh(context.Background())
	assert.Error(t, err)
	assert.False(t, ctrl.Status().Reachable)
}

func TestControllerApplySettingsOnlyWritesChanges(t *testing.T) {
	ctrl, cam := newTestController(t)

	_, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)

	cam.setCalls = nil
	desired := ctrl.Settings()
	desired.ISO = 2500
	desired.ShutterAngle = 270

	require.NoError(t, ctrl.ApplySettings(context.Background(), desired))
	assert.Equal(t, []string{"iso=2500", "shutter_angle=270"}, cam.setCalls)
	assert.Equal(t, 2500, ctrl.Settings().ISO)
	assert.Equal(t, 270, ctrl.Settings().ShutterAngle)
}

func TestDecodeCtrlValue(t *testing.T) {
	v, err := decodeCtrlValue([]byte(`"2500"`))
	require.NoError(t, err)
	assert.Equal(t, "2500", v)

	v, err = decodeCtrlValue([]byte(`2500`))
	require.NoError(t, err)
	assert.Equal(t, "2500", v)

	_, err = decodeCtrlValue([]byte(`{"nested":true}`))
	assert.Error(t, err)

	_, err = decodeCtrlValue(nil)
	assert.Error(t, err)
}
