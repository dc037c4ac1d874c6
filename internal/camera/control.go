package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// Controller is the HTTP client for the camera's /ctrl API. It keeps a
// cached copy of the last settings read; a failed set or a malformed field
// never touches the cache.
type Controller struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger

	mu       sync.RWMutex
	settings Settings
	status   Status
}

// ctrlResponse is the camera's reply envelope. Value arrives as a string
// for some keys and a number for others, so it stays raw until parsed.
type ctrlResponse struct {
	Code  int             `json:"code"`
	Desc  string          `json:"desc"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Opts  []string        `json:"opts"`
}

// NewController creates a control client for the camera at baseURL
// (e.g. http://192.168.1.50)
func NewController(baseURL string, timeout time.Duration, log *logger.Logger) *Controller {
	return &Controller{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Get reads a single control value from the camera
func (c *Controller) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.query(ctx, fmt.Sprintf("%s/ctrl/get?k=%s", c.baseURL, url.QueryEscape(key)))
	if err != nil {
		return "", err
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("camera rejected get %s: code=%d desc=%s", key, resp.Code, resp.Desc)
	}
	return decodeCtrlValue(resp.Value)
}

// GetWithOptions reads a control value along with the camera's accepted
// values for that key
func (c *Controller) GetWithOptions(ctx context.Context, key string) (string, []string, error) {
	resp, err := c.query(ctx, fmt.Sprintf("%s/ctrl/get?k=%s", c.baseURL, url.QueryEscape(key)))
	if err != nil {
		return "", nil, err
	}
	if resp.Code != 0 {
		return "", nil, fmt.Errorf("camera rejected get %s: code=%d desc=%s", key, resp.Code, resp.Desc)
	}
	value, err := decodeCtrlValue(resp.Value)
	if err != nil {
		return "", nil, err
	}
	return value, resp.Opts, nil
}

// Set writes a single control value. The camera's settings cache is updated
// only when the camera confirms the write.
func (c *Controller) Set(ctx context.Context, key, value string) error {
	resp, err := c.query(ctx, fmt.Sprintf("%s/ctrl/set?%s=%s", c.baseURL, url.QueryEscape(key), url.QueryEscape(value)))
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("camera rejected set %s=%s: code=%d desc=%s", key, value, resp.Code, resp.Desc)
	}

	c.mu.Lock()
	c.applyToCache(key, value)
	c.status.LastContact = time.Now()
	c.status.Reachable = true
	c.mu.Unlock()
	return nil
}

// Refresh reads the full settings set from the camera. Individual fields
// that fail to read or parse are skipped, keeping their cached value; the
// call errors only when the camera is unreachable for every field.
func (c *Controller) Refresh(ctx context.Context) (Settings, error) {
	keys := []string{
		KeyISO, KeyEVBias, KeyAperture, KeyShutterAngle,
		KeyWhiteBalance, KeyFocusMethod, KeyRec, KeyBattery, KeyCardFree,
	}

	fetched := 0
	for _, key := range keys {
		value, err := c.Get(ctx, key)
		if err != nil {
			c.log.Debug("Skipping unreadable camera field", "key", key, "error", err)
			continue
		}
		fetched++

		c.mu.Lock()
		c.applyToCache(key, value)
		c.mu.Unlock()
	}

	c.mu.Lock()
	if fetched > 0 {
		c.status.LastContact = time.Now()
		c.status.Reachable = true
	} else {
		c.status.Reachable = false
	}
	settings := c.settings
	c.mu.Unlock()

	if fetched == 0 {
		return settings, fmt.Errorf("camera unreachable at %s", c.baseURL)
	}
	return settings, nil
}

// ApplySettings writes every field of desired that differs from the cached
// settings, in a fixed order. It stops at the first rejected write so a
// partial application is visible in the returned error.
func (c *Controller) ApplySettings(ctx context.Context, desired Settings) error {
	current := c.Settings()

	type change struct {
		key   string
		value string
	}
	var changes []change
	if desired.ISO != 0 && desired.ISO != current.ISO {
		changes = append(changes, change{KeyISO, strconv.Itoa(desired.ISO)})
	}
	if desired.EVBias != current.EVBias {
		changes = append(changes, change{KeyEVBias, strconv.FormatFloat(desired.EVBias, 'f', 1, 64)})
	}
	if desired.Aperture != "" && desired.Aperture != current.Aperture {
		changes = append(changes, change{KeyAperture, desired.Aperture})
	}
	if desired.ShutterAngle != 0 && desired.ShutterAngle != current.ShutterAngle {
		changes = append(changes, change{KeyShutterAngle, strconv.Itoa(desired.ShutterAngle)})
	}

	for _, ch := range changes {
		if err := c.Set(ctx, ch.key, ch.value); err != nil {
			return fmt.Errorf("failed to apply %s=%s: %w", ch.key, ch.value, err)
		}
		c.log.Info("Camera setting applied", "key", ch.key, "value", ch.value)
	}
	return nil
}

// StartRecording toggles the camera's recorder on
func (c *Controller) StartRecording(ctx context.Context) error {
	return c.Set(ctx, KeyRec, "start")
}

// StopRecording toggles the camera's recorder off
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.Set(ctx, KeyRec, "stop")
}

// Settings returns the cached settings from the last successful read
func (c *Controller) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Status returns the cached camera status
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// BaseURL returns the camera's control endpoint base
func (c *Controller) BaseURL() string {
	return c.baseURL
}

// applyToCache parses a confirmed value into the cached settings. Values
// that do not parse for their key are dropped. Callers hold c.mu.
func (c *Controller) applyToCache(key, value string) {
	switch key {
	case KeyISO:
		if iso, err := strconv.Atoi(value); err == nil {
			c.settings.ISO = iso
		}
	case KeyEVBias:
		if ev, err := strconv.ParseFloat(value, 64); err == nil {
			c.settings.EVBias = ev
		}
	case KeyAperture:
		c.settings.Aperture = value
	case KeyShutterAngle:
		if angle, err := strconv.Atoi(value); err == nil {
			c.settings.ShutterAngle = angle
		}
	case KeyWhiteBalance:
		c.settings.WhiteBalance = value
	case KeyFocusMethod:
		c.settings.FocusMethod = value
	case KeyRec:
		c.status.Recording = value == "start" || value == "recording"
	case KeyBattery:
		if pct, err := strconv.Atoi(value); err == nil {
			c.status.BatteryPercent = pct
		}
	case KeyCardFree:
		if mb, err := strconv.ParseInt(value, 10, 64); err == nil {
			c.status.CardFreeMB = mb
		}
	}
}

func (c *Controller) query(ctx context.Context, rawURL string) (*ctrlResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markUnreachable()
		return nil, fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read camera response: %w", err)
	}

	var parsed ctrlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed camera response: %w", err)
	}
	return &parsed, nil
}

func (c *Controller) markUnreachable() {
	c.mu.Lock()
	c.status.Reachable = false
	c.mu.Unlock()
}

// decodeCtrlValue normalizes the camera's value field, which may arrive as
// a JSON string or a bare number
func decodeCtrlValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty value")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("unparseable value %q", string(raw))
}
