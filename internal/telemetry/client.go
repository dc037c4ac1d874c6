package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// Backend endpoint paths
const (
	pathCameraInfo      = "/api/caminfo"
	pathRequests        = "/apis/requests"
	pathRequestStatus   = "/apis/requests/status"
	pathRequestResponse = "/apis/requests/response"
)

// Client talks JSON over HTTP to the operator backend
type Client struct {
	baseURL    string
	service    string
	host       string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a backend client. service and host identify this
// appliance in the backend's request queue.
func NewClient(baseURL, service, host string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: service,
		host:    host,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// PostCameraInfo uploads one camera report
func (c *Client) PostCameraInfo(ctx context.Context, report CameraReport) error {
	return c.postJSON(ctx, pathCameraInfo, report)
}

// PostSystemInfo uploads an appliance-level report
func (c *Client) PostSystemInfo(ctx context.Context, report SystemReport) error {
	return c.postJSON(ctx, pathCameraInfo, report)
}

// FetchRequests pulls pending commands addressed to this appliance
func (c *Client) FetchRequests(ctx context.Context) ([]BackendRequest, error) {
	endpoint := fmt.Sprintf("%s%s?service=%s&host=%s",
		c.baseURL, pathRequests,
		url.QueryEscape(c.service), url.QueryEscape(c.host))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	var requests []BackendRequest
	if err := json.Unmarshal(body, &requests); err != nil {
		return nil, fmt.Errorf("malformed backend response: %w", err)
	}
	return requests, nil
}

// PostRequestStatus acknowledges a command's processing state
func (c *Client) PostRequestStatus(ctx context.Context, requestID, status string) error {
	return c.postJSON(ctx, pathRequestStatus, map[string]string{
		"id":      requestID,
		"service": c.service,
		"host":    c.host,
		"status":  status,
	})
}

// PostRequestResponse uploads a command's result payload
func (c *Client) PostRequestResponse(ctx context.Context, requestID string, payload interface{}) error {
	return c.postJSON(ctx, pathRequestResponse, map[string]interface{}{
		"id":       requestID,
		"service":  c.service,
		"host":     c.host,
		"response": payload,
	})
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend rejected %s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}
