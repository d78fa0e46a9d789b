package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claimscan/internal/api"
	"claimscan/internal/config"
)

// ErrDaemonUnreachable indicates the daemon API did not answer at all.
var ErrDaemonUnreachable = errors.New("claimscan daemon is not reachable (is claimscand running?)")

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a client from the daemon's configured bind address.
func New(cfg *config.Config) *Client {
	bind := "127.0.0.1:7519"
	token := ""
	if cfg != nil {
		if value := strings.TrimSpace(cfg.API.Bind); value != "" {
			bind = value
		}
		token = strings.TrimSpace(cfg.API.Token)
	}
	return &Client{
		baseURL: "http://" + bind,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithBase constructs a client against an explicit base URL, used by tests.
func NewWithBase(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// Devices enumerates attached cameras.
func (c *Client) Devices(ctx context.Context) ([]api.CameraDevice, error) {
	var out api.DeviceListResponse
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// OpenScanner opens the scanner on the given device (empty selects the default).
func (c *Client) OpenScanner(ctx context.Context, device string) (api.ScannerStatus, error) {
	var out api.ScannerStatus
	err := c.do(ctx, http.MethodPost, "/api/scanner/open", api.OpenScannerRequest{Device: device}, &out)
	return out, err
}

// CloseScanner closes the scanner and releases the camera.
func (c *Client) CloseScanner(ctx context.Context) (api.ScannerStatus, error) {
	var out api.ScannerStatus
	err := c.do(ctx, http.MethodPost, "/api/scanner/close", nil, &out)
	return out, err
}

// SwitchDevice moves the open scanner to another camera.
func (c *Client) SwitchDevice(ctx context.Context, device string) (api.ScannerStatus, error) {
	var out api.ScannerStatus
	err := c.do(ctx, http.MethodPost, "/api/scanner/device", api.OpenScannerRequest{Device: device}, &out)
	return out, err
}

// SetMode switches between claim and collect dispatch.
func (c *Client) SetMode(ctx context.Context, mode string) (api.ScannerStatus, error) {
	var out api.ScannerStatus
	err := c.do(ctx, http.MethodPost, "/api/scanner/mode", api.ModeRequest{Mode: mode}, &out)
	return out, err
}

// Submit routes a manual payload through the daemon's dispatch pipeline.
func (c *Client) Submit(ctx context.Context, payload string) (api.Attempt, error) {
	var out api.SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/submit", api.SubmitRequest{Payload: payload}, &out)
	return out.Attempt, err
}

// Attempts lists recorded attempts, newest first.
func (c *Client) Attempts(ctx context.Context, limit int, statuses ...string) ([]api.Attempt, error) {
	path := "/api/attempts"
	params := make([]string, 0, len(statuses)+1)
	if limit > 0 {
		params = append(params, "limit="+strconv.Itoa(limit))
	}
	for _, status := range statuses {
		params = append(params, "status="+status)
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	var out api.AttemptListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}

// Attempt fetches a single attempt by identifier.
func (c *Client) Attempt(ctx context.Context, id string) (api.Attempt, error) {
	var out api.AttemptResponse
	err := c.do(ctx, http.MethodGet, "/api/attempts/"+id, nil, &out)
	return out.Attempt, err
}

// ClearAttempts deletes the recorded attempt history.
func (c *Client) ClearAttempts(ctx context.Context) (int64, error) {
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/attempts", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(apiErrorMessage(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("daemon API error (%d)", resp.StatusCode)
}
