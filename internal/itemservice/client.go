package itemservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"claimscan/internal/config"
	"claimscan/internal/services"
)

// HTTPDoer describes the HTTP client used by the item service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the item service's answer to a claim or collect call.
type Result struct {
	Status string `json:"status"`
}

// Service defines the item operations consumed by the dispatcher.
type Service interface {
	CreateClaim(ctx context.Context, token, itemID string) (Result, error)
	CollectItem(ctx context.Context, token, itemID string) (Result, error)
}

// Client talks to the item service over HTTP.
type Client struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
}

// NewClient constructs an item service client from configuration.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil {
		return &Client{client: http.DefaultClient, timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.ItemService.BaseURL), "/"),
		client:  http.DefaultClient,
		timeout: time.Duration(cfg.ItemService.RequestTimeout) * time.Second,
	}
}

// NewClientWithDoer constructs a client with an explicit HTTP doer, used by tests.
func NewClientWithDoer(baseURL string, doer HTTPDoer, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  doer,
		timeout: timeout,
	}
}

// CreateClaim submits a claim for the item on behalf of the signed-in user.
func (c *Client) CreateClaim(ctx context.Context, token, itemID string) (Result, error) {
	body := map[string]string{"item_id": itemID}
	return c.post(ctx, token, "/api/claims", body)
}

// CollectItem marks a claimed item as collected.
func (c *Client) CollectItem(ctx context.Context, token, itemID string) (Result, error) {
	return c.post(ctx, token, fmt.Sprintf("/api/items/%s/collect", itemID), nil)
}

func (c *Client) post(ctx context.Context, token, path string, body map[string]string) (Result, error) {
	if c == nil || c.client == nil || c.baseURL == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "item-service", "request", "base URL not configured", nil)
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Result{}, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return Result{}, fmt.Errorf("build item service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "item-service", "request", "item service unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "item-service", "read response", "", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Result{}, services.Wrap(services.ErrUnauthenticated, "item-service", "request", serviceMessage(data, "session rejected"), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, services.Wrap(services.ErrActionFailed, "item-service", "request", serviceMessage(data, fmt.Sprintf("item service returned %d", resp.StatusCode)), nil)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, services.Wrap(services.ErrActionFailed, "item-service", "decode response", "malformed response body", err)
	}
	return result, nil
}

// serviceMessage pulls the error field out of a failure body when present.
func serviceMessage(data []byte, fallback string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
	}
	return fallback
}
