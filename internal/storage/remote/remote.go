// Package remote is the authenticated backend: a JSON-over-HTTP client for
// the record service in internal/records, keyed by the user identity.
package remote

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

	"sakinah/internal/model"
	"sakinah/internal/storage"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Client struct {
	baseURL string
	client  *http.Client
}

type apiError struct {
	Error string `json:"error"`
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

func (c *Client) ReadTasks(ctx context.Context, id model.Identity) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, id, "tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (c *Client) WriteTasks(ctx context.Context, id model.Identity, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return c.do(ctx, http.MethodPut, id, "tasks", tasks, nil)
}

func (c *Client) ReadStreak(ctx context.Context, id model.Identity) (model.StreakState, error) {
	var st model.StreakState
	if err := c.do(ctx, http.MethodGet, id, "streak", nil, &st); err != nil {
		return model.StreakState{}, err
	}
	st.Normalize()
	return st, nil
}

func (c *Client) WriteStreak(ctx context.Context, id model.Identity, state model.StreakState) error {
	return c.do(ctx, http.MethodPut, id, "streak", state, nil)
}

func (c *Client) do(ctx context.Context, method string, id model.Identity, resource string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("remote base url not configured")
	}
	if id.Anonymous() {
		return fmt.Errorf("remote store requires an authenticated identity")
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/%s", c.baseURL, url.PathEscape(id.UserID), resource)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", resource, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id.Token != "" {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, resource, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, resource, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}
