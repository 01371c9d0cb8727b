// Package analysis calls an external image-classification service that
// judges whether a submitted photo actually shows the completed task.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no analysis endpoint is set for the
// household.
var ErrNotConfigured = errors.New("analysis endpoint not configured")

// Result is the service's verdict on a photo.
type Result struct {
	IsValid    bool    `json:"is_valid"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

// Config holds analysis service configuration.
type Config struct {
	Endpoint string
	APIKey   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if an endpoint is set.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != ""
}

type analyzeRequest struct {
	PhotoURL string `json:"photo_url"`
	TaskType string `json:"task_type"`
}

// Analyze submits the photo URL and a task-type hint and returns the
// service's confidence verdict.
func (c *Client) Analyze(ctx context.Context, photoURL, taskType string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(analyzeRequest{PhotoURL: photoURL, TaskType: taskType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
