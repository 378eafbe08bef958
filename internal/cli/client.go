package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/me/shardsched/pkg/model"
)

// Client is an HTTP client for the scheduler API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a scheduler API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// apiResponse is the parsed envelope.
type apiResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *model.APIError `json:"error"`
}

// do performs an HTTP request and returns the status and raw body.
// Non-2xx responses are turned into errors, using the envelope's APIError
// when the server sent one.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	target := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		c.Logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Debug("HTTP request", "method", method, "url", target)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode >= 300 {
		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && apiResp.Error != nil {
			return resp.StatusCode, respBody, apiResp.Error
		}
		return resp.StatusCode, respBody, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp.StatusCode, respBody, nil
}

// Get performs a GET request against the enveloped API and returns the envelope.
func (c *Client) Get(ctx context.Context, path string) (*apiResponse, error) {
	_, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w\nbody: %s", err, string(body))
	}
	return &apiResp, nil
}

// Record reports one run of test that took seconds.
func (c *Client) Record(ctx context.Context, test string, seconds float64) error {
	path := fmt.Sprintf("/record/%s/%0.2f", url.PathEscape(test), seconds)
	_, _, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// Schedule returns the tests assigned to shard index of the run's plan.
func (c *Client) Schedule(ctx context.Context, runID string, shards, index int, tests []string) ([]string, error) {
	if tests == nil {
		tests = []string{}
	}
	path := fmt.Sprintf("/schedule/%s/%d/%d", url.PathEscape(runID), shards, index)
	_, body, err := c.do(ctx, http.MethodPost, path, model.ScheduleRequest{Tests: tests})
	if err != nil {
		return nil, err
	}
	var resp model.ScheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse schedule response: %w", err)
	}
	return resp.Tests, nil
}
