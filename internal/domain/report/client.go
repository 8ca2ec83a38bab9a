// Package report submits completed accident reports to the insurer backend.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dabform/dabform/internal/platform/auth"
)

// Client is a thin wrapper around the insurer backend's REST API. The
// caller's bearer token is forwarded on every request, so the backend sees
// the original physician identity.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type idResponse struct {
	ID int64 `json:"id"`
}

func (c *Client) CreatePatient(ctx context.Context, p *PatientPayload) (int64, error) {
	var res idResponse
	if err := c.do(ctx, http.MethodPost, "/patients", p, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (c *Client) UpdatePatient(ctx context.Context, id int64, p *PatientPayload) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/patients/%d", id), p, nil)
}

func (c *Client) CreateReport(ctx context.Context, r *ReportPayload) (int64, error) {
	var res idResponse
	if err := c.do(ctx, http.MethodPost, "/reports", r, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (c *Client) UpdateReport(ctx context.Context, id int64, r *ReportPayload) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/reports/%d", id), r, nil)
}

func (c *Client) FinalizeReport(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/reports/%d/finalize", id), nil, nil)
}

func (c *Client) GenerateDocument(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/reports/%d/document", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read at most 1KB of the error body for context.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: backend returned %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
