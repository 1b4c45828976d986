// Package contentsafety talks to the external moderation API used to screen
// new threads.
package contentsafety

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

	"lionboard/internal/observability"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/moderations"
	DefaultModel    = "omni-moderation-latest"
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 512
)

// Result is the classification of one input.
type Result struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
}

// Screener classifies text. Implemented by *Client and by test fakes.
type Screener interface {
	Screen(ctx context.Context, text string) (*Result, error)
	Configured() bool
}

// Options configures a Client.
type Options struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client calls the moderation endpoint over HTTP.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	http     *http.Client
}

// NewClient builds a client; empty fields fall back to the defaults.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:   strings.TrimSpace(opts.APIKey),
		endpoint: opts.Endpoint,
		model:    opts.Model,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// Screen submits text and returns the first result.
func (c *Client) Screen(ctx context.Context, text string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrMissingCredential
	}

	payload, err := json.Marshal(moderationRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, &ExternalServiceError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ExternalServiceError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ModerationAPILatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, &ExternalServiceError{Op: "call", Err: err}
	}
	defer resp.Body.Close()
	observability.ModerationAPILatency.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ExternalServiceError{
			Op:         "call",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	var decoded moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ExternalServiceError{Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	if len(decoded.Results) == 0 {
		return nil, &ExternalServiceError{Op: "decode", StatusCode: resp.StatusCode, Err: errors.New("response has no results")}
	}

	first := decoded.Results[0]
	return &Result{
		Flagged:        first.Flagged,
		Categories:     first.Categories,
		CategoryScores: first.CategoryScores,
	}, nil
}
