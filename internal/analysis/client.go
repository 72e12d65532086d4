package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	draftPath      = "/analysis/draft"
	defaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// AnalysisError is returned for non-2xx responses from the advisory service.
type AnalysisError struct {
	StatusCode int
	Body       string
}

func (e *AnalysisError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("analysis request failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("analysis request failed (%d): %s", e.StatusCode, body)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Client talks to the draft analysis endpoint.
type Client struct {
	url string
	hc  *http.Client
	log *zap.Logger
}

func New(opts Options) *Client {
	opts.defaults()
	return &Client{
		url: strings.TrimRight(opts.BaseURL, "/") + draftPath,
		hc:  opts.HTTPClient,
		log: opts.Logger,
	}
}

// Draft runs a non-persisted analysis of req. The returned spans are
// normalized (see Normalize).
func (c *Client) Draft(ctx context.Context, req DraftRequest) (DraftResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return DraftResponse{}, fmt.Errorf("encode draft request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return DraftResponse{}, fmt.Errorf("build draft request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return DraftResponse{}, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("analysis request failed",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))
		return DraftResponse{}, &AnalysisError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out DraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DraftResponse{}, fmt.Errorf("decode draft response: %w", err)
	}
	out.Spans = Normalize(out.Spans)
	c.log.Debug("analysis complete",
		zap.String("analysis_id", out.AnalysisID),
		zap.Int("spans", len(out.Spans)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
