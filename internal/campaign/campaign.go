// Package campaign is a small client for the campaign service that owns the
// posts whose captions capedit edits.
package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kobzarvs/capedit/internal/analysis"
)

const (
	defaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

type Brief struct {
	Overview       string   `json:"overview,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	BrandVoice     []string `json:"brand_voice,omitempty"`
	Guardrails     string   `json:"guardrails,omitempty"`
}

// Context converts the brief into the campaign_context of an analysis
// request. An empty brief yields nil.
func (b Brief) Context() *analysis.CampaignContext {
	if b.Overview == "" && b.TargetAudience == "" && len(b.BrandVoice) == 0 && b.Guardrails == "" {
		return nil
	}
	return &analysis.CampaignContext{
		Overview:       b.Overview,
		TargetAudience: b.TargetAudience,
		BrandVoice:     slices.Clone(b.BrandVoice),
		Guardrails:     b.Guardrails,
	}
}

type Post struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Title      string `json:"title"`
	Caption    string `json:"caption"`
}

type Campaign struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brief Brief  `json:"brief"`
	Posts []Post `json:"posts"`
}

// FindPost returns the post with the given id and the campaign holding it.
func FindPost(campaigns []Campaign, postID string) (Campaign, Post, bool) {
	for _, c := range campaigns {
		for _, p := range c.Posts {
			if p.ID == postID {
				return c, p, true
			}
		}
	}
	return Campaign{}, Post{}, false
}

// FindByName matches a campaign name case-insensitively.
func FindByName(campaigns []Campaign, name string) (Campaign, bool) {
	name = strings.TrimSpace(name)
	for _, c := range campaigns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Campaign{}, false
}

// APIError is a non-2xx answer from the campaign service.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	detail := strings.TrimSpace(e.Body)
	if detail == "" {
		detail = "request failed"
	}
	text := e.Status
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	// http.Response.Status already carries the code.
	text = strings.TrimSpace(strings.TrimPrefix(text, fmt.Sprint(e.StatusCode)))
	return fmt.Sprintf("%d %s: %s", e.StatusCode, text, detail)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(opts.BaseURL, "/"),
		hc:   opts.HTTPClient,
		log:  opts.Logger,
	}
}

// ListCampaigns fetches every campaign with its posts, newest post first.
func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var out struct {
		Campaigns []Campaign `json:"campaigns"`
	}
	if err := c.do(ctx, http.MethodGet, "/campaigns?include=posts", nil, &out); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	for i := range out.Campaigns {
		slices.Reverse(out.Campaigns[i].Posts)
	}
	c.log.Debug("campaigns loaded", zap.Int("count", len(out.Campaigns)))
	return out.Campaigns, nil
}

type PostUpdate struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// UpdatePost saves title and caption and returns the stored post.
func (c *Client) UpdatePost(ctx context.Context, id string, upd PostUpdate) (Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), upd, &out); err != nil {
		return Post{}, fmt.Errorf("update post %s: %w", id, err)
	}
	c.log.Info("post saved", zap.String("post_id", id), zap.Int("caption_len", len(upd.Caption)))
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("campaign request failed", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(detail)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
