package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to an Ollama compatible generation API.
type Client struct {
	http         *resty.Client
	model        string
	probeTimeout time.Duration
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, model: cfg.Model, probeTimeout: cfg.ProbeTimeout}
}

// Generate returns the raw completion text. Temperature is pinned to zero so repeated
// analyses of unchanged fundamentals stay stable.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:   c.model,
			Prompt:  prompt,
			Stream:  false,
			Options: map[string]any{"temperature": 0},
		}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("%w: generate: %v", ErrAnalysisUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: generate: status %d: %s", ErrAnalysisUnavailable, resp.StatusCode(), truncate(resp.String(), 512))
	}
	return out.Response, nil
}

// Ping checks reachability without side effects.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.tags(ctx)
	return err
}

// Models lists the model names installed on the backend.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	tags, err := c.tags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) tags(ctx context.Context) (*tagsResponse, error) {
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	var out tagsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/tags")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrAnalysisUnavailable, resp.StatusCode())
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
