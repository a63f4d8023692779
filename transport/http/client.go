// Package http connects an extension to a host over HTTP: requests go out
// through a resty client and host notifications come in through a webhook.
package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url" split_words:"true"`
	Path    string        `json:"path" yaml:"path" split_words:"true"`
	Token   string        `json:"token" yaml:"token" split_words:"true"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" split_words:"true"`
	Retries int           `json:"retries" yaml:"retries" split_words:"true"`
}

// Client is an extension.Connection posting {id, action, payload} to the host
type Client struct {
	resty  *resty.Client
	path   string
	logger *zap.Logger
}

// NewClient creates a client
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Path == "" {
		config.Path = "/requests"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retries < 0 {
		return nil, fmt.Errorf("invalid retry count: %d", config.Retries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "extension-sdk-go/1.0")
	if config.Token != "" {
		client.SetAuthToken(config.Token)
	}

	return &Client{resty: client, path: config.Path, logger: logger}, nil
}

// SendRequest implements extension.Connection
func (c *Client) SendRequest(ctx context.Context, action string, payload interface{}) (*extension.Response, error) {
	req := extension.Request{ID: uuid.NewString(), Action: action, Payload: payload}

	var out extension.Response
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(c.path)
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", action, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sending %s: host returned %s", action, resp.Status())
	}

	if out.ID == "" {
		out.ID = req.ID
	}
	if out.ID != req.ID {
		return nil, fmt.Errorf("sending %s: response for request %s, expected %s", action, out.ID, req.ID)
	}
	if out.Error != "" {
		return &out, fmt.Errorf("sending %s: %s", action, out.Error)
	}

	c.logger.Debug("request sent", zap.String("action", action), zap.String("id", req.ID))
	return &out, nil
}
