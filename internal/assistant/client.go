package assistant

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

	"github.com/camomilehq/roombot/pkg/logging"
)

const (
	defaultTimeout = 30 * time.Second
	defaultVersion = "2018-02-16"
)

// Client calls the Watson-Assistant-style workspace message endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	version     string
	workspaceID string
	httpClient  *http.Client
	logger      *logging.Logger
}

// Config controls how the assistant client behaves.
type Config struct {
	BaseURL     string
	APIKey      string
	Version     string
	WorkspaceID string
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// New creates a configured assistant client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("assistant: base URL is required")
	}
	if strings.TrimSpace(cfg.WorkspaceID) == "" {
		return nil, fmt.Errorf("assistant: workspace id is required")
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		version:     version,
		workspaceID: cfg.WorkspaceID,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

type messagePayload struct {
	Input   Input   `json:"input"`
	Context Context `json:"context"`
}

// Message sends one conversation turn and returns the service response.
// The previous turn's context must be passed back unchanged.
func (c *Client) Message(ctx context.Context, input Input, conversationCtx Context) (*MessageResponse, error) {
	// Hook point for input preprocessing before the service call.
	c.logger.Info("assistant: user input", "text", input.Text)

	body, err := json.Marshal(messagePayload{Input: input, Context: conversationCtx})
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/workspaces/%s/message?version=%s",
		c.baseURL, url.PathEscape(c.workspaceID), url.QueryEscape(c.version))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("assistant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.SetBasicAuth("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("assistant: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeServiceError(resp.StatusCode, respBody)
	}

	var out MessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("assistant: unmarshal response: %w", err)
	}
	c.logger.Info("assistant: service output", "text", out.Output.Text.Joined())
	return &out, nil
}

func decodeServiceError(status int, body []byte) error {
	var envelope struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	message := ""
	if json.Unmarshal(body, &envelope) == nil {
		message = envelope.Error
	}
	return &StatusError{StatusCode: status, Message: message}
}
