package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"redub/internal/api"
	"redub/internal/logging"
)

const (
	defaultUserAgent   = "redub/dev"
	defaultHTTPTimeout = 30 * time.Second

	headerCorrelationID = "X-Correlation-ID"

	maxErrorBodyBytes = 64 * 1024
)

// HTTPDoer describes the HTTP client used by the gateway client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the gateway client configuration.
type Config struct {
	BaseURL    string
	UserAgent  string
	HTTPClient HTTPDoer
	Logger     *slog.Logger
}

// Client wraps the translation gateway REST API.
type Client struct {
	baseURL   *url.URL
	userAgent string
	http      HTTPDoer
	logger    *slog.Logger
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      doer,
		logger:    logging.NewComponentLogger(cfg.Logger, "gateway"),
	}, nil
}

// TaskStatus queries the authoritative status of one task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*api.TaskStatus, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, api.Wrap(api.ErrValidation, "task status", "task id is empty", nil)
	}
	endpoint := c.baseURL.JoinPath("v1", "tasks", taskID, "status")

	var status api.TaskStatus
	if err := c.getJSON(ctx, "task status", endpoint, &status); err != nil {
		return nil, err
	}
	if !status.Status.Valid() {
		return nil, api.Wrap(api.ErrServer, "task status", fmt.Sprintf("gateway reported unknown status %q", status.Status), nil)
	}
	return &status, nil
}

// Settings fetches the current settings resource, including its version.
func (c *Client) Settings(ctx context.Context) (*api.Settings, error) {
	endpoint := c.baseURL.JoinPath("v1", "settings")

	var settings api.Settings
	if err := c.getJSON(ctx, "settings read", endpoint, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateOutcome is the two-outcome result of a settings update.
// When Applied is false the update hit a version conflict and Version
// carries the authoritative current version to re-read against.
type UpdateOutcome struct {
	Applied bool
	Version int
	Message string
}

// UpdateSettings submits a partial settings update under optimistic
// concurrency. A stale version is reported as a Conflict outcome, not
// an error; every other failure is an error.
func (c *Client) UpdateSettings(ctx context.Context, update api.SettingsUpdate) (UpdateOutcome, error) {
	const op = "settings update"

	body, err := json.Marshal(update)
	if err != nil {
		return UpdateOutcome{}, api.Wrap(api.ErrValidation, op, "encode request", err)
	}

	endpoint := c.baseURL.JoinPath("v1", "settings")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return UpdateOutcome{}, api.Wrap(api.ErrValidation, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return UpdateOutcome{}, api.Wrap(api.ErrTransport, op, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var applied api.UpdateSettingsResponse
		if err := json.NewDecoder(resp.Body).Decode(&applied); err != nil {
			return UpdateOutcome{}, api.Wrap(api.ErrServer, op, "decode response", err)
		}
		return UpdateOutcome{Applied: true, Version: applied.Version, Message: applied.Message}, nil
	case resp.StatusCode == http.StatusConflict:
		gwErr := readGatewayError(resp)
		c.logger.Warn("settings update conflict",
			logging.String(logging.FieldEventType, "settings_conflict"),
			logging.Int("current_version", gwErr.CurrentVersion))
		return UpdateOutcome{Applied: false, Version: gwErr.CurrentVersion, Message: gwErr.Message}, nil
	default:
		return UpdateOutcome{}, c.statusError(op, resp)
	}
}

func (c *Client) getJSON(ctx context.Context, op string, endpoint *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.Wrap(api.ErrValidation, op, "build request", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return api.Wrap(api.ErrTransport, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return api.Wrap(api.ErrTransport, op, "decode response", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get(headerCorrelationID) == "" {
		req.Header.Set(headerCorrelationID, uuid.NewString())
	}
	c.logger.Debug("gateway request",
		logging.String("method", req.Method),
		logging.String("url", req.URL.Path),
		logging.String(logging.FieldCorrelationID, req.Header.Get(headerCorrelationID)))
	return c.http.Do(req)
}

func (c *Client) statusError(op string, resp *http.Response) error {
	gwErr := readGatewayError(resp)
	message := gwErr.Message
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	detail := fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, message)
	return api.Wrap(api.MarkerForHTTPStatus(resp.StatusCode), op, detail, nil)
}

func readGatewayError(resp *http.Response) api.Error {
	var gwErr api.Error
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return gwErr
	}
	_ = json.Unmarshal(body, &gwErr)
	return gwErr
}
