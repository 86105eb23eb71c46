package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/metrics"
)

var (
	errLoggerRequired  = errors.New("rest logger is required")
	errBaseURLRequired = errors.New("rest base url is required")
)

// TokenSource supplies the bearer credential for authenticated
// requests. An empty token means the request goes out anonymous.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client is the single outbound HTTP path for every backend call,
// with centralized auth, logging, error mapping, and metrics.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	tokens  TokenSource
	logger  *logger.Logger
	metrics *metrics.RequestMetrics
}

// New builds the shared REST client for the configured backend.
func New(cfg config.BackendConfig, tokens TokenSource, logg *logger.Logger, m *metrics.RequestMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errBaseURLRequired
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		base:    base,
		httpc:   &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logg,
		metrics: m,
	}, nil
}

// Get issues a GET against the backend and decodes the response into dest.
func (c *Client) Get(ctx context.Context, op, path string, dest any) error {
	return c.Do(ctx, op, http.MethodGet, path, nil, dest)
}

// Do executes one request/response round trip. A non-nil body is sent
// as JSON; a non-nil dest receives the decoded success payload. Error
// statuses come back as coded domain errors, with 401 always mapped
// to the distinct unauthorized code.
func (c *Client) Do(ctx context.Context, op, method, path string, body, dest any) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, body, dest)
	c.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		c.metrics.IncOutcome(op, "failure")
		return err
	}
	c.metrics.IncOutcome(op, "success")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, dest any) error {
	// Resolve instead of JoinPath so a query string in the path
	// survives unescaped.
	ref, err := url.Parse(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request path")
	}
	endpoint := c.base.ResolveReference(ref).String()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.Token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.log(ctx, "request", op, map[string]any{"method": method, "path": path})

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			&pkgerrors.HTTPError{Endpoint: endpoint, Err: err},
			fmt.Sprintf("%s request failed", op))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			&pkgerrors.HTTPError{Status: resp.StatusCode, Endpoint: endpoint, Err: err},
			fmt.Sprintf("%s read response", op))
	}

	if resp.StatusCode >= 400 {
		code := codeForStatus(resp.StatusCode)
		c.log(ctx, "error", op, map[string]any{"status": resp.StatusCode})
		return pkgerrors.Wrap(code,
			&pkgerrors.HTTPError{Status: resp.StatusCode, Endpoint: endpoint, Body: snippet(payload)},
			fmt.Sprintf("%s rejected", op))
	}

	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})

	if dest == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			&pkgerrors.HTTPError{Status: resp.StatusCode, Endpoint: endpoint, Err: err},
			fmt.Sprintf("%s decode response", op))
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("backend %s failed", op))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("backend %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"password", "token", "secret", "authorization", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func snippet(payload []byte) string {
	const max = 256
	trimmed := strings.TrimSpace(string(payload))
	if len(trimmed) > max {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := max
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		return trimmed[:cut]
	}
	return trimmed
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
