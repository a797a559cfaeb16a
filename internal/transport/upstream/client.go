package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
	"github.com/kailas-cloud/dictcache/internal/metrics"
)

// Operation names used for metrics and diagnostics.
const (
	OpCollection = "collection"
	OpList       = "list"
	OpItem       = "item"
	OpSchema     = "schema"
)

const maxBodyBytes = 32 << 20

// StatusError reports a non-2xx response from the catalog API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog API status %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match domain.ErrUpstreamUnavailable.
func (e *StatusError) Unwrap() error { return domain.ErrUpstreamUnavailable }

// Config holds the catalog API client settings.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client fetches dictionaries, items and form structures from the catalog API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog API client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: hc,
		logger:     logger,
	}
}

// FetchCollection returns the raw dictionary body. Its shape belongs to the server.
func (c *Client) FetchCollection(ctx context.Context, e registry.Entry) (json.RawMessage, error) {
	return c.get(ctx, e.Name, OpCollection, e.Path, nil)
}

// FetchCollectionAsList returns the dictionary serialized to the given nesting depth.
func (c *Client) FetchCollectionAsList(ctx context.Context, e registry.Entry, depth int) (json.RawMessage, error) {
	q := url.Values{"depth": {strconv.Itoa(depth)}}
	return c.get(ctx, e.Name, OpList, e.Path, q)
}

// FetchItem returns a single dictionary item.
func (c *Client) FetchItem(ctx context.Context, e registry.Entry, id string) (json.RawMessage, error) {
	q := url.Values{"id": {id}}
	return c.get(ctx, e.Name, OpItem, e.Path, q)
}

// FetchSchema returns the ordered form structure of a dictionary.
// Both a bare field array and the {"fields": [...]} envelope are accepted.
func (c *Client) FetchSchema(ctx context.Context, e registry.Entry) ([]field.Structure, error) {
	q := url.Values{"action": {"form-structure"}}
	body, err := c.get(ctx, e.Name, OpSchema, e.Path, q)
	if err != nil {
		return nil, err
	}
	fields, err := decodeSchema(body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(e.Name, OpSchema, "decode_error").Inc()
		return nil, fmt.Errorf("decode form structure of %s: %w", e.Name, err)
	}
	return fields, nil
}

// Ping checks that the catalog API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping catalog API: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) get(ctx context.Context, name, op, path string, extra url.Values) (json.RawMessage, error) {
	target := c.baseURL + withQuery(path, extra)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, op, "transport_error").Inc()
		return nil, fmt.Errorf("GET %s: %w: %w", target, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, op, "transport_error").Inc()
		return nil, fmt.Errorf("read %s: %w: %w", target, domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, op, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: extractError(body)}
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		metrics.UpstreamRequestsTotal.WithLabelValues(name, op, "invalid_json").Inc()
		return nil, fmt.Errorf("GET %s: %w: response is not JSON", target, domain.ErrUpstreamUnavailable)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(name, op, "success").Inc()
	c.logger.Debug("catalog API request",
		zap.String("dictionary", name),
		zap.String("op", op),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)
	return json.RawMessage(body), nil
}

// withQuery appends params to a registered path, which may already carry a query string.
func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
		if strings.HasSuffix(path, "?") || strings.HasSuffix(path, "&") {
			sep = ""
		}
	}
	return path + sep + params.Encode()
}

func decodeSchema(body json.RawMessage) ([]field.Structure, error) {
	var fields []field.Structure
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	var envelope struct {
		Fields *[]field.Structure `json:"fields"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Fields == nil {
		return nil, fmt.Errorf("response has no fields")
	}
	return *envelope.Fields, nil
}

// extractError pulls the "error" message out of a JSON error body.
func extractError(body []byte) string {
	var parsed struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
