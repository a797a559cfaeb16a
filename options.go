package dictcache

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client

	dictionaries []Dictionary

	snapshotAddrs    []string
	snapshotPassword string
	snapshotPrefix   string
	snapshotTTL      time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithBaseURL sets the catalog API root. Required.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithToken sets the bearer token sent with every catalog API request.
func WithToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithTimeout sets the per-request timeout. Defaults to 15s.
// Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithHTTPClient replaces the HTTP client used for the catalog API.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithDictionaries replaces the built-in dictionary registry.
func WithDictionaries(entries ...Dictionary) Option {
	return optionFunc(func(c *clientConfig) {
		c.dictionaries = append([]Dictionary(nil), entries...)
	})
}

// WithRedisSnapshot persists fetched dictionaries to Redis for warm starts.
func WithRedisSnapshot(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotAddrs = []string{addr}
		c.snapshotPassword = password
	})
}

// WithSnapshotKeyPrefix sets the namespace of snapshot keys. Defaults to "dictcache:".
func WithSnapshotKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotPrefix = prefix
	})
}

// WithSnapshotTTL sets the expiry of snapshot keys. Zero keeps them forever.
func WithSnapshotTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotTTL = ttl
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics with reg.
// Registering twice on one registry reuses the existing collectors.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
