package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/domain/schema"
	"github.com/kailas-cloud/dictcache/internal/metrics"
)

// DefaultSubject receives invalidation events for every dictionary.
const DefaultSubject = "dictcache.invalidate.>"

// Refresher reloads dictionaries on demand.
type Refresher interface {
	ForceRefresh(ctx context.Context, name string) (json.RawMessage, error)
	GetDictionaryStructure(ctx context.Context, name string, force bool) (*schema.Entry, error)
}

// Registry tells registered dictionary names apart from noise.
type Registry interface {
	Has(name string) bool
}

// Event is the invalidation payload. An empty Dictionary falls back to the
// last token of the subject, so "dictcache.invalidate.Company" with no body works.
type Event struct {
	Dictionary string `json:"dictionary"`
	Schema     bool   `json:"schema"`
}

// Connect dials NATS with automatic reconnection.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("dictcache"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Listener force-refreshes dictionaries when invalidation events arrive.
// Events are handled one at a time in arrival order.
type Listener struct {
	conn      *nats.Conn
	subject   string
	refresher Refresher
	registry  Registry
	logger    *zap.Logger
	timeout   time.Duration

	mu     sync.Mutex
	sub    *nats.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener creates a listener on subject. An empty subject means DefaultSubject.
func NewListener(conn *nats.Conn, subject string, r Refresher, reg Registry, logger *zap.Logger) *Listener {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		conn:      conn,
		subject:   subject,
		refresher: r,
		registry:  reg,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

// WithTimeout bounds each refresh triggered by an event.
func (l *Listener) WithTimeout(d time.Duration) *Listener {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// Start subscribes and processes events until ctx is done or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return fmt.Errorf("listener on %s already started", l.subject)
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := l.conn.ChanSubscribe(l.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", l.subject, err)
	}
	// Flush so the subscription is live on the server before Start returns.
	if err := l.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.sub = sub
	l.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				l.handle(ctx, msg.Subject, msg.Data)
			}
		}
	}()

	l.logger.Info("listening for invalidation events", zap.String("subject", l.subject))
	return nil
}

// Stop unsubscribes and waits for the in-flight event to finish.
func (l *Listener) Stop() {
	l.mu.Lock()
	sub, cancel := l.sub, l.cancel
	l.sub, l.cancel = nil, nil
	l.mu.Unlock()

	if sub == nil {
		return
	}
	_ = sub.Unsubscribe()
	cancel()
	l.wg.Wait()
}

func (l *Listener) handle(ctx context.Context, subject string, data []byte) {
	ev, err := parseEvent(subject, data)
	if err != nil {
		l.logger.Debug("malformed invalidation payload, using subject",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
	if ev.Dictionary == "" || !l.registry.Has(ev.Dictionary) {
		metrics.InvalidationsTotal.WithLabelValues("ignored").Inc()
		l.logger.Debug("ignoring invalidation event",
			zap.String("subject", subject),
			zap.String("dictionary", ev.Dictionary),
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result := "refreshed"
	if _, err := l.refresher.ForceRefresh(ctx, ev.Dictionary); err != nil {
		result = "failed"
		l.logger.Warn("invalidation refresh failed", zap.String("dictionary", ev.Dictionary), zap.Error(err))
	}
	if ev.Schema {
		if _, err := l.refresher.GetDictionaryStructure(ctx, ev.Dictionary, true); err != nil {
			result = "failed"
			l.logger.Warn("invalidation structure refresh failed",
				zap.String("dictionary", ev.Dictionary),
				zap.Error(err),
			)
		}
	}
	metrics.InvalidationsTotal.WithLabelValues(result).Inc()
	l.logger.Info("dictionary invalidated",
		zap.String("dictionary", ev.Dictionary),
		zap.Bool("schema", ev.Schema),
		zap.String("result", result),
	)
}

// parseEvent reads the JSON payload and falls back to the last subject token.
// A malformed payload is reported but the subject fallback still applies.
func parseEvent(subject string, data []byte) (Event, error) {
	var ev Event
	var err error
	if len(data) > 0 {
		if uerr := json.Unmarshal(data, &ev); uerr != nil {
			ev = Event{}
			err = fmt.Errorf("decode invalidation payload: %w", uerr)
		}
	}
	if ev.Dictionary == "" {
		ev.Dictionary = subject[strings.LastIndexByte(subject, '.')+1:]
	}
	return ev, err
}
