package dictionary

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/metrics"
)

// PreloadReport summarizes a PreloadAll run. Failed names keep registry order.
type PreloadReport struct {
	Total             int           `json:"total"`
	FailedCollections []string      `json:"failed_collections"`
	FailedSchemas     []string      `json:"failed_schemas"`
	Duration          time.Duration `json:"-"`
}

// OK reports whether every collection and schema loaded.
func (r PreloadReport) OK() bool {
	return len(r.FailedCollections) == 0 && len(r.FailedSchemas) == 0
}

// PreloadAll loads every registered dictionary, then every form structure.
// Each wave runs one goroutine per name and waits for all of them.
// A failing name never cancels its siblings.
func (s *Service) PreloadAll(ctx context.Context) PreloadReport {
	start := time.Now()
	names := s.registry.Names()

	failedCollections := s.wave(ctx, "collections", names, func(ctx context.Context, name string) error {
		_, err := s.GetDictionary(ctx, name, false)
		return err
	})
	failedSchemas := s.wave(ctx, "schemas", names, func(ctx context.Context, name string) error {
		_, err := s.GetDictionaryStructure(ctx, name, false)
		return err
	})

	report := PreloadReport{
		Total:             len(names),
		FailedCollections: failedCollections,
		FailedSchemas:     failedSchemas,
		Duration:          time.Since(start),
	}

	logFn := s.logger.Info
	if !report.OK() {
		logFn = s.logger.Warn
	}
	logFn("dictionaries preloaded",
		zap.Int("total", report.Total),
		zap.Strings("failed_collections", report.FailedCollections),
		zap.Strings("failed_schemas", report.FailedSchemas),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// wave runs load for every name concurrently and returns the failed names in input order.
func (s *Service) wave(
	ctx context.Context,
	label string,
	names []string,
	load func(ctx context.Context, name string) error,
) []string {
	start := time.Now()
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = load(ctx, name)
		}()
	}
	wg.Wait()

	metrics.PreloadDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, names[i])
			metrics.PreloadFailuresTotal.WithLabelValues(names[i], label).Inc()
		}
	}
	return failed
}
