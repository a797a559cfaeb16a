package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means a dependency is down but the cache can still serve.
	Degraded Status = "degraded"
	// Unhealthy means the catalog API is down and nothing is cached.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status      Status                 `json:"status"`
	Checks      map[string]CheckResult `json:"checks"`
	Collections int                    `json:"cached_collections"`
	Schemas     int                    `json:"cached_schemas"`
}

// Service coordinates health checks.
type Service struct {
	upstream Pinger
	snapshot Pinger
	cache    CacheStats
}

// New creates a Service. snapshot can be nil.
func New(upstream Pinger, snapshot Pinger, cache CacheStats) *Service {
	return &Service{upstream: upstream, snapshot: snapshot, cache: cache}
}

// Check pings the catalog API and the snapshot store and reports cache occupancy.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{"upstream": result(s.upstream.Ping(ctx))}
	if s.snapshot != nil {
		checks["snapshot"] = result(s.snapshot.Ping(ctx))
	}

	var collections, schemas int
	if s.cache != nil {
		collections, schemas = s.cache.Stats()
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["upstream"] == CheckError && collections == 0 {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Collections: collections, Schemas: schemas}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
