package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
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
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedders map[string]DependencyChecker
	upstreams map[string]DependencyChecker
}

// New creates a Service. db can be nil when the embedding cache is disabled.
// embedders are keyed by adapter name.
func New(db DBPinger, embedders map[string]DependencyChecker) *Service {
	return &Service{db: db, embedders: embedders}
}

// WithUpstream adds a non-embedding dependency, reported as "upstream:<name>".
func (s *Service) WithUpstream(name string, c DependencyChecker) *Service {
	if s.upstreams == nil {
		s.upstreams = make(map[string]DependencyChecker)
	}
	s.upstreams[name] = c
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		checks["cache"] = result(s.db.Ping(ctx))
	}

	names := make([]string, 0, len(s.embedders))
	for name := range s.embedders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks["embedding:"+name] = result(s.embedders[name].HealthCheck(ctx))
	}
	for name, c := range s.upstreams {
		checks["upstream:"+name] = result(c.HealthCheck(ctx))
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case failed == len(checks):
		status = Unhealthy
	default:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
