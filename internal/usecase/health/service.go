package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; searches still answer.
	Degraded Status = "degraded"
	// Unhealthy indicates the index is unusable.
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

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	IndexRows int
}

// Service coordinates health checks.
type Service struct {
	index     IndexStatus
	embedding Checker
	llm       Checker
	cache     CachePinger
}

// New creates a Service. Everything except index can be nil.
func New(index IndexStatus, embedding, llm Checker, cache CachePinger) *Service {
	return &Service{index: index, embedding: embedding, llm: llm, cache: cache}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]CheckResult)
	rows := s.index.Len()
	indexDown := s.index.Status() != nil && rows == 0
	checks["index"] = result(s.index.Status())

	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}
	if s.llm != nil {
		checks["llm"] = result(s.llm.HealthCheck(ctx))
	}
	if s.cache != nil {
		checks["cache"] = result(s.cache.Ping(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if indexDown {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, IndexRows: rows}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
