package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func adapters(title, details error) map[string]DependencyChecker {
	return map[string]DependencyChecker{
		"title":   &mockChecker{err: title},
		"details": &mockChecker{err: details},
	}
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, adapters(nil, nil))
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
	if r.Checks["embedding:title"] != CheckOK {
		t.Errorf("expected embedding:title %q, got %q", CheckOK, r.Checks["embedding:title"])
	}
	if len(r.Checks) != 3 {
		t.Errorf("expected 3 checks, got %v", r.Checks)
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, adapters(nil, nil))
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockDBPinger{}, adapters(nil, errors.New("timeout")))
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding:details"] != CheckError {
		t.Errorf("expected embedding:details %q, got %q", CheckError, r.Checks["embedding:details"])
	}
	if r.Checks["embedding:title"] != CheckOK {
		t.Errorf("expected embedding:title %q, got %q", CheckOK, r.Checks["embedding:title"])
	}
}

func TestCheck_AllFailing(t *testing.T) {
	down := errors.New("down")
	svc := New(&mockDBPinger{err: down}, adapters(down, down))
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoCache(t *testing.T) {
	svc := New(nil, adapters(nil, nil))
	r := svc.Check(context.Background())

	if _, ok := r.Checks["cache"]; ok {
		t.Error("cache check must be absent when no store is configured")
	}
	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
}

func TestCheck_Upstream(t *testing.T) {
	svc := New(nil, nil).WithUpstream("registry", &mockChecker{err: errors.New("503")})
	r := svc.Check(context.Background())

	if r.Checks["upstream:registry"] != CheckError {
		t.Errorf("expected upstream:registry %q, got %q", CheckError, r.Checks["upstream:registry"])
	}
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}
