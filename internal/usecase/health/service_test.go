package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockStats struct {
	collections, schemas int
}

func (m *mockStats) Stats() (int, int) { return m.collections, m.schemas }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockStats{collections: 9, schemas: 9})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["upstream"] != CheckOK {
		t.Errorf("expected upstream %q, got %q", CheckOK, r.Checks["upstream"])
	}
	if r.Checks["snapshot"] != CheckOK {
		t.Errorf("expected snapshot %q, got %q", CheckOK, r.Checks["snapshot"])
	}
	if r.Collections != 9 || r.Schemas != 9 {
		t.Errorf("unexpected cache stats %d/%d", r.Collections, r.Schemas)
	}
}

func TestCheck_UpstreamDownWithCache(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, nil, &mockStats{collections: 3})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["upstream"] != CheckError {
		t.Errorf("expected upstream %q, got %q", CheckError, r.Checks["upstream"])
	}
}

func TestCheck_UpstreamDownEmptyCache(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, nil, &mockStats{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_SnapshotError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("timeout")}, &mockStats{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["snapshot"] != CheckError {
		t.Errorf("expected snapshot %q, got %q", CheckError, r.Checks["snapshot"])
	}
}

func TestCheck_NoSnapshot(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["snapshot"]; ok {
		t.Error("snapshot check should be absent when snapshot is nil")
	}
}
