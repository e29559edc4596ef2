package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	m.LeaderboardComputed(20*time.Millisecond, 3)
	m.LeaderboardComputed(10*time.Millisecond, 4)
	m.DataUnavailable("attempts")
	m.AttemptRecorded()
	m.SubscribersChanged(2)

	if got := testutil.ToFloat64(m.computations); got != 2 {
		t.Fatalf("expected 2 computations, got %v", got)
	}
	if got := testutil.ToFloat64(m.entries); got != 4 {
		t.Fatalf("expected entries gauge 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.dataUnavailable.WithLabelValues("attempts")); got != 1 {
		t.Fatalf("expected 1 attempts failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscribers); got != 2 {
		t.Fatalf("expected 2 subscribers, got %v", got)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
