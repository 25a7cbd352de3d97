package connectivity

import (
	"testing"
	"time"
)

func TestRegainFiresOnce(t *testing.T) {
	var fired int
	m := NewMonitor(nil, time.Second, 0, func() { fired++ })

	m.Observe(false)
	m.Observe(true)
	if fired != 1 {
		t.Fatalf("fired = %d after regain; want 1", fired)
	}

	// Repeated online readings while already online are no-ops.
	m.Observe(true)
	m.Observe(true)
	if fired != 1 {
		t.Errorf("fired = %d after repeated online; want 1", fired)
	}

	m.Observe(false)
	m.Observe(true)
	if fired != 2 {
		t.Errorf("fired = %d after second regain; want 2", fired)
	}
}

func TestFlappingIsDebounced(t *testing.T) {
	var fired int
	m := NewMonitor(nil, time.Second, time.Hour, func() { fired++ })

	for i := 0; i < 5; i++ {
		m.Observe(false)
		m.Observe(true)
	}
	if fired != 1 {
		t.Errorf("fired = %d under flapping; want 1", fired)
	}
}

func TestOnlineReportsLastObservation(t *testing.T) {
	m := NewMonitor(nil, time.Second, 0, nil)

	if m.Online() {
		t.Error("monitor should start offline")
	}
	m.Observe(true)
	if !m.Online() {
		t.Error("expected online after positive observation")
	}
	m.Observe(false)
	if m.Online() {
		t.Error("expected offline after negative observation")
	}
}
