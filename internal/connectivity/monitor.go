// Package connectivity watches network reachability and triggers a
// reconciliation pass when connectivity comes back.
package connectivity

import (
	"context"
	"log"
	"net"
	"sync"
	"time"
)

// Prober answers whether the remote endpoint is currently reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

// DialProber probes by opening a TCP connection to the remote endpoint.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProber) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Monitor holds the two-state online/offline machine. Each offline-to-online
// transition fires the registered callback exactly once; repeated online
// signals are no-ops, and a debounce interval absorbs flapping links.
type Monitor struct {
	prober   Prober
	interval time.Duration
	debounce time.Duration
	onOnline func()

	mu        sync.Mutex
	online    bool
	lastFired time.Time
}

// NewMonitor creates a monitor that polls the prober every interval and
// calls onOnline on each regain of connectivity, at most once per debounce
// window. The monitor starts in the offline state so the first successful
// probe triggers a pass.
func NewMonitor(prober Prober, interval, debounce time.Duration, onOnline func()) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		debounce: debounce,
		onOnline: onOnline,
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Observe feeds one reachability reading into the state machine. It is also
// the seam tests use instead of a real prober loop.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	fire := false
	if online && !wasOnline {
		if m.debounce == 0 || time.Since(m.lastFired) >= m.debounce {
			m.lastFired = time.Now()
			fire = true
		}
	}
	m.mu.Unlock()

	if fire && m.onOnline != nil {
		log.Printf("connectivity regained, reconciling")
		m.onOnline()
	}
}

// Run polls the prober until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Observe(m.prober.Online(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Observe(m.prober.Online(ctx))
		}
	}
}
