// Package netx tracks reachability of the remote service and fires a
// callback when connectivity comes back, which is what drives queue
// draining and reconciliation in the sync engine.
package netx

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"listvault/internal/logging"
)

// PingFunc probes the remote service once. A nil error means reachable.
type PingFunc func(ctx context.Context) error

// Monitor polls the service while online and backs off while offline.
type Monitor struct {
	ping     PingFunc
	interval time.Duration
	maxWait  time.Duration
	log      logging.Logger

	mu          sync.Mutex
	online      bool
	onReconnect []func(ctx context.Context)
}

// NewMonitor builds a monitor probing with ping every interval. The monitor
// starts in the offline state; the first successful probe flips it online.
func NewMonitor(ping PingFunc, interval time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		ping:     ping,
		interval: interval,
		maxWait:  10 * interval,
		log:      log.With("component", "netx"),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnReconnect registers fn to run on every offline-to-online transition.
// Callbacks run synchronously on the monitor goroutine, in registration
// order.
func (m *Monitor) OnReconnect(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// CheckNow probes once and updates the state, firing reconnect callbacks if
// the probe flipped the monitor online. Returns the resulting state.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	if err := m.ping(ctx); err != nil {
		m.setOnline(ctx, false)
		return false
	}
	m.setOnline(ctx, true)
	return true
}

// Run polls until ctx is done. While online it probes every interval; after
// a failure it switches to a capped fibonacci backoff until the service
// answers again.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.CheckNow(ctx) {
				continue
			}
			if err := m.waitForReconnect(ctx); err != nil {
				return // ctx done
			}
			m.setOnline(ctx, true)
		}
	}
}

// waitForReconnect probes with backoff until a probe succeeds or ctx is
// cancelled.
func (m *Monitor) waitForReconnect(ctx context.Context) error {
	b := retry.WithCappedDuration(m.maxWait, retry.NewFibonacci(m.interval))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := m.ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (m *Monitor) setOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var callbacks []func(ctx context.Context)
	if changed && online {
		callbacks = append(callbacks, m.onReconnect...)
	}
	m.mu.Unlock()

	if changed {
		m.log.Info(ctx, "connectivity changed", "online", online)
	}
	for _, fn := range callbacks {
		fn(ctx)
	}
}
