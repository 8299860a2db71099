package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/logger"
)

// ProbeMonitor derives the online/offline signal by pinging the remote store
// health endpoint on a ticker. Set allows platform connectivity callbacks (or
// tests) to override the probed state; the next probe reconciles it.
type ProbeMonitor struct {
	remote   RemoteStore
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	online bool
	subs   []chan bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbeMonitor creates a [Connectivity] monitor that is offline until the
// first successful probe. The monitor is idle until Start is called.
func NewProbeMonitor(remote RemoteStore, interval time.Duration, log *logger.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &ProbeMonitor{
		remote:   remote,
		interval: interval,
		logger:   log,
	}
}

// Start probes once immediately, then on every tick until ctx is cancelled or
// Stop is called. Restart stops the previous goroutine first.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	probeCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		m.probe(probeCtx)

		t := time.NewTicker(m.interval)
		defer t.Stop()

		for {
			select {
			case <-probeCtx.Done():
				return
			case <-t.C:
				m.probe(probeCtx)
			}
		}
	}()
}

// Stop cancels the probe goroutine and blocks until it has exited. Safe to
// call when the monitor is not running.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *ProbeMonitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 1)
	m.subs = append(m.subs, ch)
	return ch
}

// Set records a connectivity state reported from outside the probe loop and
// notifies subscribers on edge transitions.
func (m *ProbeMonitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := make([]chan bool, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info().
		Str("func", "ProbeMonitor.Set").
		Bool("online", online).
		Msg("connectivity changed")

	for _, ch := range subs {
		// Drop the stale edge if the subscriber has not consumed it yet; only
		// the latest state matters.
		select {
		case ch <- online:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}

func (m *ProbeMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.remote.Ping(probeCtx)
	m.Set(err == nil)
}
