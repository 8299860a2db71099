package service

import (
	"context"
	"sync"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/utils"
)

type sessionRunner struct {
	sessions SessionService
	clock    utils.Clock
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionRunner creates the goroutine that feeds SessionService.Tick from
// the wall clock. A non-positive interval defaults to one second.
func NewSessionRunner(sessions SessionService, clock utils.Clock, interval time.Duration) SessionRunner {
	if interval <= 0 {
		interval = time.Second
	}

	return &sessionRunner{sessions: sessions, clock: clock, interval: interval}
}

func (r *sessionRunner) Start(ctx context.Context) {
	r.Stop()

	r.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.interval)
		defer t.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				r.sessions.Tick(runCtx, r.clock.Now())
			}
		}
	}()
}

func (r *sessionRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
