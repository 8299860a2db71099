package service

import (
	"context"
	"sync"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/adapter"
	"github.com/stillpoint-app/stillpoint/internal/logger"
)

type syncJob struct {
	syncService SyncService
	conn        adapter.Connectivity
	logger      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a syncJob that drains the queue on a ticker and on every
// offline→online transition. The job is idle until Start is called.
func NewSyncJob(syncService SyncService, conn adapter.Connectivity, log *logger.Logger) SyncJob {
	return &syncJob{syncService: syncService, conn: conn, logger: log}
}

// Start implements SyncJob. It stops any previously running job, then launches
// a background goroutine that drains every interval and whenever connectivity
// comes back. If interval is zero or negative it defaults to 5 minutes. The
// goroutine exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	edges := j.conn.Subscribe()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.drain(jobCtx)
			case online := <-edges:
				if online {
					j.drain(jobCtx)
				}
			}
		}
	}()
}

// Stop implements SyncJob. It cancels the background goroutine's context and
// blocks until the goroutine has fully exited. Safe to call when the job is
// not running (no-op in that case).
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *syncJob) drain(ctx context.Context) {
	report, err := j.syncService.Drain(ctx)
	if err != nil {
		j.logger.Warn().Err(err).
			Str("func", "syncJob.drain").
			Msg("background drain failed")
		return
	}

	if report.Synced > 0 || report.Failed > 0 {
		j.logger.Info().
			Str("func", "syncJob.drain").
			Int("synced", report.Synced).
			Int("failed", report.Failed).
			Msg("queue drained")
	}
}
