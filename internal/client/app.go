// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"

	"github.com/stillpoint-app/stillpoint/internal/adapter"
	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/service"
	"github.com/stillpoint-app/stillpoint/internal/store"
)

// App is the client runtime: local storage, remote adapter, connectivity
// monitor, and the domain services, tied to one process lifecycle.
type App struct {
	services *service.ClientServices
	monitor  *adapter.ProbeMonitor
	cfg      *config.StructuredConfig
	logger   *logger.Logger
}

func NewApp(cfg *config.StructuredConfig, log *logger.Logger) (*App, error) {
	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	remote := adapter.NewHTTPRemoteStore(cfg.Adapter)
	monitor := adapter.NewProbeMonitor(remote, cfg.Adapter.ProbeInterval, log)

	services := service.NewClientServices(storages, remote, monitor, cfg, log)

	return &App{
		services: services,
		monitor:  monitor,
		cfg:      cfg,
		logger:   log,
	}, nil
}

// Services exposes the wired service layer, e.g. to an embedding UI.
func (a *App) Services() *service.ClientServices {
	return a.services
}

// Run starts the background machinery and blocks until ctx is cancelled:
// guest identity bootstrap, connectivity probing, the sync job, the session
// timer loop, and a resume attempt for a session left over from a previous
// run.
func (a *App) Run(ctx context.Context) error {
	if err := a.services.Identity.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap identity: %w", err)
	}

	a.monitor.Start(ctx)
	defer a.monitor.Stop()

	if sess, err := a.services.Sessions.Resume(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("resume session")
	} else if sess != nil {
		a.logger.Info().Str("session_id", sess.ID).Msg("session resumed")
	}

	a.services.SyncJob.Start(ctx, a.cfg.Sync.Interval)
	defer a.services.SyncJob.Stop()

	a.services.SessionRunner.Start(ctx)
	defer a.services.SessionRunner.Stop()

	a.logger.Info().Msg("client runtime started")

	<-ctx.Done()

	a.logger.Info().Msg("client runtime stopping")

	return nil
}
