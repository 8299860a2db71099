package service

import (
	"github.com/stillpoint-app/stillpoint/internal/adapter"
	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
)

type ClientServices struct {
	Identity      IdentityService
	Records       RecordService
	Sync          SyncService
	SyncJob       SyncJob
	Sessions      SessionService
	SessionRunner SessionRunner
	Migration     MigrationService
}

func NewClientServices(
	storages *store.Storages,
	remote adapter.RemoteStore,
	conn adapter.Connectivity,
	cfg *config.StructuredConfig,
	log *logger.Logger,
) *ClientServices {
	ids := utils.NewUUIDGenerator()
	clock := utils.NewSystemClock()

	identitySvc := NewIdentityService(storages.State, remote, ids, log)
	syncSvc := NewSyncService(storages.Queue, storages.Records, storages.State, remote, conn, identitySvc, clock, cfg.Sync.RetryCap, log)
	recordSvc := NewRecordService(storages.Records, ids, clock, cfg.Sync.RecordCap, syncSvc.NotifyLocalChange, log)
	sessionSvc := NewSessionService(storages.Sessions, ids, clock, cfg.Session, log)

	return &ClientServices{
		Identity:      identitySvc,
		Records:       recordSvc,
		Sync:          syncSvc,
		SyncJob:       NewSyncJob(syncSvc, conn, log),
		Sessions:      sessionSvc,
		SessionRunner: NewSessionRunner(sessionSvc, clock, cfg.Session.TickInterval),
		Migration:     NewMigrationService(storages.Records, storages.State, storages.Backups, clock, log),
	}
}
