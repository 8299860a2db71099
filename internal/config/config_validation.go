// SPDX-License-Identifier: Apache-2.0

package config

import "strings"

// Defaults applied to fields left zero after all sources are merged.
const (
	defaultBaseURL          = "http://localhost:8080"
	defaultDSN              = "stillpoint.db"
	defaultBackupsDir       = "backups"
	defaultRequestTimeout   = "15s"
	defaultProbeInterval    = "30s"
	defaultSyncInterval     = "5m"
	defaultRetryCap         = 3
	defaultRecordCap        = 100
	defaultAutoSaveInterval = "10s"
	defaultCheckInInterval  = "60s"
	defaultCheckInBackoff   = "120s"
	defaultMaxSessionAge    = "30m"
	defaultTickInterval     = "1s"
	defaultHistoryCap       = 50
)

func (cfg *StructuredConfig) applyDefaults() {
	setString(&cfg.Adapter.BaseURL, defaultBaseURL)
	setString(&cfg.Storage.DB.DSN, defaultDSN)
	setString(&cfg.Storage.Backups.Dir, defaultBackupsDir)
	setDuration(&cfg.Adapter.RequestTimeout, defaultRequestTimeout)
	setDuration(&cfg.Adapter.ProbeInterval, defaultProbeInterval)
	setDuration(&cfg.Sync.Interval, defaultSyncInterval)
	setInt(&cfg.Sync.RetryCap, defaultRetryCap)
	setInt(&cfg.Sync.RecordCap, defaultRecordCap)
	setDuration(&cfg.Session.AutoSaveInterval, defaultAutoSaveInterval)
	setDuration(&cfg.Session.CheckInInterval, defaultCheckInInterval)
	setDuration(&cfg.Session.CheckInBackoff, defaultCheckInBackoff)
	setDuration(&cfg.Session.MaxAge, defaultMaxSessionAge)
	setDuration(&cfg.Session.TickInterval, defaultTickInterval)
	setInt(&cfg.Session.HistoryCap, defaultHistoryCap)
}

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants the data layer relies on at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.BaseURL == "" || cfg.Adapter.RequestTimeout <= 0 || cfg.Adapter.ProbeInterval <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.Interval <= 0 || cfg.Sync.RetryCap <= 0 || cfg.Sync.RecordCap <= 0 {
		return ErrInvalidSyncConfigs
	}

	if cfg.Session.AutoSaveInterval <= 0 ||
		cfg.Session.CheckInInterval <= 0 ||
		cfg.Session.CheckInBackoff < cfg.Session.CheckInInterval ||
		cfg.Session.MaxAge <= 0 ||
		cfg.Session.TickInterval <= 0 ||
		cfg.Session.HistoryCap <= 0 {
		return ErrInvalidSessionConfigs
	}

	return nil
}
