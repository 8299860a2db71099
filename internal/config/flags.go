package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-remote remote store base URL
//	-d local sqlite database path
//	-backups-dir migration backup snapshot directory
//	-c/-config json file path with configs
//	-request-timeout outbound request timeout (e.g., "15s")
//	-probe-interval connectivity probe interval (e.g., "30s")
//	-sync-interval background drain interval (e.g., "5m")
//	-sync-retry-cap per-item retry cap
//	-sync-record-cap per-entity local record cap
func ParseFlags() *StructuredConfig {
	var remoteBaseURL string
	var databaseDSN string
	var backupsDir string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var probeInterval time.Duration
	var syncInterval time.Duration
	var syncRetryCap int
	var syncRecordCap int

	flag.StringVar(&remoteBaseURL, "remote", "", "Remote store base URL")
	flag.StringVar(&databaseDSN, "d", "", "Local sqlite database path")
	flag.StringVar(&backupsDir, "backups-dir", "", "Migration backup directory")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	flag.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe interval (e.g., 30s)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	flag.IntVar(&syncRetryCap, "sync-retry-cap", 0, "Sync item retry cap")
	flag.IntVar(&syncRecordCap, "sync-record-cap", 0, "Per-entity local record cap")

	flag.Parse()

	return &StructuredConfig{
		Adapter: Adapter{
			BaseURL:        remoteBaseURL,
			RequestTimeout: requestTimeout,
			ProbeInterval:  probeInterval,
		},
		Storage: Storage{
			DB:      DB{DSN: databaseDSN},
			Backups: Backups{Dir: backupsDir},
		},
		Sync: Sync{
			Interval:  syncInterval,
			RetryCap:  syncRetryCap,
			RecordCap: syncRecordCap,
		},
		JSONFilePath: jsonConfigPath,
	}
}
