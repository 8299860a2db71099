// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the client
// data layer. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional JSON
// file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings.
	App App `envPrefix:"APP_"`

	// Adapter holds settings for the outbound remote-store transport.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds configuration for the local persistence backends.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds sync-queue processing settings.
	Sync Sync `envPrefix:"SYNC_"`

	// Session holds crisis-session state machine settings.
	Session Session `envPrefix:"SESSION_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Version is the semantic version string of the running application.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Adapter holds network settings for the remote-store HTTP client.
type Adapter struct {
	// BaseURL is the remote store endpoint, e.g. "https://api.stillpoint.app".
	// Env: ADAPTER_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout is the per-request timeout for outbound calls.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// ProbeInterval is how often the connectivity monitor pings the remote
	// health endpoint. Env: ADAPTER_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Storage groups the configuration for the local persistence backends.
type Storage struct {
	// DB holds the local sqlite settings.
	DB DB `envPrefix:"DB_"`

	// Backups holds the migration backup snapshot settings.
	Backups Backups `envPrefix:"BACKUPS_"`
}

// DB holds connection settings for the local sqlite database.
type DB struct {
	// DSN is the sqlite file path. Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Backups holds file-system settings for migration backup snapshots.
type Backups struct {
	// Dir is the directory where pre-migration guest snapshots are written.
	// Env: STORAGE_BACKUPS_DIR
	Dir string `env:"DIR"`
}

// Sync holds sync-queue processing settings.
type Sync struct {
	// Interval is how often the background job drains the queue.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// RetryCap is how many times one queue item is attempted before it is
	// abandoned and its record marked failed. Env: SYNC_RETRY_CAP
	RetryCap int `env:"RETRY_CAP"`

	// RecordCap is the per-entity-type cap on locally stored records. Only
	// synced records past the cap are evicted. Env: SYNC_RECORD_CAP
	RecordCap int `env:"RECORD_CAP"`
}

// Session holds crisis-session state machine settings.
type Session struct {
	// AutoSaveInterval is how often an active session re-persists progress.
	// Env: SESSION_AUTO_SAVE_INTERVAL
	AutoSaveInterval time.Duration `env:"AUTO_SAVE_INTERVAL"`

	// CheckInInterval is the delay before the first synthesized check-in.
	// Env: SESSION_CHECK_IN_INTERVAL
	CheckInInterval time.Duration `env:"CHECK_IN_INTERVAL"`

	// CheckInBackoff is the check-in delay used after the first check-in.
	// Env: SESSION_CHECK_IN_BACKOFF
	CheckInBackoff time.Duration `env:"CHECK_IN_BACKOFF"`

	// MaxAge is the hard cap on session lifetime; older sessions are
	// force-ended as interrupted instead of resumed. Env: SESSION_MAX_AGE
	MaxAge time.Duration `env:"MAX_AGE"`

	// TickInterval is the resolution of the session timer loop.
	// Env: SESSION_TICK_INTERVAL
	TickInterval time.Duration `env:"TICK_INTERVAL"`

	// HistoryCap bounds the durable collection of ended sessions.
	// Env: SESSION_HISTORY_CAP
	HistoryCap int `env:"HISTORY_CAP"`
}

// GetConfig loads, merges, validates, and defaults the application
// configuration from all available sources in the following priority order
// (an earlier source wins for fields it sets; later sources fill the gaps):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
func GetConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
