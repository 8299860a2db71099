package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations ("30s", "5m").
type StructuredJSONConfig struct {
	App struct {
		Version string `json:"version"`
	} `json:"app,omitempty"`

	Adapter struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		ProbeInterval  Duration `json:"probe_interval"`
	} `json:"adapter,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`

		Backups struct {
			Dir string `json:"dir"`
		} `json:"backups,omitempty"`
	} `json:"storage,omitempty"`

	Sync struct {
		Interval  Duration `json:"interval"`
		RetryCap  int      `json:"retry_cap"`
		RecordCap int      `json:"record_cap"`
	} `json:"sync,omitempty"`

	Session struct {
		AutoSaveInterval Duration `json:"auto_save_interval"`
		CheckInInterval  Duration `json:"check_in_interval"`
		CheckInBackoff   Duration `json:"check_in_backoff"`
		MaxAge           Duration `json:"max_age"`
		TickInterval     Duration `json:"tick_interval"`
		HistoryCap       int      `json:"history_cap"`
	} `json:"session,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Version: jsonCfg.App.Version,
		},
		Adapter: Adapter{
			BaseURL:        jsonCfg.Adapter.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			ProbeInterval:  time.Duration(jsonCfg.Adapter.ProbeInterval),
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
			Backups: Backups{
				Dir: jsonCfg.Storage.Backups.Dir,
			},
		},
		Sync: Sync{
			Interval:  time.Duration(jsonCfg.Sync.Interval),
			RetryCap:  jsonCfg.Sync.RetryCap,
			RecordCap: jsonCfg.Sync.RecordCap,
		},
		Session: Session{
			AutoSaveInterval: time.Duration(jsonCfg.Session.AutoSaveInterval),
			CheckInInterval:  time.Duration(jsonCfg.Session.CheckInInterval),
			CheckInBackoff:   time.Duration(jsonCfg.Session.CheckInBackoff),
			MaxAge:           time.Duration(jsonCfg.Session.MaxAge),
			TickInterval:     time.Duration(jsonCfg.Session.TickInterval),
			HistoryCap:       jsonCfg.Session.HistoryCap,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
