// Package config provides configuration loading for docmatch.
//
// Configuration is assembled from defaults, an optional YAML file and
// DOCMATCH_* environment variables. Packages that own their own settings
// (logging, telemetry, extraction) read them through Config.Section so a
// single file drives the whole process.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config holds the docmatch configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Matching MatchingConfig `koanf:"matching"`
	OCR      OCRConfig      `koanf:"ocr"`
	Storage  StorageConfig  `koanf:"storage"`
	Events   EventsConfig   `koanf:"events"`

	// k keeps the merged sources so other packages can decode their sections.
	k *koanf.Koanf
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	ServiceName     string   `koanf:"service_name"`
}

// MatchingConfig holds the settle and throttle delays used while driving an
// external searchable list. The external list never signals completion, so
// these are the only synchronisation points.
type MatchingConfig struct {
	ClearSettle  Duration `koanf:"clear_settle"`  // after clearing the search field
	SearchSettle Duration `koanf:"search_settle"` // after typing the identifier
	SelectSettle Duration `koanf:"select_settle"` // after selecting an entry
	Throttle     Duration `koanf:"throttle"`      // between identifiers
	ItemTimeout  Duration `koanf:"item_timeout"`  // ceiling for one identifier
}

// OCRConfig selects and configures the recognition backend.
type OCRConfig struct {
	Engine    string   `koanf:"engine"` // "remote" or "tesseract"
	URL       string   `koanf:"url"`
	APIKey    Secret   `koanf:"api_key"`
	Timeout   Duration `koanf:"timeout"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second
	Burst     int      `koanf:"burst"`
	Languages []string `koanf:"languages"`
}

// StorageConfig configures the batch history store.
type StorageConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// EventsConfig configures NATS event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
			ServiceName:     "docmatch",
		},
		Matching: MatchingConfig{
			ClearSettle:  Duration(300 * time.Millisecond),
			SearchSettle: Duration(1200 * time.Millisecond),
			SelectSettle: Duration(400 * time.Millisecond),
			Throttle:     Duration(500 * time.Millisecond),
			ItemTimeout:  Duration(5 * time.Second),
		},
		OCR: OCRConfig{
			Engine:    "remote",
			URL:       "http://localhost:5000",
			Timeout:   Duration(30 * time.Second),
			RateLimit: 2,
			Burst:     1,
			Languages: []string{"eng"},
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "~/.config/docmatch/batches",
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "docmatch",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Matching.ItemTimeout.Duration() <= 0 {
		return errors.New("matching.item_timeout must be positive")
	}
	switch c.OCR.Engine {
	case "remote":
		if c.OCR.URL == "" {
			return errors.New("ocr.url is required for the remote engine")
		}
	case "tesseract":
	default:
		return fmt.Errorf("unknown ocr engine: %q", c.OCR.Engine)
	}
	if c.OCR.RateLimit < 0 {
		return fmt.Errorf("ocr.rate_limit must be >= 0, got %v", c.OCR.RateLimit)
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return errors.New("storage.path is required when storage is enabled")
	}
	if c.Events.Enabled {
		if c.Events.URL == "" {
			return errors.New("events.url is required when events are enabled")
		}
		if strings.ContainsAny(c.Events.SubjectPrefix, " *>") || c.Events.SubjectPrefix == "" {
			return fmt.Errorf("invalid events.subject_prefix: %q", c.Events.SubjectPrefix)
		}
	}
	return nil
}

// Section decodes the named top-level section into out. Fields missing from
// every source keep the values already present in out, so callers pass a
// struct pre-filled with their defaults.
func (c *Config) Section(key string, out interface{}) error {
	if c.k == nil || !c.k.Exists(key) {
		return nil
	}
	if err := c.k.Unmarshal(key, out); err != nil {
		return fmt.Errorf("decode %s section: %w", key, err)
	}
	return nil
}
