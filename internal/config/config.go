package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SpreadsheetConfig describes where the exam schedule comes from.
type SpreadsheetConfig struct {
	// Path is the server-side spreadsheet replaced by uploads and refreshes.
	Path string `yaml:"path" json:"path"`

	// HeaderRow is the 1-based header row. Zero auto-detects it.
	HeaderRow int `yaml:"header_row" json:"header_row"`

	// Strict limits matching to the class column.
	Strict bool `yaml:"strict" json:"strict"`

	// SemesterStart (YYYY-MM-DD) enables dates written only as 第N周周D.
	SemesterStart string `yaml:"semester_start,omitempty" json:"semester_start,omitempty"`

	// SourceURL, when set, is polled on the Refresh cron schedule.
	SourceURL string `yaml:"source_url,omitempty" json:"source_url,omitempty"`
	Refresh   string `yaml:"refresh" json:"refresh"`
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`
}

// CalendarConfig tunes the generated ICS files.
type CalendarConfig struct {
	ProductID       string `yaml:"product_id" json:"product_id"`
	IOSProductID    string `yaml:"ios_product_id" json:"ios_product_id"`
	UIDDomain       string `yaml:"uid_domain" json:"uid_domain"`
	Category        string `yaml:"category" json:"category"`
	AlarmMinutes    int    `yaml:"alarm_minutes" json:"alarm_minutes"`
	BatchAlarmHours int    `yaml:"batch_alarm_hours" json:"batch_alarm_hours"`
}

// StoreConfig selects the download store backend.
type StoreConfig struct {
	// Backend is "memory" (default) or "sqlite".
	Backend string        `yaml:"backend" json:"backend"`
	Path    string        `yaml:"path" json:"path"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	// Sweep is the cron schedule for deleting expired files.
	Sweep string `yaml:"sweep" json:"sweep"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// BasicAuthConfig protects the upload endpoint.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen   string `yaml:"listen" json:"listen"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet" json:"spreadsheet"`
	Calendar    CalendarConfig    `yaml:"calendar" json:"calendar"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	Upload      UploadConfig      `yaml:"upload" json:"upload"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:3000"
	defaultSpreadsheet  = "./data/exam.xlsx"
	defaultRefresh      = "*/30 * * * *"
	defaultCacheDir     = "./var/sheet-cache"
	defaultProductID    = "-//examcal//Exam Schedule Export//ZH"
	defaultIOSProductID = "-//Apple Inc.//iOS 17.0//EN"
	defaultUIDDomain    = "examcal.local"
	defaultCategory     = "考试"
	defaultStorePath    = "./var/downloads.db"
	defaultSweep        = "*/5 * * * *"
	defaultMaxBytes     = 10 << 20
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}

	s := &c.Spreadsheet
	if s.Path == "" {
		s.Path = defaultSpreadsheet
	}
	if s.HeaderRow < 0 {
		s.HeaderRow = 0
	}
	if s.Refresh == "" {
		s.Refresh = defaultRefresh
	}
	if s.CacheDir == "" {
		s.CacheDir = defaultCacheDir
	}

	cal := &c.Calendar
	if cal.ProductID == "" {
		cal.ProductID = defaultProductID
	}
	if cal.IOSProductID == "" {
		cal.IOSProductID = defaultIOSProductID
	}
	if cal.UIDDomain == "" {
		cal.UIDDomain = defaultUIDDomain
	}
	if cal.Category == "" {
		cal.Category = defaultCategory
	}
	if cal.AlarmMinutes <= 0 {
		cal.AlarmMinutes = 60
	}
	if cal.BatchAlarmHours <= 0 {
		cal.BatchAlarmHours = 24
	}

	st := &c.Store
	switch st.Backend {
	case "memory", "sqlite":
	default:
		st.Backend = "memory"
	}
	if st.Path == "" {
		st.Path = defaultStorePath
	}
	if st.TTL <= 0 {
		st.TTL = time.Hour
	}
	if st.Sweep == "" {
		st.Sweep = defaultSweep
	}

	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultMaxBytes
	}
}

// AlarmLead is the reminder lead time for calendars generated over HTTP.
func (c *Config) AlarmLead() time.Duration {
	return time.Duration(c.Calendar.AlarmMinutes) * time.Minute
}

// BatchAlarmLead is the reminder lead time for the generate command.
func (c *Config) BatchAlarmLead() time.Duration {
	return time.Duration(c.Calendar.BatchAlarmHours) * time.Hour
}

// SemesterStart parses Spreadsheet.SemesterStart. The zero time means the
// teaching-week fallback is disabled.
func (c *Config) SemesterStart() (time.Time, error) {
	if c.Spreadsheet.SemesterStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.Spreadsheet.SemesterStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid semester_start %q: %w", c.Spreadsheet.SemesterStart, err)
	}
	return t, nil
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - A .env file in the working directory is loaded when present, then
//     EXAMCAL_* variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Missing .env is the common case.
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.Normalize()

	return cfg, nil
}

// applyEnv overrides fields from EXAMCAL_* environment variables.
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"EXAMCAL_LISTEN", &c.Listen},
		{"EXAMCAL_LOG_LEVEL", &c.LogLevel},
		{"EXAMCAL_SPREADSHEET", &c.Spreadsheet.Path},
		{"EXAMCAL_STORE_BACKEND", &c.Store.Backend},
		{"EXAMCAL_STORE_PATH", &c.Store.Path},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.dst = v
		}
	}
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".examcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
