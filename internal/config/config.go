package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"coursecal/internal/model"
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultDaysAhead = 30
	defaultRefresh   = "*/15 * * * *"
	defaultCacheDir  = "./var/ics-cache"
	defaultUserAgent = "coursecal/1.0.0"
	defaultLogLevel  = "info"

	FallbackFuzzy        = "fuzzy"
	FallbackDefaultTable = "default-table"
)

// ErrEmptyPath is returned when Load or Save is called without a path.
var ErrEmptyPath = errors.New("config path is empty")

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MatchConfig controls how assignments are related to schedule events.
type MatchConfig struct {
	// Fallback applies when Keywords is empty:
	//   - "fuzzy" (default): shared significant words
	//   - "default-table": the built-in keyword table
	Fallback string `yaml:"fallback" json:"fallback" env:"COURSECAL_MATCH_FALLBACK"`

	// Keywords are explicit assignment→event keyword pairs.
	Keywords []model.KeywordPair `yaml:"keywords" json:"keywords"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"COURSECAL_LISTEN"`

	// ICSURL is the schedule feed (TimeEdit or any ICS export).
	ICSURL string `yaml:"ics_url" json:"ics_url" env:"COURSECAL_ICS_URL"`

	// DaysAhead bounds which events are considered for matching.
	DaysAhead int `yaml:"days_ahead" json:"days_ahead" env:"COURSECAL_DAYS_AHEAD"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for refetching the feed while serving.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"COURSECAL_REFRESH"`

	// CacheDir holds per-URL feed bodies and HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" env:"COURSECAL_CACHE_DIR"`

	UserAgent string `yaml:"user_agent" json:"user_agent" env:"COURSECAL_USER_AGENT"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"COURSECAL_LOG_LEVEL"`

	Match MatchConfig `yaml:"match" json:"match"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		DaysAhead:   defaultDaysAhead,
		RefreshCron: defaultRefresh,
		CacheDir:    defaultCacheDir,
		UserAgent:   defaultUserAgent,
		LogLevel:    defaultLogLevel,
		Match: MatchConfig{
			Fallback: FallbackFuzzy,
			Keywords: []model.KeywordPair{},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DaysAhead <= 0 {
		c.DaysAhead = defaultDaysAhead
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	switch c.Match.Fallback {
	case FallbackFuzzy, FallbackDefaultTable:
		// ok
	default:
		c.Match.Fallback = FallbackFuzzy
	}
	if c.Match.Keywords == nil {
		c.Match.Keywords = []model.KeywordPair{}
	}

	// Empty credentials disable auth rather than locking everyone out.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path and applies COURSECAL_*
// environment overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
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

	tmp, err := os.CreateTemp(dir, ".coursecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
