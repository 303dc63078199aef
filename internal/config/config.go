// Package config loads and persists the driftline configuration file.
//
// The file lives under the XDG config home and is merged over embedded
// defaults, so a partial file is always valid. Secret-bearing fields accept
// ${ENV_VAR} references that resolve at load time and never get written
// back.
package config

import (
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"driftline/pkg/drift"
)

//go:embed default_config.yml
var defaultConfigFS embed.FS

const appDir = "driftline"

// FeedConfig is one subscribed feed entry.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AIConfig selects and authenticates the AI provider.
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// InsightConfig controls per-article insight generation.
type InsightConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
	// Persona is a free-form reader profile that personalizes insights
	// and bookmark analysis when set.
	Persona string `yaml:"persona"`
}

// ObsidianConfig controls the Obsidian vault exporter.
type ObsidianConfig struct {
	Enabled            bool   `yaml:"enabled"`
	VaultPath          string `yaml:"vault_path"`
	Folder             string `yaml:"folder"`
	AutoSave           bool   `yaml:"auto_save"`
	IncludeInsight     bool   `yaml:"include_insight"`
	IncludeTranslation bool   `yaml:"include_translation"`
	TagsPrefix         string `yaml:"tags_prefix"`
}

// NotionConfig controls the Notion database exporter.
type NotionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// DigestConfig controls cross-bookmark digest generation.
type DigestConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PeriodDays  int    `yaml:"period_days"`
	MaxArticles int    `yaml:"max_articles"`
	Language    string `yaml:"language"`
}

// RuntimeConfig tunes the background task machinery.
type RuntimeConfig struct {
	Workers     int    `yaml:"workers"`
	TaskTimeout string `yaml:"task_timeout"`
	LogLevel    string `yaml:"log_level"`
}

// Config is the full configuration tree.
type Config struct {
	Language               string         `yaml:"language"`
	Theme                  string         `yaml:"theme"`
	AI                     AIConfig       `yaml:"ai"`
	Feeds                  []FeedConfig   `yaml:"feeds"`
	RefreshIntervalMinutes int            `yaml:"refresh_interval_minutes"`
	Insight                InsightConfig  `yaml:"insight"`
	BookmarkDir            string         `yaml:"bookmark_dir"`
	Obsidian               ObsidianConfig `yaml:"obsidian"`
	Notion                 NotionConfig   `yaml:"notion"`
	Digest                 DigestConfig   `yaml:"digest"`
	Runtime                RuntimeConfig  `yaml:"runtime"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appDir, "config.yml")
}

// DataDir returns the directory holding the database and bookmark notes.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appDir)
}

// DBPath returns the SQLite database location.
func DBPath() string {
	return filepath.Join(DataDir(), "driftline.db")
}

// LogPath returns the log file location. Logs go to a file because the
// TUI owns the terminal.
func LogPath() string {
	return filepath.Join(xdg.StateHome, appDir, "driftline.log")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yml")
	if err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded config: %w", err)
	}

	return &cfg, nil
}

// Load reads the config at path, merging it over the embedded defaults.
// A missing file is seeded with the defaults on first run. knownProviders
// lists the accepted ai.provider values; pass nil to skip that check.
func Load(path string, knownProviders []string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Best effort: a read-only config home still yields a working
			// default configuration.
			_ = writeDefaults(path)

			return cfg, nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unmarshalling over the defaults keeps every field the file omits.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.AI.APIKey = resolveEnv(cfg.AI.APIKey)
	cfg.Notion.Token = resolveEnv(cfg.Notion.Token)

	if err := validate(cfg, knownProviders); err != nil {
		return nil, err
	}

	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := defaultConfigFS.ReadFile("default_config.yml")
	if err != nil {
		return err
	}

	// The file may hold API keys once edited, so owner-only from the start.
	return os.WriteFile(path, data, 0o600)
}

// resolveEnv substitutes a whole-value ${ENV_VAR} reference, leaving any
// other value untouched. An unset variable resolves to empty.
func resolveEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}

	return value
}

func validate(cfg *Config, knownProviders []string) error {
	if len(knownProviders) > 0 {
		known := false
		for _, name := range knownProviders {
			if name == cfg.AI.Provider {
				known = true

				break
			}
		}
		if !known {
			return fmt.Errorf("ai: unknown provider %q (valid: %s)",
				cfg.AI.Provider, strings.Join(knownProviders, ", "))
		}
	}

	seenNames := make(map[string]struct{}, len(cfg.Feeds))
	seenURLs := make(map[string]struct{}, len(cfg.Feeds))
	for i, feed := range cfg.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("feed %d: url is required", i)
		}
		parsed, err := url.Parse(feed.URL)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", feed.URL, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", feed.URL, parsed.Scheme)
		}
		if _, dup := seenURLs[feed.URL]; dup {
			return fmt.Errorf("feed %q: duplicate url", feed.URL)
		}
		seenURLs[feed.URL] = struct{}{}
		if feed.Name != "" {
			if _, dup := seenNames[feed.Name]; dup {
				return fmt.Errorf("feed %q: duplicate name %q", feed.URL, feed.Name)
			}
			seenNames[feed.Name] = struct{}{}
		}
	}

	return nil
}

// RefreshInterval returns the auto-refresh period, defaulting to 30 minutes.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalMinutes <= 0 {
		return 30 * time.Minute
	}

	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// BookmarkPath returns the bookmark notes directory, defaulting to the
// data dir and expanding a leading tilde.
func (c *Config) BookmarkPath() string {
	if c.BookmarkDir == "" {
		return filepath.Join(DataDir(), "bookmarks")
	}

	return expandTilde(c.BookmarkDir)
}

// DriftFeeds converts the configured feeds to their domain form, deriving
// stable ids and defaulting missing names to the url.
func (c *Config) DriftFeeds() []drift.Feed {
	feeds := make([]drift.Feed, 0, len(c.Feeds))
	for _, feed := range c.Feeds {
		name := feed.Name
		if name == "" {
			name = feed.URL
		}
		feeds = append(feeds, drift.Feed{
			ID:   drift.DeriveFeedID(feed.URL),
			URL:  feed.URL,
			Name: name,
		})
	}

	return feeds
}

// Vault returns the vault path with a leading tilde expanded.
func (o ObsidianConfig) Vault() string {
	return expandTilde(o.VaultPath)
}

// Period returns the digest lookback in days, defaulting to 7.
func (d DigestConfig) Period() int {
	if d.PeriodDays <= 0 {
		return 7
	}

	return d.PeriodDays
}

// ArticleLimit returns the digest article cap, defaulting to 20.
func (d DigestConfig) ArticleLimit() int {
	if d.MaxArticles <= 0 {
		return 20
	}

	return d.MaxArticles
}

// WorkerCount returns the task worker pool size, defaulting to 3.
func (r RuntimeConfig) WorkerCount() int {
	if r.Workers <= 0 {
		return 3
	}

	return r.Workers
}

// TaskTimeoutDuration returns the per-task deadline, defaulting to 90s.
func (r RuntimeConfig) TaskTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.TaskTimeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}

	return d
}

// SlogLevel maps the configured log level to slog, defaulting to info.
func (r RuntimeConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(r.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	return path
}
