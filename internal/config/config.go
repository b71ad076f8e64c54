package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"jellydiscord/internal/model"
)

// WebhookConfig is one Discord webhook target plus its gating policy.
type WebhookConfig struct {
	URL     string `toml:"url"`
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"grouping_mode"` // individual, by_event, by_type, grouped
}

// ChangeWatchConfig mirrors model.WatchPolicy in TOML form; a nil pointer
// field means "use the default (enabled)".
type ChangeWatchConfig struct {
	Resolution    *bool `toml:"resolution"`
	Codec         *bool `toml:"codec"`
	AudioCodec    *bool `toml:"audio_codec"`
	AudioChannels *bool `toml:"audio_channels"`
	HDRStatus     *bool `toml:"hdr_status"`
	FileSize      *bool `toml:"file_size"`
	ProviderIDs   *bool `toml:"provider_ids"`
}

// ToPolicy converts the TOML-facing change-watch configuration into the
// detector's policy mask.
func (c ChangeWatchConfig) ToPolicy() model.WatchPolicy {
	return model.WatchPolicy{
		Resolution:    c.Resolution,
		Codec:         c.Codec,
		AudioCodec:    c.AudioCodec,
		AudioChannels: c.AudioChannels,
		HDRStatus:     c.HDRStatus,
		FileSize:      c.FileSize,
		ProviderIDs:   c.ProviderIDs,
	}
}

// ColorPalette maps the bridge's semantic color choices to Discord's 0..16777215 range.
type ColorPalette struct {
	NewItem     int `toml:"new_item"`
	Resolution  int `toml:"resolution"`
	Codec       int `toml:"codec"`
	AudioCodec  int `toml:"audio_codec"`
	HDRStatus   int `toml:"hdr_status"`
	ProviderIDs int `toml:"provider_ids"`
	Default     int `toml:"default"`
}

// Config encapsulates all configuration values for the bridge.
type Config struct {
	DataDir     string `toml:"data_dir"`
	TemplateDir string `toml:"template_dir"`
	APIBind     string `toml:"api_bind"`

	JellyfinURL    string `toml:"jellyfin_url"`
	JellyfinAPIKey string `toml:"jellyfin_api_key"`

	WebhookMovies  WebhookConfig `toml:"webhook_movies"`
	WebhookTV      WebhookConfig `toml:"webhook_tv"`
	WebhookMusic   WebhookConfig `toml:"webhook_music"`
	WebhookDefault WebhookConfig `toml:"webhook_default"`

	ChangeWatch ChangeWatchConfig `toml:"change_watch"`
	Colors      ColorPalette      `toml:"colors"`

	OMDBAPIKey          string `toml:"omdb_api_key"`
	OMDBEnabled         bool   `toml:"omdb_enabled"`
	TMDBAPIKey          string `toml:"tmdb_api_key"`
	TMDBEnabled         bool   `toml:"tmdb_enabled"`
	TVDBAPIKey          string `toml:"tvdb_api_key"`
	TVDBEnabled         bool   `toml:"tvdb_enabled"`
	RatingCacheTTLHours int    `toml:"rating_cache_ttl_hours"`

	SyncBatchSize       int `toml:"sync_batch_size"`
	SyncIntervalHours   int `toml:"sync_interval_hours"`
	VacuumIntervalHours int `toml:"vacuum_interval_hours"`

	DispatcherQueueSize   int `toml:"dispatcher_queue_size"`
	DispatcherWindowSecs  int `toml:"dispatcher_window_seconds"`
	DispatcherWindowLimit int `toml:"dispatcher_window_limit"`
	DispatcherMaxRetries  int `toml:"dispatcher_max_retries"`

	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
}

const (
	defaultDataDir             = "~/.local/share/jellydiscord"
	defaultTemplateDir         = "~/.config/jellydiscord/templates"
	defaultAPIBind             = "127.0.0.1:8420"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSyncBatchSize       = 200
	defaultSyncIntervalHours   = 24
	defaultVacuumIntervalHours = 24
	defaultDispatcherQueueSize   = 1000
	defaultDispatcherWindowSecs  = 60
	defaultDispatcherWindowLimit = 30
	defaultDispatcherMaxRetries  = 3
	defaultRatingCacheTTLHours   = 168
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DataDir:     defaultDataDir,
		TemplateDir: defaultTemplateDir,
		APIBind:     defaultAPIBind,
		LogFormat:   defaultLogFormat,
		LogLevel:    defaultLogLevel,
		Colors: ColorPalette{
			NewItem:     0x2ECC71, // green
			Resolution:  0x3498DB,
			Codec:       0x9B59B6,
			AudioCodec:  0x9B59B6,
			HDRStatus:   0xF1C40F,
			ProviderIDs: 0x95A5A6,
			Default:     0x7F8C8D,
		},
		RatingCacheTTLHours:   defaultRatingCacheTTLHours,
		SyncBatchSize:         defaultSyncBatchSize,
		SyncIntervalHours:     defaultSyncIntervalHours,
		VacuumIntervalHours:   defaultVacuumIntervalHours,
		DispatcherQueueSize:   defaultDispatcherQueueSize,
		DispatcherWindowSecs:  defaultDispatcherWindowSecs,
		DispatcherWindowLimit: defaultDispatcherWindowLimit,
		DispatcherMaxRetries:  defaultDispatcherMaxRetries,
	}
}

// DefaultConfigPath returns the expanded path of the default config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jellydiscord/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
// The returned config has all path fields expanded to absolute form.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/jellydiscord/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("jellydiscord.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.DataDir, err = expandPath(c.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if strings.TrimSpace(c.TemplateDir) == "" {
		c.TemplateDir = defaultTemplateDir
	}
	if c.TemplateDir, err = expandPath(c.TemplateDir); err != nil {
		return fmt.Errorf("template_dir: %w", err)
	}

	if c.JellyfinAPIKey == "" {
		c.JellyfinAPIKey = strings.TrimSpace(os.Getenv("JELLYFIN_API_KEY"))
	}
	if c.TMDBAPIKey == "" {
		c.TMDBAPIKey = strings.TrimSpace(os.Getenv("TMDB_API_KEY"))
	}
	if c.OMDBAPIKey == "" {
		c.OMDBAPIKey = strings.TrimSpace(os.Getenv("OMDB_API_KEY"))
	}
	if c.TVDBAPIKey == "" {
		c.TVDBAPIKey = strings.TrimSpace(os.Getenv("TVDB_API_KEY"))
	}
	for _, wh := range []*WebhookConfig{&c.WebhookMovies, &c.WebhookTV, &c.WebhookMusic, &c.WebhookDefault} {
		if wh.Mode == "" {
			wh.Mode = "individual"
		}
	}

	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.APIBind == "" {
		c.APIBind = defaultAPIBind
	}
	if c.SyncBatchSize <= 0 {
		c.SyncBatchSize = defaultSyncBatchSize
	}
	if c.SyncIntervalHours <= 0 {
		c.SyncIntervalHours = defaultSyncIntervalHours
	}
	if c.VacuumIntervalHours <= 0 {
		c.VacuumIntervalHours = defaultVacuumIntervalHours
	}
	if c.DispatcherQueueSize <= 0 {
		c.DispatcherQueueSize = defaultDispatcherQueueSize
	}
	if c.DispatcherWindowSecs <= 0 {
		c.DispatcherWindowSecs = defaultDispatcherWindowSecs
	}
	if c.DispatcherWindowLimit <= 0 {
		c.DispatcherWindowLimit = defaultDispatcherWindowLimit
	}
	if c.DispatcherMaxRetries <= 0 {
		c.DispatcherMaxRetries = defaultDispatcherMaxRetries
	}
	if c.RatingCacheTTLHours <= 0 {
		c.RatingCacheTTLHours = defaultRatingCacheTTLHours
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JellyfinURL) == "" {
		return errors.New("jellyfin_url must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"sync_batch_size":           c.SyncBatchSize,
		"sync_interval_hours":       c.SyncIntervalHours,
		"vacuum_interval_hours":     c.VacuumIntervalHours,
		"dispatcher_queue_size":     c.DispatcherQueueSize,
		"dispatcher_window_seconds": c.DispatcherWindowSecs,
		"dispatcher_window_limit":   c.DispatcherWindowLimit,
		"dispatcher_max_retries":    c.DispatcherMaxRetries,
	}); err != nil {
		return err
	}
	if c.TMDBEnabled && strings.TrimSpace(c.TMDBAPIKey) == "" {
		return errors.New("tmdb_api_key must be set when tmdb_enabled is true")
	}
	if c.OMDBEnabled && strings.TrimSpace(c.OMDBAPIKey) == "" {
		return errors.New("omdb_api_key must be set when omdb_enabled is true")
	}
	if c.TVDBEnabled && strings.TrimSpace(c.TVDBAPIKey) == "" {
		return errors.New("tvdb_api_key must be set when tvdb_enabled is true")
	}
	return nil
}

// EnsureDirectories creates the directories the daemon needs at startup.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.TemplateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InitCompletePath returns the sentinel file path recording that the first
// full reconciliation has succeeded.
func (c *Config) InitCompletePath() string {
	return filepath.Join(c.DataDir, "init_complete")
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "jellydiscord.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository's path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// CreateSample writes a fully commented sample configuration file.
func CreateSample(path string) error {
	sample := `# jellydiscord configuration
# ===========================
# Edit the REQUIRED settings below, then customize optional settings.

# ----------------------------------------------------------------------------
# REQUIRED
# ----------------------------------------------------------------------------
jellyfin_url = "http://localhost:8096"
jellyfin_api_key = ""                     # or set JELLYFIN_API_KEY

# ----------------------------------------------------------------------------
# STORAGE
# ----------------------------------------------------------------------------
data_dir = "~/.local/share/jellydiscord"
template_dir = "~/.config/jellydiscord/templates"
api_bind = "127.0.0.1:8420"

# ----------------------------------------------------------------------------
# DISCORD WEBHOOKS
# ----------------------------------------------------------------------------
[webhook_movies]
url = ""
enabled = false
grouping_mode = "individual"

[webhook_tv]
url = ""
enabled = false
grouping_mode = "by_event"

[webhook_music]
url = ""
enabled = false
grouping_mode = "individual"

[webhook_default]
url = ""
enabled = false
grouping_mode = "individual"

# ----------------------------------------------------------------------------
# METADATA PROVIDERS (optional)
# ----------------------------------------------------------------------------
tmdb_enabled = false
tmdb_api_key = ""          # or set TMDB_API_KEY
omdb_enabled = false
omdb_api_key = ""          # or set OMDB_API_KEY
tvdb_enabled = false
tvdb_api_key = ""          # or set TVDB_API_KEY
rating_cache_ttl_hours = 168

# ----------------------------------------------------------------------------
# SYNC & MAINTENANCE
# ----------------------------------------------------------------------------
sync_batch_size = 200
sync_interval_hours = 24
vacuum_interval_hours = 24

# ----------------------------------------------------------------------------
# DISPATCHER
# ----------------------------------------------------------------------------
dispatcher_queue_size = 1000
dispatcher_window_seconds = 60
dispatcher_window_limit = 30
dispatcher_max_retries = 3

# ----------------------------------------------------------------------------
# LOGGING
# ----------------------------------------------------------------------------
log_format = "console"   # console or json
log_level = "info"
`
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sample), 0o644)
}
