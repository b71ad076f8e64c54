package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFailsValidationWithoutJellyfinURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.toml")

	cfg, _, _, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error for missing jellyfin_url, got nil (cfg=%+v)", cfg)
	}
}

func TestLoadParsesFileAndNormalizesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jellydiscord.toml")
	contents := `
jellyfin_url = "http://localhost:8096"
jellyfin_api_key = "secret"
data_dir = "~/jd-data"

[webhook_movies]
url = "https://discord.example/hook"
enabled = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatalf("expected exists=true")
	}
	if resolved == "" {
		t.Fatalf("expected a resolved path")
	}
	if !filepath.IsAbs(cfg.DataDir) {
		t.Fatalf("expected data_dir to be expanded to an absolute path, got %q", cfg.DataDir)
	}
	if !cfg.WebhookMovies.Enabled || cfg.WebhookMovies.URL == "" {
		t.Fatalf("expected webhook_movies to be parsed, got %+v", cfg.WebhookMovies)
	}
	if cfg.WebhookMovies.Mode != "individual" {
		t.Fatalf("expected default grouping mode, got %q", cfg.WebhookMovies.Mode)
	}
	if cfg.DispatcherQueueSize != defaultDispatcherQueueSize {
		t.Fatalf("expected default dispatcher queue size, got %d", cfg.DispatcherQueueSize)
	}
}

func TestValidateRequiresProviderKeyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.JellyfinURL = "http://localhost:8096"
	cfg.DataDir = "/tmp/jd"
	cfg.TMDBEnabled = true
	cfg.TMDBAPIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when tmdb_enabled is true without an api key")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "jellydiscord.toml")

	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty sample config")
	}
}
