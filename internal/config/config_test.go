package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StyleURL != StreetsStyleURL || cfg.Map.Zoom != 12 || cfg.Location.TrackingZoom != 15 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"access_token":"file-token","map":{"zoom":14},"permission":{"mode":"deny"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessToken != "file-token" || cfg.Map.Zoom != 14 || cfg.Permission.Mode != "deny" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Map.Width != 1280 {
		t.Fatalf("unset field lost its default: width = %d", cfg.Map.Width)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvAccessToken, "env-token")
	t.Setenv(EnvSentryDSN, "https://key@sentry.example/1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessToken != "env-token" || cfg.SentryDSN != "https://key@sentry.example/1" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Location.Provider = "fixed"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Location.Provider != "fixed" {
		t.Fatalf("provider = %q", got.Location.Provider)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing token", func(c *Config) { c.AccessToken = "" }, false},
		{"template without placeholders", func(c *Config) { c.StyleURL = "https://tiles.example/tile.png" }, false},
		{"zoom out of range", func(c *Config) { c.Map.Zoom = 30 }, false},
		{"unknown provider", func(c *Config) { c.Location.Provider = "gps" }, false},
		{"replay without track", func(c *Config) { c.Location.Track = "" }, false},
		{"unknown permission mode", func(c *Config) { c.Permission.Mode = "maybe" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AccessToken = "token"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestToggleLayers(t *testing.T) {
	SetCurrent(DefaultConfig())
	t.Cleanup(func() { SetCurrent(nil) })

	if !ShowLayers() {
		t.Fatal("layers hidden by default")
	}
	if ToggleLayers() || ShowLayers() {
		t.Fatal("ToggleLayers did not hide layers")
	}
	if !ShowLocation() {
		t.Fatal("location hidden by default")
	}
}
