// Package config holds the application settings, loaded from a JSON file
// over built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"bikestreets/pkg/tiles"
)

const (
	EnvAccessToken = "BIKESTREETS_ACCESS_TOKEN"
	EnvSentryDSN   = "SENTRY_DSN"

	// StreetsStyleURL is the Mapbox Streets basemap as raster tiles.
	StreetsStyleURL = "https://api.mapbox.com/styles/v1/mapbox/streets-v11/tiles/256/{z}/{x}/{y}?access_token={token}"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration and feature flags
type Config struct {
	AccessToken string `json:"access_token"`
	StyleURL    string `json:"style_url"`
	SentryDSN   string `json:"sentry_dsn"`
	Env         string `json:"env"`

	// StateFile keeps the map view state between runs.
	StateFile string `json:"state_file"`

	Assets     Assets     `json:"assets"`
	Map        Map        `json:"map"`
	Location   Location   `json:"location"`
	Permission Permission `json:"permission"`
	Tiles      Tiles      `json:"tiles"`
	Debug      Debug      `json:"debug"`
	Logging    Logging    `json:"logging"`
	Features   Features   `json:"features"`
}

type Assets struct {
	// Dir overrides the embedded bundle with a directory on disk.
	Dir      string `json:"dir"`
	Folder   string `json:"folder"`
	Manifest string `json:"manifest"`
}

// Map is the initial camera used when there is no saved state.
type Map struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	Zoom      int     `json:"zoom"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

type Location struct {
	// Provider is "fixed" or "replay".
	Provider       string  `json:"provider"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Track          string  `json:"track"`
	IntervalMS     int     `json:"interval_ms"`
	TrackingZoom   float64 `json:"tracking_zoom"`
	TransitionMS   int     `json:"transition_ms"`
	RecenterMeters float64 `json:"recenter_meters"`
}

type Permission struct {
	// Mode is "allow", "deny" or "prompt".
	Mode      string `json:"mode"`
	GrantFile string `json:"grant_file"`
}

type Tiles struct {
	CacheDir string `json:"cache_dir"`
	Workers  int    `json:"workers"`
}

type Debug struct {
	// Addr enables the debug HTTP server when set.
	Addr string `json:"addr"`
}

type Logging struct {
	Level string `json:"level"`
}

// Features contains runtime toggles
type Features struct {
	// ShowLayers draws the bike network over the basemap.
	ShowLayers bool `json:"show_layers"`

	// ShowLocation draws the location puck.
	ShowLocation bool `json:"show_location"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		StyleURL:  StreetsStyleURL,
		Env:       "development",
		StateFile: "bikestreets-state.json",
		Assets: Assets{
			Folder:   "geojson",
			Manifest: "manifest.json",
		},
		Map: Map{
			CenterLat: 39.7392,
			CenterLon: -104.9903,
			Zoom:      12,
			Width:     1280,
			Height:    800,
		},
		Location: Location{
			Provider:       "replay",
			Lat:            39.7392,
			Lon:            -104.9903,
			Track:          "tracks/cherry-creek-ride.geojson",
			IntervalMS:     1000,
			TrackingZoom:   15,
			TransitionMS:   10,
			RecenterMeters: 5,
		},
		Permission: Permission{
			Mode:      "prompt",
			GrantFile: ".bikestreets-location-granted",
		},
		Tiles: Tiles{
			CacheDir: "tile_cache",
			Workers:  4,
		},
		Logging: Logging{
			Level: "info",
		},
		Features: Features{
			ShowLayers:   true,
			ShowLocation: true,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// The access token and Sentry DSN can be overridden from the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if token := os.Getenv(EnvAccessToken); token != "" {
		cfg.AccessToken = token
	}
	if dsn := os.Getenv(EnvSentryDSN); dsn != "" {
		cfg.SentryDSN = dsn
	}
	return cfg, nil
}

// Save writes cfg to path
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs []error
	if c.AccessToken == "" {
		errs = append(errs, fmt.Errorf("access_token is empty (set %s)", EnvAccessToken))
	}
	if err := tiles.ValidateTemplate(c.StyleURL); err != nil {
		errs = append(errs, err)
	}
	if c.Map.Zoom < tiles.MinZoom || c.Map.Zoom > tiles.MaxZoom {
		errs = append(errs, fmt.Errorf("map.zoom %d outside [%d, %d]", c.Map.Zoom, tiles.MinZoom, tiles.MaxZoom))
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, fmt.Errorf("map size %dx%d must be positive", c.Map.Width, c.Map.Height))
	}
	switch c.Location.Provider {
	case "fixed":
	case "replay":
		if c.Location.Track == "" {
			errs = append(errs, errors.New("location.track is required for the replay provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown location.provider %q", c.Location.Provider))
	}
	switch c.Permission.Mode {
	case "allow", "deny", "prompt":
	default:
		errs = append(errs, fmt.Errorf("unknown permission.mode %q", c.Permission.Mode))
	}
	if c.Tiles.Workers < 0 {
		errs = append(errs, fmt.Errorf("tiles.workers %d is negative", c.Tiles.Workers))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown logging.level %q", s)
	}
	return l, nil
}

// SetCurrent installs cfg as the process-wide configuration for runtime
// toggles.
func SetCurrent(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the global configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = DefaultConfig()
	}
	return instance
}

// ToggleLayers flips Features.ShowLayers and returns the new value.
func ToggleLayers() bool {
	cfg := Get()
	mu.Lock()
	defer mu.Unlock()
	cfg.Features.ShowLayers = !cfg.Features.ShowLayers
	return cfg.Features.ShowLayers
}

// ShowLayers reports whether the bike network overlay is drawn.
func ShowLayers() bool {
	cfg := Get()
	mu.RLock()
	defer mu.RUnlock()
	return cfg.Features.ShowLayers
}

// ShowLocation reports whether the location puck is drawn.
func ShowLocation() bool {
	cfg := Get()
	mu.RLock()
	defer mu.RUnlock()
	return cfg.Features.ShowLocation
}
