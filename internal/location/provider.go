package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"bikestreets/internal/assets"
	"bikestreets/internal/config"
	"bikestreets/internal/layerdata"
	"bikestreets/internal/mapengine"
)

var ErrNoTrack = errors.New("no LineString track found")

// Fixed reports a single stationary position.
type Fixed struct {
	Lat float64
	Lon float64
}

func (f Fixed) Start(ctx context.Context, emit func(mapengine.Fix)) error {
	emit(mapengine.Fix{Lat: f.Lat, Lon: f.Lon, Time: time.Now()})
	<-ctx.Done()
	return ctx.Err()
}

// Replay walks the points of a recorded track, one per Interval, with the
// bearing toward the next point. It loops unless Once is set.
type Replay struct {
	Track    orb.LineString
	Interval time.Duration
	Once     bool
}

// LoadReplay reads the first LineString from a GeoJSON document in store.
func LoadReplay(store assets.Store, name string, interval time.Duration) (*Replay, error) {
	rc, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	fc, err := layerdata.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode track %s: %w", name, err)
	}
	track := firstLineString(fc)
	if len(track) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoTrack)
	}
	return &Replay{Track: track, Interval: interval}, nil
}

func firstLineString(fc *geojson.FeatureCollection) orb.LineString {
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			return g
		case orb.MultiLineString:
			if len(g) > 0 {
				return g[0]
			}
		}
	}
	return nil
}

// Fixes returns the fixes the replay emits on one pass.
func (r *Replay) Fixes() []mapengine.Fix {
	fixes := make([]mapengine.Fix, len(r.Track))
	for i, p := range r.Track {
		fixes[i] = mapengine.Fix{Lon: p.Lon(), Lat: p.Lat()}
		if i+1 < len(r.Track) {
			fixes[i].Bearing = normalizeBearing(geo.Bearing(p, r.Track[i+1]))
			fixes[i].HasBearing = true
		} else if i > 0 {
			fixes[i].Bearing = fixes[i-1].Bearing
			fixes[i].HasBearing = true
		}
	}
	return fixes
}

func (r *Replay) Start(ctx context.Context, emit func(mapengine.Fix)) error {
	fixes := r.Fixes()
	if len(fixes) == 0 {
		return ErrNoTrack
	}
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if i == len(fixes) {
			if r.Once {
				<-ctx.Done()
				return ctx.Err()
			}
			i = 0
		}
		f := fixes[i]
		f.Time = time.Now()
		emit(f)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// normalizeBearing maps geo.Bearing's (-180, 180] onto [0, 360).
func normalizeBearing(b float64) float64 {
	if b < 0 {
		b += 360
	}
	return b
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.Location, store assets.Store) (mapengine.LocationProvider, error) {
	switch cfg.Provider {
	case "fixed":
		return Fixed{Lat: cfg.Lat, Lon: cfg.Lon}, nil
	case "replay":
		return LoadReplay(store, cfg.Track, time.Duration(cfg.IntervalMS)*time.Millisecond)
	}
	return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
}

// OptionsFrom converts the configured tracking settings.
func OptionsFrom(cfg config.Location) Options {
	opts := DefaultOptions()
	if cfg.TransitionMS > 0 {
		opts.Transition = time.Duration(cfg.TransitionMS) * time.Millisecond
	}
	if cfg.TrackingZoom > 0 {
		opts.Zoom = cfg.TrackingZoom
	}
	if cfg.RecenterMeters > 0 {
		opts.RecenterMeters = cfg.RecenterMeters
	}
	return opts
}
