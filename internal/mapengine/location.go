package mapengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/golang/geo/s2"

	"bikestreets/internal/metrics"
	"bikestreets/internal/style"
)

var (
	ErrPermissionRequired = errors.New("location permission required")
	ErrNotActivated       = errors.New("location component not activated")
	ErrStyleNotLoaded     = errors.New("map style not loaded")
	ErrNoProvider         = errors.New("location provider required")
)

const earthRadiusMeters = 6371008.8

type CameraMode int

const (
	// CameraNone leaves the camera where the user put it.
	CameraNone CameraMode = iota
	// CameraTracking keeps the camera centered on the latest fix.
	CameraTracking
)

func (m CameraMode) String() string {
	if m == CameraTracking {
		return "tracking"
	}
	return "none"
}

type RenderMode int

const (
	RenderNormal RenderMode = iota
	// RenderCompass draws the heading arrow around the location dot.
	RenderCompass
	RenderGPS
)

func (m RenderMode) String() string {
	switch m {
	case RenderCompass:
		return "compass"
	case RenderGPS:
		return "gps"
	default:
		return "normal"
	}
}

// Fix is one position report from a LocationProvider.
type Fix struct {
	Lat        float64
	Lon        float64
	Bearing    float64
	HasBearing bool
	Time       time.Time
}

// LocationProvider delivers fixes until ctx is done. Start blocks; emit may
// be called from any goroutine.
type LocationProvider interface {
	Start(ctx context.Context, emit func(Fix)) error
}

type PermissionChecker interface {
	Granted() bool
}

type ComponentOptions struct {
	// RecenterMeters is how far a fix must drift from the camera center
	// before tracking moves the camera.
	RecenterMeters float64
}

type ActivationOptions struct {
	Style      *style.Style
	Provider   LocationProvider
	Permission PermissionChecker
	Options    ComponentOptions
}

// CameraOptions tune a camera mode change. Nil Tilt or Bearing keeps the
// current value.
type CameraOptions struct {
	Transition time.Duration
	Zoom       float64
	Tilt       *float64
	Bearing    *float64
}

// LocationComponent shows the device location on the map. It is used from
// the UI loop only.
type LocationComponent struct {
	m *Map

	opts        ActivationOptions
	activated   bool
	enabled     bool
	running     bool
	activations int

	camera     cameraState
	renderMode RenderMode

	fix    Fix
	hasFix bool

	cancel context.CancelFunc
	now    func() time.Time
}

type cameraState struct {
	mode CameraMode
	opts CameraOptions
}

func newLocationComponent(m *Map) *LocationComponent {
	return &LocationComponent{m: m, now: time.Now}
}

// Activate attaches the component to a loaded style. The permission must
// already be granted.
func (lc *LocationComponent) Activate(opts ActivationOptions) error {
	if opts.Style == nil {
		return ErrStyleNotLoaded
	}
	if opts.Permission == nil || !opts.Permission.Granted() {
		return ErrPermissionRequired
	}
	if opts.Provider == nil {
		return ErrNoProvider
	}

	lc.stopProvider()
	lc.opts = opts
	lc.activated = true
	lc.activations++
	metrics.LocationActivations.Inc()

	lc.m.engine.logger.Info("Location component activated", "activations", lc.activations)
	lc.sync()
	return nil
}

func (lc *LocationComponent) SetEnabled(enabled bool) error {
	if !lc.activated {
		return ErrNotActivated
	}
	lc.enabled = enabled
	lc.sync()
	return nil
}

func (lc *LocationComponent) SetCameraMode(mode CameraMode, opts CameraOptions) error {
	if !lc.activated {
		return ErrNotActivated
	}
	lc.camera = cameraState{mode: mode, opts: opts}

	cam := lc.m.camera
	if opts.Tilt != nil {
		cam.Tilt = *opts.Tilt
	}
	if opts.Bearing != nil {
		cam.Bearing = *opts.Bearing
	}
	if mode == CameraTracking && lc.hasFix {
		lc.follow(lc.fix, true)
	}
	return nil
}

func (lc *LocationComponent) SetRenderMode(mode RenderMode) error {
	if !lc.activated {
		return ErrNotActivated
	}
	lc.renderMode = mode
	return nil
}

// DismissTracking drops back to CameraNone, as when the user pans the map.
func (lc *LocationComponent) DismissTracking() {
	if lc.camera.mode == CameraTracking {
		lc.camera.mode = CameraNone
		lc.m.engine.logger.Debug("Location tracking dismissed")
	}
}

func (lc *LocationComponent) Activated() bool { return lc.activated }

func (lc *LocationComponent) Enabled() bool { return lc.enabled }

// Activations counts successful Activate calls.
func (lc *LocationComponent) Activations() int { return lc.activations }

func (lc *LocationComponent) CameraMode() CameraMode { return lc.camera.mode }

func (lc *LocationComponent) RenderMode() RenderMode { return lc.renderMode }

// LastFix returns the most recent fix, if any arrived since activation.
func (lc *LocationComponent) LastFix() (Fix, bool) {
	return lc.fix, lc.hasFix
}

func (lc *LocationComponent) setRunning(running bool) {
	lc.running = running
	lc.sync()
}

// sync starts or stops the provider to match the component state.
func (lc *LocationComponent) sync() {
	want := lc.activated && lc.enabled && lc.running && !lc.m.destroyed()
	switch {
	case want && lc.cancel == nil:
		lc.startProvider()
	case !want && lc.cancel != nil:
		lc.stopProvider()
	}
}

func (lc *LocationComponent) startProvider() {
	ctx, cancel := context.WithCancel(lc.m.ctx)
	lc.cancel = cancel

	provider := lc.opts.Provider
	looper := lc.m.engine.looper
	logger := lc.m.engine.logger

	go func() {
		err := provider.Start(ctx, func(f Fix) {
			looper.Post(func() {
				if ctx.Err() != nil {
					return
				}
				lc.onFix(f)
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Location provider stopped", "error", err)
		}
	}()
}

func (lc *LocationComponent) stopProvider() {
	if lc.cancel != nil {
		lc.cancel()
		lc.cancel = nil
	}
}

func (lc *LocationComponent) onFix(f Fix) {
	if f.Time.IsZero() {
		f.Time = lc.now()
	}
	lc.fix = f
	lc.hasFix = true
	metrics.LocationFixes.Inc()

	if lc.camera.mode == CameraTracking {
		lc.follow(f, false)
	}
}

// follow moves the camera onto f. Unless forced, fixes within the recenter
// threshold of the current center at the tracking zoom are ignored.
func (lc *LocationComponent) follow(f Fix, force bool) {
	cam := lc.m.camera
	zoom := cam.Zoom
	if z := lc.camera.opts.Zoom; z > 0 {
		zoom = int(math.Round(z))
	}

	if !force && zoom == cam.Zoom {
		if distanceMeters(cam.Lat, cam.Lon, f.Lat, f.Lon) <= lc.opts.Options.RecenterMeters {
			return
		}
	}
	cam.AnimateTo(f.Lat, f.Lon, zoom, lc.camera.opts.Transition, lc.now())
}

func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * earthRadiusMeters
}
