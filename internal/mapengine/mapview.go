package mapengine

import (
	"bikestreets/internal/camera"
)

type ViewState int

const (
	ViewInitialized ViewState = iota
	ViewCreated
	ViewStarted
	ViewResumed
	ViewPaused
	ViewStopped
	ViewDestroyed
)

func (s ViewState) String() string {
	return [...]string{"initialized", "created", "started", "resumed", "paused", "stopped", "destroyed"}[s]
}

// Surface receives every lifecycle transition of the hosting screen.
type Surface interface {
	OnCreate(saved Bundle)
	OnStart()
	OnResume()
	OnPause()
	OnStop()
	OnLowMemory()
	OnDestroy()
	OnSaveInstanceState(out Bundle)
}

const (
	stateCameraLat  = "mapview.camera.lat"
	stateCameraLon  = "mapview.camera.lon"
	stateCameraZoom = "mapview.camera.zoom"
)

// MapView hosts one Map and follows the screen lifecycle.
type MapView struct {
	engine    *Engine
	m         *Map
	state     ViewState
	lowMemory []func()
}

var _ Surface = (*MapView)(nil)

func NewMapView(engine *Engine, cam *camera.Camera) *MapView {
	return &MapView{
		engine: engine,
		m:      newMap(engine, cam),
	}
}

// GetMapAsync hands the map to fn on the UI loop. Nothing runs once the
// view is destroyed.
func (v *MapView) GetMapAsync(fn func(*Map)) {
	v.engine.looper.Post(func() {
		if v.state == ViewDestroyed {
			return
		}
		fn(v.m)
	})
}

// Map returns the view's map for host code on the UI loop.
func (v *MapView) Map() *Map {
	return v.m
}

func (v *MapView) State() ViewState {
	return v.state
}

// Visible reports whether the surface should be drawn.
func (v *MapView) Visible() bool {
	switch v.state {
	case ViewStarted, ViewResumed, ViewPaused:
		return true
	}
	return false
}

// AddOnLowMemoryListener registers fn to run when the host is short on
// memory.
func (v *MapView) AddOnLowMemoryListener(fn func()) {
	v.lowMemory = append(v.lowMemory, fn)
}

func (v *MapView) OnCreate(saved Bundle) {
	if saved != nil {
		cam := v.m.camera
		lat, okLat := saved.Float(stateCameraLat)
		lon, okLon := saved.Float(stateCameraLon)
		if okLat && okLon {
			zoom := float64(cam.Zoom)
			if z, ok := saved.Float(stateCameraZoom); ok {
				zoom = z
			}
			cam.CenterOn(lat, lon, int(zoom))
		}
	}
	v.transition(ViewCreated)
}

func (v *MapView) OnStart() {
	v.transition(ViewStarted)
	v.m.location.setRunning(true)
}

func (v *MapView) OnResume() {
	v.transition(ViewResumed)
}

func (v *MapView) OnPause() {
	v.transition(ViewPaused)
}

func (v *MapView) OnStop() {
	v.m.location.setRunning(false)
	v.transition(ViewStopped)
}

func (v *MapView) OnLowMemory() {
	v.engine.logger.Warn("Low memory, trimming map caches")
	for _, fn := range v.lowMemory {
		fn()
	}
}

func (v *MapView) OnDestroy() {
	v.m.location.setRunning(false)
	v.m.cancel()
	v.transition(ViewDestroyed)
}

func (v *MapView) OnSaveInstanceState(out Bundle) {
	cam := v.m.camera
	out[stateCameraLat] = cam.Lat
	out[stateCameraLon] = cam.Lon
	out[stateCameraZoom] = cam.Zoom
}

func (v *MapView) transition(to ViewState) {
	v.engine.logger.Debug("Map view lifecycle", "from", v.state, "to", to)
	v.state = to
}
