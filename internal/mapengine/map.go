package mapengine

import (
	"context"
	"strings"
	"sync"

	"bikestreets/internal/camera"
	"bikestreets/internal/report"
	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

// Map is the map owned by a MapView. Apart from Style, which the renderer
// reads from its own goroutines, it is used from the UI loop only.
type Map struct {
	engine   *Engine
	camera   *camera.Camera
	location *LocationComponent

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	style *style.Style
}

func newMap(engine *Engine, cam *camera.Camera) *Map {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Map{
		engine: engine,
		camera: cam,
		ctx:    ctx,
		cancel: cancel,
	}
	m.location = newLocationComponent(m)
	return m
}

func (m *Map) Camera() *camera.Camera {
	return m.camera
}

func (m *Map) LocationComponent() *LocationComponent {
	return m.location
}

// Style returns the loaded style, or nil before the first load completes.
func (m *Map) Style() *style.Style {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.style
}

// SetStyle loads a basemap style in the background and posts onLoaded to
// the UI loop once it is ready. url is a tile template; {token} is replaced
// with the engine access token. If the template is unusable the style never
// loads and onLoaded is not called.
func (m *Map) SetStyle(url string, onLoaded func(*style.Style)) {
	st := style.New(url)
	resolved := strings.ReplaceAll(url, "{token}", m.engine.token)
	center := tiles.LatLonToTile(m.camera.Lat, m.camera.Lon, m.camera.Zoom)
	logger := m.engine.logger

	go func() {
		if err := m.engine.tiles.SetURLTemplate(resolved); err != nil {
			logger.Error("Failed to load map style", "style", url, "error", err)
			report.ReportError(err)
			return
		}

		if _, err := m.engine.tiles.GetTile(center); err != nil {
			logger.Warn("Could not warm basemap tile", "tile", center.String(), "error", err)
		}

		m.engine.looper.Post(func() {
			if m.ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			m.style = st
			m.mu.Unlock()

			logger.Info("Map style loaded", "style", url)
			if onLoaded != nil {
				onLoaded(st)
			}
		})
	}()
}

func (m *Map) destroyed() bool {
	return m.ctx.Err() != nil
}
