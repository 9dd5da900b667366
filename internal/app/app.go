// Package app hosts the map screen in a glfw window drawn with WebGPU.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"bikestreets/internal/assets"
	"bikestreets/internal/camera"
	"bikestreets/internal/config"
	"bikestreets/internal/layerdata"
	"bikestreets/internal/location"
	"bikestreets/internal/mapengine"
	"bikestreets/internal/permission"
	"bikestreets/internal/renderer"
	"bikestreets/internal/report"
	"bikestreets/internal/screen"
	"bikestreets/internal/style"
	"bikestreets/internal/tileserver"
	"bikestreets/pkg/tiles"
)

const (
	KeyPanSpeed = 10.0

	// maxTextures is the tile texture count that counts as memory pressure.
	maxTextures = 512
)

type App struct {
	window   *glfw.Window
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	cfg    *config.Config
	logger *slog.Logger

	renderer  *renderer.Renderer
	camera    *camera.Camera
	tileCache *tileserver.TileCache
	debug     *tileserver.Server

	looper *mapengine.Looper
	screen *screen.Controller
	style  atomic.Pointer[style.Style]

	keys   map[glfw.Key]bool
	keysMu sync.RWMutex

	tileRequests chan tiles.TileCoord
	pending      map[tiles.TileCoord]bool
	pendingMu    sync.Mutex
	lowMemory    atomic.Bool
	stopChan     chan struct{}
	loaders      sync.WaitGroup

	fatal   error
	focused bool

	width, height int
}

// New opens the window, initializes WebGPU and creates the map screen.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("GLFW init failed: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.CocoaRetinaFramebuffer, glfw.True)

	window, err := glfw.CreateWindow(cfg.Map.Width, cfg.Map.Height, "Bike Streets", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window creation failed: %w", err)
	}

	app := &App{
		window:       window,
		cfg:          cfg,
		logger:       logger,
		width:        cfg.Map.Width,
		height:       cfg.Map.Height,
		keys:         make(map[glfw.Key]bool),
		tileRequests: make(chan tiles.TileCoord, 500),
		pending:      make(map[tiles.TileCoord]bool),
		stopChan:     make(chan struct{}),
		focused:      true,
		looper:       mapengine.NewLooper(glfw.PostEmptyEvent),
	}

	if err := app.initWebGPU(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.tileCache, err = tileserver.NewTileCache(cfg.Tiles.CacheDir, cfg.Tiles.Workers, logger)
	if err != nil {
		app.Cleanup()
		return nil, fmt.Errorf("tile cache creation failed: %w", err)
	}

	app.renderer, err = renderer.NewRenderer(app.adapter, app.device, app.queue, app.surface, uint32(app.width), uint32(app.height), logger)
	if err != nil {
		app.Cleanup()
		return nil, fmt.Errorf("renderer creation failed: %w", err)
	}

	app.camera = camera.NewCamera(cfg.Map.CenterLat, cfg.Map.CenterLon, cfg.Map.Zoom, app.width, app.height)

	if err := app.createScreen(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.setupCallbacks()

	for i := 0; i < 4; i++ {
		app.loaders.Add(1)
		go app.tileLoader()
	}

	if cfg.Debug.Addr != "" {
		app.debug = tileserver.NewServer(app.tileCache, app.style.Load, cfg.Debug.Addr, logger)
		go func() {
			if err := app.debug.Start(); err != nil {
				logger.Error("Debug server stopped", "error", err)
				report.ReportError(err)
			}
		}()
	}

	return app, nil
}

func (app *App) initWebGPU() error {
	app.instance = wgpu.CreateInstance(&wgpu.InstanceDescriptor{
		Backends: instanceBackends,
	})
	if app.instance == nil {
		return errors.New("failed to create WebGPU instance")
	}

	var err error
	app.surface, err = CreateSurface(app.instance, app.window)
	if err != nil {
		return fmt.Errorf("surface creation failed: %w", err)
	}

	app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: app.surface,
		PowerPreference:   wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		app.logger.Warn("No adapter for the surface, retrying without it", "error", err)
		app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreference_HighPerformance,
		})
		if err != nil {
			return fmt.Errorf("adapter request failed: %w", err)
		}
	}

	props := app.adapter.GetProperties()
	app.logger.Info("GPU adapter", "name", props.Name, "driver", props.DriverDescription)

	app.device, err = app.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "BikeStreetsDevice",
	})
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}

	app.queue = app.device.GetQueue()
	return nil
}

// createScreen wires the map screen to its assets, permission host and
// location provider, then runs its create/start/resume lifecycle.
func (app *App) createScreen() error {
	cfg := app.cfg

	store, err := assets.Open(cfg.Assets.Dir)
	if err != nil {
		return err
	}
	resolver, err := layerdata.ResolverFromStore(store, cfg.Assets.Manifest, app.logger)
	if err != nil {
		return err
	}
	host, err := permission.NewHost(cfg.Permission.Mode, cfg.Permission.GrantFile, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	provider, err := location.NewProvider(cfg.Location, store)
	if err != nil {
		return err
	}

	app.screen = screen.New(screen.Options{
		AccessToken: cfg.AccessToken,
		StyleURL:    cfg.StyleURL,
		Store:       store,
		LayerFolder: cfg.Assets.Folder,
		Resolver:    resolver,
		Checker:     host,
		Requester:   host,
		Provider:    provider,
		Location:    location.OptionsFrom(cfg.Location),
		Looper:      app.looper,
		Tiles:       app.tileCache,
		Camera:      app.camera,
		Logger:      app.logger,
		OnFatal: func(err error) {
			app.fatal = err
			app.window.SetShouldClose(true)
		},
	})

	saved, err := mapengine.LoadBundle(cfg.StateFile)
	if err != nil {
		app.logger.Warn("Ignoring unreadable saved state", "path", cfg.StateFile, "error", err)
		saved = nil
	}
	if err := app.screen.OnCreate(saved); err != nil {
		return err
	}
	app.screen.View().AddOnLowMemoryListener(func() {
		visible := tiles.GetVisibleTiles(app.camera.Lat, app.camera.Lon, app.camera.Zoom, app.width, app.height)
		n := app.renderer.Trim(visible)
		if app.debug != nil {
			app.debug.ResetVectorTiles()
		}
		app.logger.Info("Released tile textures", "count", n)
	})

	app.screen.OnStart()
	app.screen.OnResume()
	return nil
}

func (app *App) setupCallbacks() {
	app.window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		app.width = width
		app.height = height
		app.camera.SetViewport(width, height)
		app.renderer.Resize(uint32(width), uint32(height))
		app.prefetchTiles()
	})

	app.window.SetFocusCallback(func(w *glfw.Window, focused bool) {
		app.focused = focused
		if app.screen.View().State() == mapengine.ViewStopped {
			return
		}
		if focused {
			app.screen.OnResume()
		} else {
			app.screen.OnPause()
		}
	})

	app.window.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		if iconified {
			app.screen.OnPause()
			app.screen.OnStop()
			return
		}
		app.screen.OnStart()
		if app.focused {
			app.screen.OnResume()
		}
	})

	app.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			x, y := w.GetCursorPos()
			if action == glfw.Press {
				app.camera.StartDrag(x, y)
				app.locationComponent(func(lc *mapengine.LocationComponent) { lc.DismissTracking() })
			} else {
				app.camera.EndDrag()
				app.prefetchTiles()
			}
		}
	})

	app.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if app.camera.IsDragging() {
			app.camera.Drag(x, y)
		}
	})

	app.window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		x, y := w.GetCursorPos()
		if yoff > 0 {
			app.camera.ZoomAtPoint(1, x, y)
		} else if yoff < 0 {
			app.camera.ZoomAtPoint(-1, x, y)
		}
		app.prefetchTiles()
	})

	app.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		app.keysMu.Lock()
		if action == glfw.Press {
			app.keys[key] = true
		} else if action == glfw.Release {
			app.keys[key] = false
		}
		app.keysMu.Unlock()

		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			app.camera.ZoomOut()
			app.prefetchTiles()
		case glfw.KeyLeftShift, glfw.KeyRightShift:
			app.camera.ZoomIn()
			app.prefetchTiles()
		case glfw.KeyO:
			app.logger.Info("Bike network overlay toggled", "visible", config.ToggleLayers())
		case glfw.KeyL:
			app.locationComponent(app.resumeTracking)
		}
	})
}

// locationComponent runs fn with the location component once the map is
// available.
func (app *App) locationComponent(fn func(*mapengine.LocationComponent)) {
	if m := app.screen.Map(); m != nil {
		fn(m.LocationComponent())
	}
}

func (app *App) resumeTracking(lc *mapengine.LocationComponent) {
	opts := location.OptionsFrom(app.cfg.Location)
	err := lc.SetCameraMode(mapengine.CameraTracking, mapengine.CameraOptions{
		Transition: 300 * time.Millisecond,
		Zoom:       opts.Zoom,
	})
	if err != nil {
		app.logger.Info("Location tracking unavailable", "error", err)
	}
}

func (app *App) processInput() {
	app.keysMu.RLock()
	defer app.keysMu.RUnlock()

	panX, panY := 0.0, 0.0

	if app.keys[glfw.KeyW] || app.keys[glfw.KeyUp] {
		panY += KeyPanSpeed
	}
	if app.keys[glfw.KeyS] || app.keys[glfw.KeyDown] {
		panY -= KeyPanSpeed
	}
	if app.keys[glfw.KeyA] || app.keys[glfw.KeyLeft] {
		panX += KeyPanSpeed
	}
	if app.keys[glfw.KeyD] || app.keys[glfw.KeyRight] {
		panX -= KeyPanSpeed
	}

	if panX != 0 || panY != 0 {
		app.camera.Pan(panX, panY)
		app.locationComponent(func(lc *mapengine.LocationComponent) { lc.DismissTracking() })
	}
}

// overlayState returns the style revision tiles must be drawn for and the
// layers to draw. Hidden layers get their own revision so toggling redraws.
func (app *App) overlayState() (uint64, []style.ResolvedLayer, bool) {
	st := app.style.Load()
	if st == nil {
		return 0, nil, false
	}
	rev := st.Revision() << 1
	if !config.ShowLayers() {
		return rev | 1, nil, true
	}
	return rev, st.Snapshot(), true
}

func (app *App) tileLoader() {
	defer app.loaders.Done()
	for {
		select {
		case <-app.stopChan:
			return
		case coord := <-app.tileRequests:
			app.loadTile(coord)
		}
	}
}

func (app *App) loadTile(coord tiles.TileCoord) {
	defer func() {
		app.pendingMu.Lock()
		delete(app.pending, coord)
		app.pendingMu.Unlock()
	}()

	rev, layers, ok := app.overlayState()
	if !ok || !app.renderer.NeedsTile(coord, rev) {
		return
	}

	data, err := app.tileCache.GetTile(coord)
	if err != nil {
		app.logger.Debug("Basemap tile unavailable", "tile", coord.String(), "error", err)
	}
	if err := app.renderer.UploadTile(coord, data, rev, layers); err != nil {
		app.logger.Warn("Tile upload failed", "tile", coord.String(), "error", err)
		return
	}

	if app.renderer.TextureCount() > maxTextures && app.lowMemory.CompareAndSwap(false, true) {
		app.looper.Post(func() {
			app.screen.OnLowMemory()
			app.lowMemory.Store(false)
		})
	}
}

func (app *App) request(coord tiles.TileCoord) {
	app.pendingMu.Lock()
	if app.pending[coord] {
		app.pendingMu.Unlock()
		return
	}
	app.pending[coord] = true
	app.pendingMu.Unlock()

	select {
	case app.tileRequests <- coord:
	default:
		app.pendingMu.Lock()
		delete(app.pending, coord)
		app.pendingMu.Unlock()
	}
}

func (app *App) prefetchTiles() {
	if app.style.Load() == nil {
		return
	}
	app.tileCache.PrefetchArea(app.camera.Lat, app.camera.Lon, app.camera.Zoom, app.width, app.height)
}

func (app *App) loadVisibleTiles() {
	rev, _, ok := app.overlayState()
	if !ok {
		return
	}
	for _, coord := range tiles.GetVisibleTiles(app.camera.Lat, app.camera.Lon, app.camera.Zoom, app.width, app.height) {
		if app.renderer.NeedsTile(coord, rev) {
			app.request(coord)
		}
	}
}

// marker returns the location puck to draw, if any.
func (app *App) marker() *renderer.Marker {
	if !config.ShowLocation() {
		return nil
	}
	m := app.screen.Map()
	if m == nil {
		return nil
	}
	lc := m.LocationComponent()
	if !lc.Activated() || !lc.Enabled() {
		return nil
	}
	fix, ok := lc.LastFix()
	if !ok {
		return nil
	}
	return &renderer.Marker{
		Lat:     fix.Lat,
		Lon:     fix.Lon,
		Bearing: fix.Bearing,
		Compass: lc.RenderMode() == mapengine.RenderCompass && fix.HasBearing,
	}
}

// Run drives the UI loop until the window closes. It returns the error that
// ended the screen, if any.
func (app *App) Run() error {
	lastTime := time.Now()
	frames := 0

	for !app.window.ShouldClose() {
		view := app.screen.View()
		if view.Visible() {
			glfw.PollEvents()
		} else {
			glfw.WaitEventsTimeout(0.5)
		}

		app.looper.Drain()
		if m := app.screen.Map(); m != nil && app.style.Load() == nil {
			if st := m.Style(); st != nil {
				app.style.Store(st)
				app.prefetchTiles()
			}
		}
		if !view.Visible() {
			continue
		}

		app.processInput()
		app.camera.Update(time.Now())
		app.loadVisibleTiles()

		if err := app.renderer.Render(app.camera, app.marker()); err != nil {
			app.logger.Warn("Render error", "error", err)
		}

		frames++
		if time.Since(lastTime) >= time.Second {
			app.window.SetTitle(fmt.Sprintf("Bike Streets | Zoom: %d | Layers: %d | Location: %s | FPS: %d",
				app.camera.Zoom, len(app.screen.Layers()), app.locationStatus(), frames))
			frames = 0
			lastTime = time.Now()
		}
	}

	app.shutdownScreen()
	return app.fatal
}

// locationStatus is the camera mode once location is shown, otherwise the
// permission state.
func (app *App) locationStatus() string {
	if !app.screen.LocationActive() {
		return app.screen.PermissionState().String()
	}
	return app.screen.Map().LocationComponent().CameraMode().String()
}

// shutdownScreen runs the closing lifecycle and persists the view state.
func (app *App) shutdownScreen() {
	if app.screen == nil || app.screen.View() == nil {
		return
	}
	switch app.screen.View().State() {
	case mapengine.ViewResumed:
		app.screen.OnPause()
		app.screen.OnStop()
	case mapengine.ViewStarted, mapengine.ViewPaused:
		app.screen.OnStop()
	}

	if app.fatal == nil && app.cfg.StateFile != "" {
		out := mapengine.Bundle{}
		app.screen.OnSaveInstanceState(out)
		if err := mapengine.SaveBundle(app.cfg.StateFile, out); err != nil {
			app.logger.Warn("Failed to save map state", "path", app.cfg.StateFile, "error", err)
		}
	}
	activations := 0
	if m := app.screen.Map(); m != nil {
		activations = m.LocationComponent().Activations()
	}
	app.logger.Info("Map screen closed",
		"layers", len(app.screen.Layers()),
		"location_activations", activations,
		"permission", app.screen.PermissionState().String(),
	)
	app.screen.OnDestroy()
}

func (app *App) Cleanup() {
	close(app.stopChan)
	if app.debug != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		app.debug.Shutdown(ctx)
		cancel()
	}
	app.loaders.Wait()
	if app.renderer != nil {
		app.renderer.Release()
	}
	if app.tileCache != nil {
		app.tileCache.Close()
	}
	if app.queue != nil {
		app.queue.Release()
	}
	if app.device != nil {
		app.device.Release()
	}
	if app.adapter != nil {
		app.adapter.Release()
	}
	if app.surface != nil {
		app.surface.Release()
	}
	if app.instance != nil {
		app.instance.Release()
	}
	if app.window != nil {
		app.window.Destroy()
	}
	glfw.Terminate()
}
