// Package screen is the single map screen: it owns the map view, renders the
// bundled layers once the style is ready and shows the device location once
// the permission is granted.
package screen

import (
	"errors"
	"fmt"
	"log/slog"

	"bikestreets/internal/assets"
	"bikestreets/internal/camera"
	"bikestreets/internal/layerdata"
	"bikestreets/internal/location"
	"bikestreets/internal/mapengine"
	"bikestreets/internal/metrics"
	"bikestreets/internal/permission"
	"bikestreets/internal/report"
	"bikestreets/internal/style"
)

type Options struct {
	AccessToken string
	StyleURL    string

	Store       assets.Store
	LayerFolder string
	Resolver    style.Resolver

	Checker   permission.Checker
	Requester permission.Requester
	Provider  mapengine.LocationProvider
	Location  location.Options

	Looper *mapengine.Looper
	Tiles  mapengine.TileSource
	Camera *camera.Camera
	Logger *slog.Logger

	// OnFatal receives errors the screen cannot recover from, such as an
	// unreadable asset bundle. The host is expected to exit.
	OnFatal func(error)
}

// Controller drives the screen. All methods run on the UI loop.
type Controller struct {
	opts   Options
	logger *slog.Logger

	engine      *mapengine.Engine
	view        *mapengine.MapView
	coordinator *permission.Coordinator
	display     *location.Display

	m  *mapengine.Map
	st *style.Style

	styleReady        bool
	permissionGranted bool
	locationShown     bool
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LayerFolder == "" {
		opts.LayerFolder = assets.LayerFolder
	}
	if opts.OnFatal == nil {
		opts.OnFatal = func(err error) {
			opts.Logger.Error("Fatal screen error", "error", err)
		}
	}
	return &Controller{opts: opts, logger: opts.Logger}
}

// OnCreate initializes the engine, requests the style and starts the
// permission flow.
func (c *Controller) OnCreate(saved mapengine.Bundle) error {
	engine, err := mapengine.Init(c.opts.AccessToken, c.opts.Looper, c.opts.Tiles, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize map engine: %w", err)
	}
	c.engine = engine

	c.view = mapengine.NewMapView(engine, c.opts.Camera)
	c.view.OnCreate(saved)

	c.coordinator = permission.NewCoordinator(
		c.opts.Checker,
		c.opts.Requester,
		c.opts.Looper.Post,
		c.onPermissionGranted,
		c.logger,
	)
	c.display = &location.Display{
		Provider:   c.opts.Provider,
		Permission: c.coordinator,
		Options:    c.opts.Location,
	}

	c.view.GetMapAsync(func(m *mapengine.Map) {
		c.m = m
		m.SetStyle(c.opts.StyleURL, c.onStyleLoaded)
	})
	c.coordinator.Start()
	return nil
}

func (c *Controller) OnStart()  { c.view.OnStart() }
func (c *Controller) OnResume() { c.view.OnResume() }
func (c *Controller) OnPause()  { c.view.OnPause() }
func (c *Controller) OnStop()   { c.view.OnStop() }

func (c *Controller) OnLowMemory() { c.view.OnLowMemory() }

func (c *Controller) OnDestroy() { c.view.OnDestroy() }

func (c *Controller) OnSaveInstanceState(out mapengine.Bundle) {
	c.view.OnSaveInstanceState(out)
}

func (c *Controller) onStyleLoaded(st *style.Style) {
	c.st = st
	c.styleReady = true
	c.maybeShowLocation()

	if err := c.renderLayers(st); err != nil {
		report.ReportError(err)
		c.opts.OnFatal(err)
	}
}

func (c *Controller) onPermissionGranted() {
	c.permissionGranted = true
	c.maybeShowLocation()
}

// maybeShowLocation activates the location display the first time both the
// style and the permission are available.
func (c *Controller) maybeShowLocation() {
	if !c.styleReady || !c.permissionGranted || c.locationShown {
		return
	}
	c.locationShown = true

	if err := c.display.Show(c.m, c.st); err != nil {
		c.logger.Error("Failed to show device location", "error", err)
		report.ReportError(err)
	}
}

func (c *Controller) renderLayers(st *style.Style) error {
	loader := layerdata.NewLoader(c.opts.Store, c.opts.LayerFolder, c.opts.Resolver, c.logger)
	layers, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to read layer assets: %w", err)
	}

	for _, l := range layers {
		ok, err := style.Render(st, l.Descriptor, l.Collection)
		switch {
		case errors.Is(err, style.ErrDuplicateSource), errors.Is(err, style.ErrDuplicateLayer):
			c.logger.Warn("Skipping duplicate layer", "file", l.File, "source", l.Descriptor.Name, "error", err)
			metrics.LayersSkipped.WithLabelValues("duplicate").Inc()
			continue
		case err != nil:
			c.logger.Error("Failed to render layer", "file", l.File, "error", err)
			report.ReportError(err)
			continue
		case !ok:
			c.logger.Info("Skipping empty layer", "file", l.File)
			metrics.LayersSkipped.WithLabelValues("empty").Inc()
			continue
		}

		id := l.Descriptor.LayerID()
		metrics.LayersRegistered.Inc()
		c.logger.Info("Registered layer",
			"file", l.File,
			"layer", id,
			"color", style.Hex(l.Descriptor.Paint.Color),
			"features", len(l.Collection.Features),
		)
	}
	return nil
}

// Layers returns the registered layer ids in render order.
func (c *Controller) Layers() []string {
	if c.st == nil {
		return nil
	}
	return c.st.LayerIDs()
}

// LocationActive reports whether the location display was shown.
func (c *Controller) LocationActive() bool {
	return c.m != nil && c.m.LocationComponent().Activated()
}

func (c *Controller) View() *mapengine.MapView {
	return c.view
}

// Map returns the map once GetMapAsync delivered it, otherwise nil.
func (c *Controller) Map() *mapengine.Map {
	return c.m
}

// Style returns the loaded style, or nil while loading.
func (c *Controller) Style() *style.Style {
	return c.st
}

func (c *Controller) PermissionState() permission.State {
	if c.coordinator == nil {
		return permission.Unrequested
	}
	return c.coordinator.State()
}
