package camera

import (
	"math"
	"time"

	"bikestreets/pkg/tiles"
)

const (
	MinZoom = tiles.MinZoom
	MaxZoom = tiles.MaxZoom

	maxMercatorLat = 85.0511
)

// Camera represents the map camera/viewport
type Camera struct {
	// Geographic position (center of view)
	Lat float64
	Lon float64

	Zoom int

	// Tilt and Bearing are carried for location tracking. The renderer
	// draws top-down, north up.
	Tilt    float64
	Bearing float64

	ViewportWidth  int
	ViewportHeight int

	anim *animation

	isDragging bool
	lastDragX  float64
	lastDragY  float64
}

type animation struct {
	fromLat, fromLon float64
	toLat, toLon     float64
	start            time.Time
	duration         time.Duration
}

// NewCamera creates a new camera centered on given coordinates
func NewCamera(lat, lon float64, zoom int, width, height int) *Camera {
	c := &Camera{
		Lat:            lat,
		Lon:            lon,
		Zoom:           clampZoom(zoom),
		ViewportWidth:  width,
		ViewportHeight: height,
	}
	c.clampPosition()
	return c
}

func clampZoom(z int) int {
	return max(MinZoom, min(z, MaxZoom))
}

// SetViewport updates the viewport dimensions
func (c *Camera) SetViewport(width, height int) {
	c.ViewportWidth = width
	c.ViewportHeight = height
}

// Pan moves the camera by the given pixel delta. Positive deltas move the
// map content right and down.
func (c *Camera) Pan(deltaX, deltaY float64) {
	x, y := tiles.WorldPixel(c.Lat, c.Lon, c.Zoom)
	c.Lat, c.Lon = tiles.PixelToLatLon(x-deltaX, y-deltaY, c.Zoom)
	c.anim = nil
	c.clampPosition()
}

func (c *Camera) ZoomIn() {
	c.ZoomTo(c.Zoom + 1)
}

func (c *Camera) ZoomOut() {
	c.ZoomTo(c.Zoom - 1)
}

func (c *Camera) ZoomTo(zoom int) {
	c.Zoom = clampZoom(zoom)
}

// ZoomAtPoint zooms by delta levels keeping the point under the cursor fixed.
func (c *Camera) ZoomAtPoint(delta int, screenX, screenY float64) {
	lon, lat := c.ScreenToGeo(screenX, screenY)

	newZoom := clampZoom(c.Zoom + delta)
	if newZoom == c.Zoom {
		return
	}
	c.Zoom = newZoom

	newX, newY := c.GeoToScreen(lon, lat)
	c.Pan(screenX-newX, screenY-newY)
}

// CenterOn jumps to a position, cancelling any animation.
func (c *Camera) CenterOn(lat, lon float64, zoom int) {
	c.anim = nil
	c.Lat, c.Lon = lat, lon
	c.Zoom = clampZoom(zoom)
	c.clampPosition()
}

// AnimateTo moves to a position over d. Zoom changes immediately; the
// position is interpolated by Update.
func (c *Camera) AnimateTo(lat, lon float64, zoom int, d time.Duration, now time.Time) {
	c.Zoom = clampZoom(zoom)
	if d <= 0 {
		c.CenterOn(lat, lon, zoom)
		return
	}
	c.anim = &animation{
		fromLat: c.Lat, fromLon: c.Lon,
		toLat: lat, toLon: lon,
		start:    now,
		duration: d,
	}
}

// Update advances a running animation. It reports whether one is still
// running.
func (c *Camera) Update(now time.Time) bool {
	if c.anim == nil {
		return false
	}
	a := c.anim
	t := float64(now.Sub(a.start)) / float64(a.duration)
	if t >= 1 {
		c.Lat, c.Lon = a.toLat, a.toLon
		c.anim = nil
		c.clampPosition()
		return false
	}
	t = max(0, t)
	c.Lat = a.fromLat + (a.toLat-a.fromLat)*t
	c.Lon = a.fromLon + (a.toLon-a.fromLon)*t
	c.clampPosition()
	return true
}

// ScreenToGeo converts screen coordinates to geographic coordinates
func (c *Camera) ScreenToGeo(screenX, screenY float64) (lon, lat float64) {
	cx, cy := tiles.WorldPixel(c.Lat, c.Lon, c.Zoom)
	wx := cx + screenX - float64(c.ViewportWidth)/2
	wy := cy + screenY - float64(c.ViewportHeight)/2
	lat, lon = tiles.PixelToLatLon(wx, wy, c.Zoom)
	return lon, lat
}

// GeoToScreen converts geographic coordinates to screen coordinates
func (c *Camera) GeoToScreen(lon, lat float64) (screenX, screenY float64) {
	cx, cy := tiles.WorldPixel(c.Lat, c.Lon, c.Zoom)
	tx, ty := tiles.WorldPixel(lat, lon, c.Zoom)
	return tx - cx + float64(c.ViewportWidth)/2, ty - cy + float64(c.ViewportHeight)/2
}

// StartDrag begins a drag operation
func (c *Camera) StartDrag(x, y float64) {
	c.isDragging = true
	c.lastDragX = x
	c.lastDragY = y
}

// Drag continues a drag operation
func (c *Camera) Drag(x, y float64) {
	if !c.isDragging {
		return
	}
	c.Pan(x-c.lastDragX, y-c.lastDragY)
	c.lastDragX = x
	c.lastDragY = y
}

func (c *Camera) EndDrag() {
	c.isDragging = false
}

func (c *Camera) IsDragging() bool {
	return c.isDragging
}

func (c *Camera) clampPosition() {
	for c.Lon > 180 {
		c.Lon -= 360
	}
	for c.Lon < -180 {
		c.Lon += 360
	}
	c.Lat = max(-maxMercatorLat, min(c.Lat, maxMercatorLat))
}

// GetTileBounds returns the range of tile indices covering the viewport,
// with one tile of margin.
func (c *Camera) GetTileBounds() (minX, minY, maxX, maxY int) {
	cx, cy := tiles.WorldPixel(c.Lat, c.Lon, c.Zoom)
	halfW := float64(c.ViewportWidth) / 2
	halfH := float64(c.ViewportHeight) / 2
	maxTile := 1<<uint(c.Zoom) - 1

	minX = max(0, int(math.Floor((cx-halfW)/tiles.TileSize))-1)
	minY = max(0, int(math.Floor((cy-halfH)/tiles.TileSize))-1)
	maxX = min(maxTile, int(math.Ceil((cx+halfW)/tiles.TileSize))+1)
	maxY = min(maxTile, int(math.Ceil((cy+halfH)/tiles.TileSize))+1)
	return minX, minY, maxX, maxY
}

// GetTileScreenPosition returns the screen position for a tile's top-left corner
func (c *Camera) GetTileScreenPosition(tileX, tileY int) (screenX, screenY float64) {
	cx, cy := tiles.WorldPixel(c.Lat, c.Lon, c.Zoom)
	screenX = float64(tileX*tiles.TileSize) - cx + float64(c.ViewportWidth)/2
	screenY = float64(tileY*tiles.TileSize) - cy + float64(c.ViewportHeight)/2
	return screenX, screenY
}
