package camera

import (
	"math"
	"testing"
	"time"
)

const (
	denverLat = 39.7392
	denverLon = -104.9903
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestGeoScreenRoundTrip(t *testing.T) {
	c := NewCamera(denverLat, denverLon, 14, 800, 600)

	x, y := c.GeoToScreen(denverLon, denverLat)
	if !near(x, 400, 1e-6) || !near(y, 300, 1e-6) {
		t.Errorf("center should project to viewport center, got %f,%f", x, y)
	}

	lon, lat := c.ScreenToGeo(123, 456)
	x, y = c.GeoToScreen(lon, lat)
	if !near(x, 123, 1e-6) || !near(y, 456, 1e-6) {
		t.Errorf("round trip gave %f,%f", x, y)
	}
}

func TestPanMovesContent(t *testing.T) {
	c := NewCamera(denverLat, denverLon, 14, 800, 600)
	x0, y0 := c.GeoToScreen(denverLon, denverLat)

	c.Pan(50, -20)
	x1, y1 := c.GeoToScreen(denverLon, denverLat)
	if !near(x1-x0, 50, 1e-6) || !near(y1-y0, -20, 1e-6) {
		t.Errorf("content moved by %f,%f", x1-x0, y1-y0)
	}
}

func TestZoomAtPointKeepsCursorFixed(t *testing.T) {
	c := NewCamera(denverLat, denverLon, 12, 800, 600)
	lon, lat := c.ScreenToGeo(600, 100)

	c.ZoomAtPoint(1, 600, 100)
	if c.Zoom != 13 {
		t.Fatalf("expected zoom 13, got %d", c.Zoom)
	}
	x, y := c.GeoToScreen(lon, lat)
	if !near(x, 600, 1e-6) || !near(y, 100, 1e-6) {
		t.Errorf("cursor point moved to %f,%f", x, y)
	}
}

func TestZoomClamped(t *testing.T) {
	c := NewCamera(0, 0, 40, 100, 100)
	if c.Zoom != MaxZoom {
		t.Errorf("expected %d, got %d", MaxZoom, c.Zoom)
	}
	c.ZoomTo(-3)
	if c.Zoom != MinZoom {
		t.Errorf("expected %d, got %d", MinZoom, c.Zoom)
	}
}

func TestAnimateTo(t *testing.T) {
	c := NewCamera(39.0, -105.0, 12, 800, 600)
	start := time.Unix(1000, 0)

	c.AnimateTo(40.0, -104.0, 15, 100*time.Millisecond, start)
	if c.Zoom != 15 {
		t.Errorf("zoom should change immediately, got %d", c.Zoom)
	}

	if !c.Update(start.Add(50 * time.Millisecond)) {
		t.Fatal("animation should still run")
	}
	if !near(c.Lat, 39.5, 1e-9) || !near(c.Lon, -104.5, 1e-9) {
		t.Errorf("halfway position %f,%f", c.Lat, c.Lon)
	}

	if c.Update(start.Add(200 * time.Millisecond)) {
		t.Fatal("animation should be done")
	}
	if c.Lat != 40.0 || c.Lon != -104.0 {
		t.Errorf("final position %f,%f", c.Lat, c.Lon)
	}
}

func TestPanCancelsAnimation(t *testing.T) {
	c := NewCamera(39.0, -105.0, 12, 800, 600)
	now := time.Now()
	c.AnimateTo(40.0, -104.0, 12, time.Second, now)
	c.Pan(1, 1)
	if c.Update(now.Add(10 * time.Millisecond)) {
		t.Error("pan should cancel the animation")
	}
}

func TestTileScreenPosition(t *testing.T) {
	c := NewCamera(denverLat, denverLon, 12, 800, 600)
	minX, minY, maxX, maxY := c.GetTileBounds()
	if minX > maxX || minY > maxY {
		t.Fatalf("empty bounds %d,%d %d,%d", minX, minY, maxX, maxY)
	}

	// The tile containing the center must cover the viewport center.
	x, y := c.GetTileScreenPosition(853, 1554)
	if x > 400 || x+256 < 400 || y > 300 || y+256 < 300 {
		t.Errorf("center tile at %f,%f does not cover the viewport center", x, y)
	}
}
