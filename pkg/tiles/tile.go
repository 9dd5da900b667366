package tiles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	TileSize = 256
	MinZoom  = 2
	MaxZoom  = 18
)

// TileCoord represents a tile coordinate in the slippy map format
type TileCoord struct {
	X    int
	Y    int
	Zoom int
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Valid reports whether the coordinate names a real tile.
func (t TileCoord) Valid() bool {
	if t.Zoom < 0 || t.Zoom > MaxZoom {
		return false
	}
	m := maxIndex(t.Zoom)
	return t.X >= 0 && t.X <= m && t.Y >= 0 && t.Y <= m
}

// Maptile converts to the orb tile type.
func (t TileCoord) Maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// Bound returns the tile's lon/lat bounds.
func (t TileCoord) Bound() orb.Bound {
	return t.Maptile().Bound()
}

// ValidateTemplate checks that a tile URL template carries {z}, {x} and {y}.
func ValidateTemplate(template string) error {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, p) {
			return fmt.Errorf("tile template %q has no %s placeholder", template, p)
		}
	}
	return nil
}

// Expand fills a URL template. Supported placeholders are {z}, {x}, {y}
// and {token}.
func Expand(template string, t TileCoord, token string) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{token}", token,
	)
	return r.Replace(template)
}

// maxIndex is the largest tile index at zoom.
func maxIndex(zoom int) int {
	return 1<<uint(zoom) - 1
}

func clampIndex(v, zoom int) int {
	return max(0, min(v, maxIndex(zoom)))
}

// LatLonToTile converts latitude/longitude to tile coordinates at a given zoom level
func LatLonToTile(lat, lon float64, zoom int) TileCoord {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0
	x := int((lon + 180.0) / 360.0 * n)
	y := int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	return TileCoord{X: clampIndex(x, zoom), Y: clampIndex(y, zoom), Zoom: zoom}
}

// TileToLatLon returns the top-left corner of a tile.
func TileToLatLon(t TileCoord) (lat, lon float64) {
	n := math.Exp2(float64(t.Zoom))
	lon = float64(t.X)/n*360.0 - 180.0
	lat = math.Atan(math.Sinh(math.Pi*(1-2*float64(t.Y)/n))) * 180.0 / math.Pi
	return lat, lon
}

// WorldPixel projects lon/lat to global pixel coordinates at zoom.
func WorldPixel(lat, lon float64, zoom int) (x, y float64) {
	size := math.Exp2(float64(zoom)) * TileSize
	latRad := lat * math.Pi / 180.0
	x = (lon + 180.0) / 360.0 * size
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * size
	return x, y
}

// PixelToLatLon is the inverse of WorldPixel.
func PixelToLatLon(x, y float64, zoom int) (lat, lon float64) {
	size := math.Exp2(float64(zoom)) * TileSize
	lon = x/size*360.0 - 180.0
	lat = math.Atan(math.Sinh(math.Pi*(1-2*y/size))) * 180.0 / math.Pi
	return lat, lon
}

// GetAdjacentTiles returns the right, left, down and up neighbours that exist.
func GetAdjacentTiles(t TileCoord) []TileCoord {
	limit := maxIndex(t.Zoom)
	adjacent := make([]TileCoord, 0, 4)
	for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		x, y := t.X+d[0], t.Y+d[1]
		if x < 0 || y < 0 || x > limit || y > limit {
			continue
		}
		adjacent = append(adjacent, TileCoord{X: x, Y: y, Zoom: t.Zoom})
	}
	return adjacent
}

// area returns the tiles in a (2*halfX+1) x (2*halfY+1) block around center.
// Half sizes are clamped to the size of the zoom level.
func area(center TileCoord, halfX, halfY int) []TileCoord {
	limit := maxIndex(center.Zoom)
	halfX = max(0, min(halfX, limit))
	halfY = max(0, min(halfY, limit))
	out := make([]TileCoord, 0, (2*halfX+1)*(2*halfY+1))
	for dy := -halfY; dy <= halfY; dy++ {
		for dx := -halfX; dx <= halfX; dx++ {
			x, y := center.X+dx, center.Y+dy
			if x >= 0 && x <= limit && y >= 0 && y <= limit {
				out = append(out, TileCoord{X: x, Y: y, Zoom: center.Zoom})
			}
		}
	}
	return out
}

// GetVisibleTiles returns all tiles visible in a viewport, plus a border.
func GetVisibleTiles(centerLat, centerLon float64, zoom int, viewportWidth, viewportHeight int) []TileCoord {
	if zoom < MinZoom || zoom > MaxZoom {
		return nil
	}
	tilesX := viewportWidth/TileSize + 3
	tilesY := viewportHeight/TileSize + 3
	return area(LatLonToTile(centerLat, centerLon, zoom), tilesX/2, tilesY/2)
}

// GetPrefetchTiles returns roughly five viewports of tiles at zoom, then the
// neighbouring zoom levels.
func GetPrefetchTiles(centerLat, centerLon float64, zoom int, viewportWidth, viewportHeight int) []TileCoord {
	if zoom < MinZoom || zoom > MaxZoom {
		return nil
	}
	halfX := int(float64(viewportWidth/TileSize+2)*2.5) / 2
	halfY := int(float64(viewportHeight/TileSize+2)*2.5) / 2

	out := area(LatLonToTile(centerLat, centerLon, zoom), halfX, halfY)

	for _, offset := range []int{-1, 1} {
		adjZoom := zoom + offset
		if adjZoom < MinZoom || adjZoom > MaxZoom {
			continue
		}
		hx, hy := halfX/2, halfY/2
		if offset == 1 {
			hx, hy = halfX, halfY
		}
		out = append(out, area(LatLonToTile(centerLat, centerLon, adjZoom), hx, hy)...)
	}
	return out
}
