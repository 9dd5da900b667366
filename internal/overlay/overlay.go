// Package overlay rasterizes style line layers and the location puck on the
// CPU.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"

	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

// RenderTile draws layers over tile t into a transparent size x size image.
func RenderTile(layers []style.ResolvedLayer, t tiles.TileCoord, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	Draw(img, layers, t)
	return img
}

// Draw composites layers, in order, over dst, which covers tile t. Each layer
// is rasterized once so its opacity applies to the layer as a whole.
func Draw(dst draw.Image, layers []style.ResolvedLayer, t tiles.TileCoord) int {
	b := dst.Bounds()
	size := b.Dx()
	if size == 0 {
		return 0
	}
	scale := float64(size) / tiles.TileSize

	proj := projector{tile: t, scale: scale}
	drawn := 0
	for _, l := range layers {
		if l.Data == nil || len(l.Data.Features) == 0 {
			continue
		}

		z := vector.NewRasterizer(b.Dx(), b.Dy())
		s := newStroker(z, l.Layer.Paint, scale)
		cull := paddedBound(t, l.Layer.Paint.Width)

		n := 0
		for _, f := range l.Data.Features {
			if f.Geometry == nil || !f.Geometry.Bound().Intersects(cull) {
				continue
			}
			n += strokeGeometry(s, proj, f.Geometry)
		}
		if n == 0 {
			continue
		}

		src := image.NewUniform(withOpacity(l.Layer.Paint.Color, l.Layer.Paint.Opacity))
		z.Draw(dst, b, src, image.Point{})
		drawn++
	}
	return drawn
}

// paddedBound grows the tile bound by the stroke width so lines just outside
// the tile still draw their edges.
func paddedBound(t tiles.TileCoord, width float64) orb.Bound {
	bound := t.Bound()
	degPerPixel := (bound.Max.Lon() - bound.Min.Lon()) / tiles.TileSize
	return bound.Pad(degPerPixel * width)
}

func strokeGeometry(s *stroker, proj projector, g orb.Geometry) int {
	switch g := g.(type) {
	case orb.LineString:
		s.polyline(proj.line(g))
		return 1
	case orb.MultiLineString:
		for _, ls := range g {
			s.polyline(proj.line(orb.LineString(ls)))
		}
		return len(g)
	case orb.Ring:
		s.polyline(proj.line(orb.LineString(g)))
		return 1
	case orb.Polygon:
		for _, r := range g {
			s.polyline(proj.line(orb.LineString(r)))
		}
		return len(g)
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += strokeGeometry(s, proj, p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range g {
			n += strokeGeometry(s, proj, c)
		}
		return n
	}
	return 0
}

// projector maps lon/lat to pixels relative to the tile's top-left corner.
type projector struct {
	tile  tiles.TileCoord
	scale float64
}

func (p projector) point(pt orb.Point) point {
	x, y := tiles.WorldPixel(pt.Lat(), pt.Lon(), p.tile.Zoom)
	return point{
		x: (x - float64(p.tile.X*tiles.TileSize)) * p.scale,
		y: (y - float64(p.tile.Y*tiles.TileSize)) * p.scale,
	}
}

func (p projector) line(ls orb.LineString) []point {
	pts := make([]point, len(ls))
	for i, pt := range ls {
		pts[i] = p.point(pt)
	}
	return pts
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	opacity = max(0, min(opacity, 1))
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}
