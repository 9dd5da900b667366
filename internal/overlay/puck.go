package overlay

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

var (
	puckFill   = color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	puckRing   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	puckShadow = color.NRGBA{A: 0x40}
)

// Puck draws the location indicator centered in a size x size image. With
// compass set, an arrow points along bearing, in degrees clockwise from
// north.
func Puck(size int, bearing float64, compass bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := point{float64(size) / 2, float64(size) / 2}
	r := float64(size) / 6

	fill := func(col color.NRGBA, pts []point) {
		z := vector.NewRasterizer(size, size)
		fillPolygon(z, pts)
		z.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{})
	}

	fill(puckShadow, circlePoints(c, r*1.35))
	if compass {
		fill(puckFill, arrowPoints(c, r, bearing))
	}
	fill(puckRing, circlePoints(c, r*1.2))
	fill(puckFill, circlePoints(c, r))
	return img
}

// arrowPoints is a triangle just outside the ring pointing along bearing.
func arrowPoints(c point, r, bearing float64) []point {
	a := bearing * math.Pi / 180
	// Screen y grows downwards, so north is -y.
	dir := point{math.Sin(a), -math.Cos(a)}
	side := dir.perp()

	tip := c.add(dir.scale(r * 2.6))
	base := c.add(dir.scale(r * 1.1))
	return []point{
		tip,
		base.add(side.scale(r * 0.8)),
		base.sub(side.scale(r * 0.8)),
	}
}
