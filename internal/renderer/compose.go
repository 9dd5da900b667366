package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"bikestreets/internal/overlay"
	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

// TileSize is the texture size of one tile.
const TileSize = tiles.TileSize

var placeholderColor = color.RGBA{R: 0xe8, G: 0xe6, B: 0xe1, A: 0xff}

// ComposeTile decodes a basemap tile and draws layers over it. A tile that
// is missing or does not decode is replaced by a flat background so the
// overlay still shows. It reports whether the basemap was used.
func ComposeTile(basemap []byte, layers []style.ResolvedLayer, coord tiles.TileCoord) (*image.RGBA, bool) {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))

	used := false
	if len(basemap) > 0 {
		if src, _, err := image.Decode(bytes.NewReader(basemap)); err == nil {
			b := src.Bounds()
			if b.Dx() == TileSize && b.Dy() == TileSize {
				draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
			} else {
				scaleNearest(img, src)
			}
			used = true
		}
	}
	if !used {
		draw.Draw(img, img.Bounds(), image.NewUniform(placeholderColor), image.Point{}, draw.Src)
	}

	overlay.Draw(img, layers, coord)
	return img, used
}

// scaleNearest resamples src onto dst, for basemaps served at 512px.
func scaleNearest(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	for y := 0; y < db.Dy(); y++ {
		sy := sb.Min.Y + y*sb.Dy()/db.Dy()
		for x := 0; x < db.Dx(); x++ {
			sx := sb.Min.X + x*sb.Dx()/db.Dx()
			dst.Set(x, y, src.At(sx, sy))
		}
	}
}
