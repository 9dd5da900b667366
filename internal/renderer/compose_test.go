package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

var coord = tiles.LatLonToTile(39.7392, -104.9903, 14)

func encodePNG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func crossingLayer() []style.ResolvedLayer {
	b := coord.Bound()
	mid := (b.Min.Lat() + b.Max.Lat()) / 2
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{b.Min.Lon(), mid}, {b.Max.Lon(), mid}}))
	return []style.ResolvedLayer{{
		Layer: style.LineLayer{ID: "bikelanes-id", SourceID: "bikelanes", Paint: style.DefaultLinePaint(color.NRGBA{R: 0xb0, G: 0x0d, B: 0x0d, A: 0xff})},
		Data:  fc,
	}}
}

func TestComposeTileOverBasemap(t *testing.T) {
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	img, used := ComposeTile(encodePNG(t, TileSize, white), crossingLayer(), coord)
	if !used {
		t.Fatal("basemap not used")
	}
	if got := img.RGBAAt(5, 5); got != white {
		t.Fatalf("background = %v, want basemap white", got)
	}
	line := img.RGBAAt(128, 128)
	if line.A != 0xff || line.R <= line.G {
		t.Fatalf("line pixel = %v, want opaque red blend", line)
	}
	if line.G == 0 {
		t.Fatalf("line pixel %v shows no basemap through 70%% opacity", line)
	}
}

func TestComposeTileScalesRetinaBasemap(t *testing.T) {
	blue := color.RGBA{B: 0xff, A: 0xff}
	img, used := ComposeTile(encodePNG(t, 512, blue), nil, coord)
	if !used || img.RGBAAt(200, 30) != blue {
		t.Fatalf("used=%v pixel=%v", used, img.RGBAAt(200, 30))
	}
}

func TestComposeTileWithoutBasemap(t *testing.T) {
	for name, data := range map[string][]byte{
		"missing": nil,
		"garbage": []byte("not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			img, used := ComposeTile(data, crossingLayer(), coord)
			if used {
				t.Fatal("basemap reported as used")
			}
			if got := img.RGBAAt(5, 5); got != placeholderColor {
				t.Fatalf("background = %v, want placeholder", got)
			}
			if got := img.RGBAAt(128, 128); got == placeholderColor {
				t.Fatal("overlay missing on placeholder tile")
			}
		})
	}
}
