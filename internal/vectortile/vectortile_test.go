package vectortile

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

func denverLines() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.LineString{{-104.995, 39.735}, {-104.985, 39.745}})
	f.Properties["name"] = "Cherry Creek Trail"
	fc.Append(f)
	fc.Append(geojson.NewFeature(orb.LineString{{10, 10}, {11, 11}}))
	return fc
}

func TestEncodeDecode(t *testing.T) {
	tile := tiles.LatLonToTile(39.74, -104.99, 12)
	fc := denverLines()
	original := fc.Features[0].Geometry.(orb.LineString).Clone()

	data, err := EncodeLayer("trails", fc, tile)
	if err != nil {
		t.Fatalf("EncodeLayer: %v", err)
	}

	if got := fc.Features[0].Geometry.(orb.LineString); !got.Equal(original) {
		t.Fatalf("EncodeLayer modified its input: %v", got)
	}

	decoded, err := Decode(data, tile)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	layer, ok := decoded["trails"]
	if !ok {
		t.Fatalf("layers = %v, want trails", decoded)
	}
	if len(layer.Features) != 1 {
		t.Fatalf("decoded %d features, want the one inside the tile", len(layer.Features))
	}
	if name := layer.Features[0].Properties.MustString("name", ""); name != "Cherry Creek Trail" {
		t.Fatalf("name = %q", name)
	}

	ls, ok := layer.Features[0].Geometry.(orb.LineString)
	if !ok || len(ls) != 2 {
		t.Fatalf("geometry = %#v", layer.Features[0].Geometry)
	}
	// Tile space quantization is well under a hundredth of a degree at z12.
	if d := ls[0].Lon() - -104.995; d > 0.001 || d < -0.001 {
		t.Fatalf("first point = %v", ls[0])
	}
}

func TestEncodeEmptyTile(t *testing.T) {
	tile := tiles.LatLonToTile(0, 0, 12)
	if _, err := EncodeLayer("trails", denverLines(), tile); !errors.Is(err, ErrEmptyTile) {
		t.Fatalf("EncodeLayer = %v, want ErrEmptyTile", err)
	}
	if _, err := EncodeLayer("trails", nil, tile); !errors.Is(err, ErrEmptyTile) {
		t.Fatalf("EncodeLayer(nil) = %v, want ErrEmptyTile", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}, tiles.TileCoord{Zoom: 2}); err == nil {
		t.Fatal("Decode accepted garbage")
	}
}

func TestCache(t *testing.T) {
	tile := tiles.LatLonToTile(39.74, -104.99, 12)
	l := style.ResolvedLayer{
		Layer: style.LineLayer{ID: "trails-id", SourceID: "trails"},
		Data:  denverLines(),
	}

	c := NewCache()
	first, err := c.Layer(l, 1, tile)
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	second, err := c.Layer(l, 1, tile)
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	if &first[0] != &second[0] {
		t.Fatal("second request was not served from cache")
	}

	if _, err := c.Layer(l, 2, tile); err != nil {
		t.Fatalf("Layer at new revision: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Len after Reset = %d", c.Len())
	}
}
