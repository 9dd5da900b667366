package layerdata

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"bikestreets/internal/assets"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		features int
	}{
		{"empty collection", `{"type":"FeatureCollection","features":[]}`, 0},
		{"null features", `{"type":"FeatureCollection","features":null}`, 0},
		{"collection", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, 2},
		{"single feature", `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`, 1},
		{"bare geometry", `{"type":"MultiLineString","coordinates":[[[0,0],[1,1]],[[2,2],[3,3]]]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := Decode(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(fc.Features) != tt.features {
				t.Errorf("expected %d features, got %d", tt.features, len(fc.Features))
			}
		})
	}
}

func TestDecodeWrapsGeometry(t *testing.T) {
	fc, err := DecodeBytes([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fc.Features[0].Geometry.(orb.LineString); !ok {
		t.Errorf("expected LineString, got %T", fc.Features[0].Geometry)
	}
}

func TestDecodeMalformed(t *testing.T) {
	docs := map[string]string{
		"empty input":      ``,
		"truncated":        `{"type":"FeatureCollection","features":[`,
		"not an object":    `[1,2,3]`,
		"missing type":     `{"features":[]}`,
		"unknown type":     `{"type":"Topology"}`,
		"bad coordinates":  `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":"nope"}}]}`,
		"feature bad geom": `{"type":"Feature","geometry":{"type":"Point","coordinates":{}}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecodeReadError(t *testing.T) {
	_, err := Decode(failingReader{})
	if err == nil || errors.Is(err, ErrMalformed) {
		t.Fatalf("expected plain read error, got %v", err)
	}
}

func TestBundledFilesDecode(t *testing.T) {
	store := assets.Embedded()
	names, err := store.List("geojson")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			rc, err := store.Open("geojson/" + name)
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()

			fc, err := Decode(rc)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			s := Summarize(fc)
			if s.Features == 0 {
				t.Error("bundled layer has no features")
			}
			if s.ByType["Point"] != 0 {
				t.Error("bundled layers should only carry lines")
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	fc, err := DecodeBytes([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[2,-1],[3,0]]}},
		{"type":"Feature","geometry":null}]}`))
	if err != nil {
		t.Fatal(err)
	}
	s := Summarize(fc)
	if s.Features != 2 || s.ByType["LineString"] != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
	want := orb.Bound{Min: orb.Point{0, -1}, Max: orb.Point{3, 1}}
	if s.Bound != want {
		t.Errorf("expected bound %v, got %v", want, s.Bound)
	}
}
