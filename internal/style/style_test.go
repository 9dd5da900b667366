package style

import (
	"errors"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func lineCollection(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		fc.Append(geojson.NewFeature(orb.LineString{{-104.99, 39.74}, {-104.98, 39.75}}))
	}
	return fc
}

func TestFilenamePolicy(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"1-bikestreets-master-v0.3.geojson", "#061f78"},
		{"2-trails-master-v0.3.geojson", "#eea800"},
		{"3-bikelanes-master-v0.3.geojson", "#b00d0d"},
		{"4-bikesidewalks-master-v0.3.geojson", "#1500f2"},
		{"5-walk-master-v0.3.geojson", "#c9c219"},
		{"6-unknown.geojson", "#000000"},
		{"", "#000000"},
		{"1-BIKESTREETS-master-v0.3.geojson", "#000000"},
	}

	policy := FilenamePolicy{}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			first := policy.ColorFor(tt.file)
			if got := Hex(first); got != tt.want {
				t.Errorf("ColorFor(%q) = %s, want %s", tt.file, got, tt.want)
			}
			if again := policy.ColorFor(tt.file); again != first {
				t.Errorf("ColorFor(%q) not stable: %v then %v", tt.file, first, again)
			}
		})
	}
}

func TestFilenamePolicyUniqueIdentifiers(t *testing.T) {
	seen := map[string]bool{}
	for file := range filenameColors {
		d := FilenamePolicy{}.Describe(file)
		if seen[d.Name] || seen[d.LayerID()] {
			t.Fatalf("identifier collision for %s", file)
		}
		seen[d.Name] = true
		seen[d.LayerID()] = true
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#061f78")
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.NRGBA{R: 0x06, G: 0x1f, B: 0x78, A: 0xff}) {
		t.Errorf("unexpected color %v", c)
	}

	c, err = ParseHexColor("80ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if c.A != 0x80 || c.R != 0xff {
		t.Errorf("unexpected color %v", c)
	}

	for _, bad := range []string{"", "#12345", "#gggggg", "#1234567"} {
		if _, err := ParseHexColor(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRenderRegistersSourceAndLayer(t *testing.T) {
	st := New("test://style")
	d := NewDescriptor("trails", color.NRGBA{R: 0xee, G: 0xa8, A: 0xff})

	added, err := Render(st, d, lineCollection(2))
	if err != nil || !added {
		t.Fatalf("Render = %v, %v", added, err)
	}

	if _, ok := st.Source("trails"); !ok {
		t.Error("source not registered")
	}
	layer, ok := st.Layer("trails-id")
	if !ok {
		t.Fatal("layer not registered")
	}
	if layer.SourceID != "trails" {
		t.Errorf("layer source = %s", layer.SourceID)
	}
	p := layer.Paint
	if p.Cap != LineCapSquare || p.Join != LineJoinMiter || p.Opacity != 0.7 || p.Width != 7 {
		t.Errorf("unexpected paint %+v", p)
	}
	if Hex(p.Color) != "#eea800" {
		t.Errorf("unexpected color %s", Hex(p.Color))
	}
}

func TestRenderSkipsEmptyCollections(t *testing.T) {
	st := New("test://style")
	before := st.Revision()

	for name, fc := range map[string]*geojson.FeatureCollection{
		"nil":   nil,
		"empty": geojson.NewFeatureCollection(),
	} {
		added, err := Render(st, NewDescriptor(name, Black), fc)
		if err != nil || added {
			t.Errorf("%s: Render = %v, %v", name, added, err)
		}
	}

	if len(st.LayerIDs()) != 0 || st.Revision() != before {
		t.Error("empty collections mutated the style")
	}
}

func TestRenderTwiceConflicts(t *testing.T) {
	st := New("test://style")
	d := NewDescriptor("walk", Black)
	if _, err := Render(st, d, lineCollection(1)); err != nil {
		t.Fatal(err)
	}
	_, err := Render(st, d, lineCollection(1))
	if !errors.Is(err, ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
	if n := len(st.LayerIDs()); n != 1 {
		t.Errorf("expected 1 layer, got %d", n)
	}
}

func TestAddLayerUnknownSource(t *testing.T) {
	st := New("test://style")
	err := st.AddLayer(&LineLayer{ID: "x-id", SourceID: "x"})
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

func TestSnapshotOrder(t *testing.T) {
	st := New("test://style")
	for _, name := range []string{"a", "b", "c"} {
		if _, err := Render(st, NewDescriptor(name, Black), lineCollection(1)); err != nil {
			t.Fatal(err)
		}
	}
	snap := st.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(snap))
	}
	for i, name := range []string{"a-id", "b-id", "c-id"} {
		if snap[i].Layer.ID != name || snap[i].Data == nil {
			t.Errorf("layer %d = %+v", i, snap[i].Layer)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := LoadManifest(strings.NewReader(`{"layers":[
			{"file":"a.geojson","id":"a","color":"#010203"},
			{"file":"b.geojson"}]}`))
		if err != nil {
			t.Fatal(err)
		}
		if m.Layers[1].ID != "b.geojson" {
			t.Errorf("expected id default to file name, got %s", m.Layers[1].ID)
		}
	})

	invalid := map[string]string{
		"duplicate file": `{"layers":[{"file":"a","id":"x"},{"file":"a","id":"y"}]}`,
		"duplicate id":   `{"layers":[{"file":"a","id":"x"},{"file":"b","id":"x"}]}`,
		"missing file":   `{"layers":[{"id":"x"}]}`,
		"bad color":      `{"layers":[{"file":"a","color":"blue"}]}`,
		"not json":       `layers`,
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadManifest(strings.NewReader(doc)); !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("expected ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestManifestPolicy(t *testing.T) {
	m, err := LoadManifest(strings.NewReader(`{"layers":[
		{"file":"streets.geojson","id":"streets","color":"#112233"},
		{"file":"nocolor.geojson","id":"nocolor"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	p := NewManifestPolicy(m, nil)

	d := p.Describe("streets.geojson")
	if d.Name != "streets" || Hex(d.Paint.Color) != "#112233" {
		t.Errorf("unexpected descriptor %+v", d)
	}
	if Hex(p.ColorFor("streets")) != "#112233" {
		t.Error("ColorFor by id failed")
	}
	if d := p.Describe("nocolor.geojson"); d.Name != "nocolor" || d.Paint.Color != Black {
		t.Errorf("unexpected descriptor %+v", d)
	}
	if d := p.Describe("5-walk-master-v0.3.geojson"); d.Name != "5-walk-master-v0.3.geojson" || Hex(d.Paint.Color) != "#c9c219" {
		t.Errorf("fallback descriptor %+v", d)
	}
}

func TestBundledManifestMatchesFilenamePolicy(t *testing.T) {
	f, err := os.Open("../../assets/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	m, err := LoadManifest(f)
	if err != nil {
		t.Fatal(err)
	}
	p := NewManifestPolicy(m, nil)
	for _, e := range m.Layers {
		if got, want := p.Describe(e.File).Paint.Color, (FilenamePolicy{}).ColorFor(e.File); got != want {
			t.Errorf("%s: manifest color %s, filename color %s", e.File, Hex(got), Hex(want))
		}
	}
}
