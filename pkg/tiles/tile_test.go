package tiles

import (
	"math"
	"testing"
)

func TestLatLonToTile(t *testing.T) {
	// Denver Civic Center at zoom 12.
	got := LatLonToTile(39.7376, -104.9874, 12)
	want := TileCoord{X: 853, Y: 1554, Zoom: 12}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	if c := LatLonToTile(89.9, 179.99, 3); c.X != 7 || c.Y != 0 {
		t.Errorf("expected clamp to 7/0, got %v", c)
	}
}

func TestWorldPixelRoundTrip(t *testing.T) {
	x, y := WorldPixel(39.7376, -104.9874, 15)
	lat, lon := PixelToLatLon(x, y, 15)
	if math.Abs(lat-39.7376) > 1e-9 || math.Abs(lon+104.9874) > 1e-9 {
		t.Errorf("round trip gave %f,%f", lat, lon)
	}
}

func TestTileToLatLonMatchesBound(t *testing.T) {
	c := TileCoord{X: 853, Y: 1554, Zoom: 12}
	lat, lon := TileToLatLon(c)
	b := c.Bound()
	if math.Abs(b.Min[0]-lon) > 1e-9 || math.Abs(b.Max[1]-lat) > 1e-9 {
		t.Errorf("top-left %f,%f does not match bound %v", lat, lon, b)
	}
}

func TestExpand(t *testing.T) {
	tpl := "https://tiles.example.com/{z}/{x}/{y}.png?access_token={token}"
	if err := ValidateTemplate(tpl); err != nil {
		t.Fatal(err)
	}
	got := Expand(tpl, TileCoord{X: 1, Y: 2, Zoom: 3}, "pk.abc")
	if got != "https://tiles.example.com/3/1/2.png?access_token=pk.abc" {
		t.Errorf("unexpected url %s", got)
	}
	if err := ValidateTemplate("https://tiles.example.com/{z}/{x}.png"); err == nil {
		t.Error("expected error for missing {y}")
	}
}

func TestGetAdjacentTiles(t *testing.T) {
	if n := len(GetAdjacentTiles(TileCoord{X: 0, Y: 0, Zoom: 2})); n != 2 {
		t.Errorf("corner tile should have 2 neighbours, got %d", n)
	}
	adj := GetAdjacentTiles(TileCoord{X: 1, Y: 1, Zoom: 2})
	want := []TileCoord{{2, 1, 2}, {0, 1, 2}, {1, 2, 2}, {1, 0, 2}}
	for i := range want {
		if adj[i] != want[i] {
			t.Errorf("neighbour %d: expected %v, got %v", i, want[i], adj[i])
		}
	}
}

func TestGetVisibleTiles(t *testing.T) {
	visible := GetVisibleTiles(39.7376, -104.9874, 12, 512, 512)
	// (512/256+3)/2 = 2 tiles each way -> 5x5
	if len(visible) != 25 {
		t.Errorf("expected 25 tiles, got %d", len(visible))
	}
	center := LatLonToTile(39.7376, -104.9874, 12)
	found := false
	for _, c := range visible {
		if c == center {
			found = true
		}
	}
	if !found {
		t.Error("center tile not visible")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		coord TileCoord
		want  bool
	}{
		{TileCoord{X: 853, Y: 1554, Zoom: 12}, true},
		{TileCoord{X: 0, Y: 0, Zoom: 0}, true},
		{TileCoord{X: 4, Y: 0, Zoom: 2}, false},
		{TileCoord{X: 0, Y: -1, Zoom: 2}, false},
		{TileCoord{X: 0, Y: 0, Zoom: MaxZoom + 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.coord.String(), func(t *testing.T) {
			if got := tt.coord.Valid(); got != tt.want {
				t.Fatalf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetPrefetchTilesBounds(t *testing.T) {
	tests := []struct {
		name          string
		zoom          int
		width, height int
		maxLen        int
	}{
		{"negative width", 12, -10000, 600, 1000},
		{"zero viewport", 12, 0, 0, 1000},
		{"huge viewport", 2, 1 << 30, 1 << 30, 16 + 64},
		{"zoom below range", -3, 800, 600, 0},
		{"zoom above range", MaxZoom + 5, 800, 600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPrefetchTiles(39.7, -104.9, tt.zoom, tt.width, tt.height)
			if len(got) > tt.maxLen {
				t.Fatalf("got %d tiles, want at most %d", len(got), tt.maxLen)
			}
			for _, c := range got {
				if !c.Valid() {
					t.Fatalf("invalid tile %s", c)
				}
			}
		})
	}
}

func TestAreaClampsHalfSize(t *testing.T) {
	center := TileCoord{X: 1, Y: 1, Zoom: 2}
	if got := area(center, -5, -5); len(got) != 1 || got[0] != center {
		t.Fatalf("negative half size: got %v", got)
	}
	if got := area(center, 1<<40, 1<<40); len(got) != 16 {
		t.Fatalf("oversized half size: got %d tiles, want 16", len(got))
	}
}
