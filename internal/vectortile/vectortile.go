// Package vectortile encodes style layers as Mapbox Vector Tiles.
package vectortile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

var ErrEmptyTile = errors.New("no features in tile")

// EncodeLayer encodes fc as a single MVT layer named name, clipped to tile
// t. The collection is not modified.
func EncodeLayer(name string, fc *geojson.FeatureCollection, t tiles.TileCoord) ([]byte, error) {
	return Encode(map[string]*geojson.FeatureCollection{name: fc}, t)
}

// Encode encodes one MVT layer per collection. Features outside the tile are
// dropped; a tile left with no features returns ErrEmptyTile.
func Encode(collections map[string]*geojson.FeatureCollection, t tiles.TileCoord) ([]byte, error) {
	bound := t.Bound()
	clipped := make(map[string]*geojson.FeatureCollection, len(collections))
	for name, fc := range collections {
		clipped[name] = cloneWithin(fc, bound)
	}

	layers := mvt.NewLayers(clipped)
	layers.ProjectToTile(t.Maptile())
	layers.Clip(mvt.MapboxGLDefaultExtentBound)

	if dropEmpty(layers) == 0 {
		return nil, ErrEmptyTile
	}

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tile %s: %w", t, err)
	}
	return data, nil
}

// cloneWithin deep copies the features of fc whose bound touches b, since
// projecting to tile space rewrites geometries in place.
func cloneWithin(fc *geojson.FeatureCollection, b orb.Bound) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(b) {
			continue
		}
		nf := geojson.NewFeature(orb.Clone(f.Geometry))
		nf.ID = f.ID
		nf.Properties = f.Properties.Clone()
		out.Append(nf)
	}
	return out
}

// dropEmpty removes features clipping left without geometry and returns how
// many remain.
func dropEmpty(layers mvt.Layers) int {
	total := 0
	for _, l := range layers {
		kept := l.Features[:0]
		for _, f := range l.Features {
			if isEmpty(f.Geometry) {
				continue
			}
			kept = append(kept, f)
		}
		l.Features = kept
		total += len(kept)
	}
	return total
}

func isEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.LineString:
		return len(g) < 2
	case orb.MultiLineString:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	case orb.MultiPoint:
		return len(g) == 0
	case orb.Collection:
		return len(g) == 0
	}
	return false
}

// Decode parses an encoded tile back into lon/lat feature collections keyed
// by layer name.
func Decode(data []byte, t tiles.TileCoord) (map[string]*geojson.FeatureCollection, error) {
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("mvt parse error: %w", err)
	}
	layers.ProjectToWGS84(t.Maptile())
	return layers.ToFeatureCollections(), nil
}

// Cache memoizes encoded tiles per layer and style revision. Concurrent
// requests for the same tile share one encode.
type Cache struct {
	mu       sync.RWMutex
	tiles    map[string][]byte
	inFlight map[string]chan struct{}
	flightMu sync.Mutex
}

func NewCache() *Cache {
	return &Cache{
		tiles:    make(map[string][]byte),
		inFlight: make(map[string]chan struct{}),
	}
}

func cacheKey(layerID string, revision uint64, t tiles.TileCoord) string {
	return fmt.Sprintf("%s@%d/%s", layerID, revision, t)
}

// Layer returns the encoded tile for one resolved style layer.
func (c *Cache) Layer(l style.ResolvedLayer, revision uint64, t tiles.TileCoord) ([]byte, error) {
	key := cacheKey(l.Layer.ID, revision, t)

	c.mu.RLock()
	if data, ok := c.tiles[key]; ok {
		c.mu.RUnlock()
		return data, nil
	}
	c.mu.RUnlock()

	c.flightMu.Lock()
	if ch, ok := c.inFlight[key]; ok {
		c.flightMu.Unlock()
		<-ch
		c.mu.RLock()
		data, ok := c.tiles[key]
		c.mu.RUnlock()
		if !ok {
			return nil, ErrEmptyTile
		}
		return data, nil
	}
	ch := make(chan struct{})
	c.inFlight[key] = ch
	c.flightMu.Unlock()

	data, err := EncodeLayer(l.Layer.SourceID, l.Data, t)
	if err == nil {
		c.mu.Lock()
		c.tiles[key] = data
		c.mu.Unlock()
	}

	c.flightMu.Lock()
	delete(c.inFlight, key)
	close(ch)
	c.flightMu.Unlock()

	return data, err
}

// Reset drops every cached tile.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.tiles = make(map[string][]byte)
	c.mu.Unlock()
}

// Len returns the number of cached tiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles)
}
