// Package style is the mutable map style: GeoJSON sources and the line
// layers that draw them.
package style

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"
)

var (
	ErrDuplicateSource = errors.New("source already exists")
	ErrDuplicateLayer  = errors.New("layer already exists")
	ErrUnknownSource   = errors.New("unknown source")
)

// GeoJSONSource is a named feature collection registered with a style.
type GeoJSONSource struct {
	ID   string
	Data *geojson.FeatureCollection
}

// LineLayer draws the lines of a source.
type LineLayer struct {
	ID       string
	SourceID string
	Paint    LinePaint
}

// ResolvedLayer pairs a layer with its source data for drawing.
type ResolvedLayer struct {
	Layer LineLayer
	Data  *geojson.FeatureCollection
}

// Style holds sources and layers in registration order. Layers are drawn in
// that order, last on top.
type Style struct {
	URL string

	mu       sync.RWMutex
	sources  map[string]*GeoJSONSource
	layers   []LineLayer
	layerIDs map[string]bool
	revision uint64
}

// New creates an empty style for the given basemap URL
func New(url string) *Style {
	return &Style{
		URL:      url,
		sources:  make(map[string]*GeoJSONSource),
		layerIDs: make(map[string]bool),
	}
}

// AddSource registers a source. Source IDs are unique per style.
func (s *Style) AddSource(src *GeoJSONSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[src.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID)
	}
	s.sources[src.ID] = src
	s.revision++
	return nil
}

// AddLayer appends a layer above all existing layers.
func (s *Style) AddLayer(layer *LineLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layerIDs[layer.ID] {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, layer.ID)
	}
	if _, ok := s.sources[layer.SourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, layer.SourceID)
	}
	s.layerIDs[layer.ID] = true
	s.layers = append(s.layers, *layer)
	s.revision++
	return nil
}

// Source looks up a source by ID.
func (s *Style) Source(id string) (*GeoJSONSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	return src, ok
}

// Layer looks up a layer by ID.
func (s *Style) Layer(id string) (LineLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return LineLayer{}, false
}

// LayerIDs returns layer IDs in draw order.
func (s *Style) LayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.layers))
	for i, l := range s.layers {
		ids[i] = l.ID
	}
	return ids
}

// Revision increases on every mutation.
func (s *Style) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot returns the layers in draw order with their source data.
func (s *Style) Snapshot() []ResolvedLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ResolvedLayer, 0, len(s.layers))
	for _, l := range s.layers {
		src := s.sources[l.SourceID]
		out = append(out, ResolvedLayer{Layer: l, Data: src.Data})
	}
	return out
}
