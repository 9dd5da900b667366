package style

import (
	"image/color"

	"github.com/paulmach/orb/geojson"
)

// Descriptor identifies a data layer and how it is painted. Name is used as
// the source ID and as the prefix of the layer ID.
type Descriptor struct {
	Name  string
	Paint LinePaint
}

func NewDescriptor(name string, c color.NRGBA) Descriptor {
	return Descriptor{Name: name, Paint: DefaultLinePaint(c)}
}

// LayerID is the ID of the line layer registered for d.
func (d Descriptor) LayerID() string {
	return d.Name + "-id"
}

// NewLineLayer builds the line layer reading the source named by d.
func NewLineLayer(d Descriptor) *LineLayer {
	return &LineLayer{
		ID:       d.LayerID(),
		SourceID: d.Name,
		Paint:    d.Paint,
	}
}

// Render registers fc as a source and a line layer drawing it. A nil or
// empty collection registers nothing and reports false.
func Render(st *Style, d Descriptor, fc *geojson.FeatureCollection) (bool, error) {
	if fc == nil || len(fc.Features) == 0 {
		return false, nil
	}

	if err := st.AddSource(&GeoJSONSource{ID: d.Name, Data: fc}); err != nil {
		return false, err
	}
	if err := st.AddLayer(NewLineLayer(d)); err != nil {
		return false, err
	}
	return true, nil
}
