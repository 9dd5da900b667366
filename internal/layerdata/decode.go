// Package layerdata decodes the bundled GeoJSON files and resolves each into
// a layer ready for the map style.
package layerdata

import (
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

var ErrMalformed = errors.New("malformed geojson")

var geometryTypes = map[string]bool{
	"Point":              true,
	"MultiPoint":         true,
	"LineString":         true,
	"MultiLineString":    true,
	"Polygon":            true,
	"MultiPolygon":       true,
	"GeometryCollection": true,
}

// Decode reads the whole stream and returns its features as a collection.
// A lone Feature or Geometry document is wrapped into a one-feature
// collection.
func Decode(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return DecodeBytes(data)
}

func DecodeBytes(data []byte) (*geojson.FeatureCollection, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}

	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, fmt.Errorf("%w: missing type member", ErrMalformed)
	}

	switch t := kind.String(); {
	case t == "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fc, nil

	case t == "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return geojson.NewFeatureCollection().Append(f), nil

	case geometryTypes[t]:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return geojson.NewFeatureCollection().Append(geojson.NewFeature(g.Geometry())), nil

	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrMalformed, t)
	}
}
