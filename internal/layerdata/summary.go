package layerdata

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Summary describes a decoded collection.
type Summary struct {
	Features int
	ByType   map[string]int
	Bound    orb.Bound
}

func Summarize(fc *geojson.FeatureCollection) Summary {
	s := Summary{ByType: make(map[string]int)}
	if fc == nil {
		return s
	}

	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		s.Features++
		s.ByType[f.Geometry.GeoJSONType()]++

		b := f.Geometry.Bound()
		if first {
			s.Bound = b
			first = false
		} else {
			s.Bound = s.Bound.Union(b)
		}
	}
	return s
}
