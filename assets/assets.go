// Package assets holds the GeoJSON layer bundle shipped with the binary.
package assets

import "embed"

// Bundle is the read-only asset store: GeoJSON layers under geojson/, the
// layer manifest and demo location tracks.
//
//go:embed geojson/*.geojson manifest.json tracks/*.geojson
var Bundle embed.FS

const (
	LayerFolder  = "geojson"
	ManifestPath = "manifest.json"
)
