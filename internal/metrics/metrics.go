package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LayersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bikestreets_layers_registered_total",
		Help: "Number of GeoJSON layers registered with the map style",
	})

	// LayersSkipped is labelled by reason: malformed, empty, duplicate.
	LayersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikestreets_layers_skipped_total",
		Help: "Number of bundled layer files that were not registered",
	}, []string{"reason"})
)

var (
	// TileRequests is labelled by result: hit, fetched, error.
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikestreets_tile_requests_total",
		Help: "Basemap tile requests served by the tile cache",
	}, []string{"result"})
)

var (
	LocationFixes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bikestreets_location_fixes_total",
		Help: "Location fixes delivered to the location component",
	})

	LocationActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bikestreets_location_activations_total",
		Help: "Number of times the location indicator was activated",
	})

	// PermissionResults is labelled by the resulting state.
	PermissionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikestreets_permission_results_total",
		Help: "Location permission outcomes observed at startup",
	}, []string{"state"})
)
