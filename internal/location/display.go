// Package location turns the map's location component on once the style
// and the permission are both available.
package location

import (
	"fmt"
	"time"

	"bikestreets/internal/mapengine"
	"bikestreets/internal/style"
)

// Options are the tracking settings applied by Show.
type Options struct {
	Transition     time.Duration
	Zoom           float64
	RecenterMeters float64
	RenderMode     mapengine.RenderMode
}

func DefaultOptions() Options {
	return Options{
		Transition:     10 * time.Millisecond,
		Zoom:           15,
		RecenterMeters: 5,
		RenderMode:     mapengine.RenderCompass,
	}
}

// Display shows the device location on a map.
type Display struct {
	Provider   mapengine.LocationProvider
	Permission mapengine.PermissionChecker
	Options    Options
}

// Show activates and enables the location component on m for the loaded
// style st, then switches to tracking.
func (d *Display) Show(m *mapengine.Map, st *style.Style) error {
	lc := m.LocationComponent()
	err := lc.Activate(mapengine.ActivationOptions{
		Style:      st,
		Provider:   d.Provider,
		Permission: d.Permission,
		Options:    mapengine.ComponentOptions{RecenterMeters: d.Options.RecenterMeters},
	})
	if err != nil {
		return fmt.Errorf("failed to activate location component: %w", err)
	}

	if err := lc.SetEnabled(true); err != nil {
		return err
	}
	if err := lc.SetCameraMode(mapengine.CameraTracking, mapengine.CameraOptions{
		Transition: d.Options.Transition,
		Zoom:       d.Options.Zoom,
	}); err != nil {
		return err
	}
	return lc.SetRenderMode(d.Options.RenderMode)
}
