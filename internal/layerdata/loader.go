package layerdata

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/paulmach/orb/geojson"

	"bikestreets/internal/assets"
	"bikestreets/internal/metrics"
	"bikestreets/internal/report"
	"bikestreets/internal/style"
)

// Layer is one decoded asset file with its resolved descriptor.
type Layer struct {
	File       string
	Descriptor style.Descriptor
	Collection *geojson.FeatureCollection
}

// Loader reads every GeoJSON file in one folder of a store.
type Loader struct {
	store    assets.Store
	folder   string
	resolver style.Resolver
	logger   *slog.Logger
}

func NewLoader(store assets.Store, folder string, resolver style.Resolver, logger *slog.Logger) *Loader {
	if resolver == nil {
		resolver = style.FilenamePolicy{}
	}
	return &Loader{
		store:    store,
		folder:   folder,
		resolver: resolver,
		logger:   logger,
	}
}

// Load decodes the folder in list order. Malformed files are logged and
// skipped; any I/O error aborts the load.
func (l *Loader) Load() ([]Layer, error) {
	names, err := l.store.List(l.folder)
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, 0, len(names))
	for _, name := range names {
		if !isGeoJSON(name) {
			l.logger.Debug("Ignoring non-GeoJSON asset", "file", name)
			continue
		}

		fc, err := l.decode(name)
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				l.logger.Warn("Skipping malformed layer file", "file", name, "error", err)
				metrics.LayersSkipped.WithLabelValues("malformed").Inc()
				report.ReportDetailed(err, report.Details{
					Tags:  map[string]string{"file": name},
					Level: sentry.LevelWarning,
				})
				continue
			}
			return nil, err
		}

		layers = append(layers, Layer{
			File:       name,
			Descriptor: l.resolver.Describe(name),
			Collection: fc,
		})
	}
	return layers, nil
}

func (l *Loader) decode(name string) (*geojson.FeatureCollection, error) {
	rc, err := l.store.Open(path.Join(l.folder, name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	fc, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return fc, nil
}

func isGeoJSON(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(path.Ext(name))
	return ext == ".geojson" || ext == ".json"
}

// ResolverFromStore builds a resolver from the manifest at manifestPath. A
// missing manifest falls back to file name matching.
func ResolverFromStore(store assets.Store, manifestPath string, logger *slog.Logger) (style.Resolver, error) {
	if manifestPath == "" {
		return style.FilenamePolicy{}, nil
	}

	rc, err := store.Open(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("No layer manifest, using file name colors", "path", manifestPath)
			return style.FilenamePolicy{}, nil
		}
		return nil, err
	}
	defer rc.Close()

	m, err := style.LoadManifest(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	return style.NewManifestPolicy(m, style.FilenamePolicy{}), nil
}
