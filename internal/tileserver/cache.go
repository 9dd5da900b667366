package tileserver

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bikestreets/internal/metrics"
	"bikestreets/pkg/tiles"
)

var (
	ErrNoTemplate  = errors.New("no tile URL template set")
	ErrInvalidTile = errors.New("invalid tile coordinate")
)

// TileCache fetches basemap tiles for the current style and keeps them on
// disk, one directory per URL template.
type TileCache struct {
	cacheDir string
	client   *http.Client
	logger   *slog.Logger

	mu       sync.RWMutex
	template string
	styleDir string

	inFlight   map[string]chan struct{}
	inFlightMu sync.Mutex
	fetchQueue chan tiles.TileCoord
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
}

// NewTileCache creates the cache directory and starts workers prefetch
// workers.
func NewTileCache(cacheDir string, workers int, logger *slog.Logger) (*TileCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	tc := &TileCache{
		cacheDir: cacheDir,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		inFlight:   make(map[string]chan struct{}),
		fetchQueue: make(chan tiles.TileCoord, 1000),
		done:       make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		tc.wg.Add(1)
		go tc.worker()
	}

	return tc, nil
}

func (tc *TileCache) worker() {
	defer tc.wg.Done()
	for {
		select {
		case <-tc.done:
			return
		case coord := <-tc.fetchQueue:
			if _, err := tc.fetchTile(coord); err != nil {
				tc.logger.Debug("Prefetch failed", "tile", coord.String(), "error", err)
			}
		}
	}
}

// Close stops the prefetch workers. Later prefetch requests are dropped;
// it is safe to call more than once.
func (tc *TileCache) Close() {
	tc.closeOnce.Do(func() { close(tc.done) })
	tc.wg.Wait()
}

// enqueue offers coord to the prefetch workers without blocking. It reports
// false once the cache is closed.
func (tc *TileCache) enqueue(coord tiles.TileCoord) bool {
	select {
	case <-tc.done:
		return false
	default:
	}
	select {
	case <-tc.done:
		return false
	case tc.fetchQueue <- coord:
	default:
	}
	return true
}

// SetURLTemplate switches the cache to a new basemap. The template must
// carry {z}, {x} and {y}; any access token is already filled in.
func (tc *TileCache) SetURLTemplate(template string) error {
	if err := tiles.ValidateTemplate(redact(template)); err != nil {
		return err
	}

	h := fnv.New64a()
	h.Write([]byte(template))
	dir := filepath.Join(tc.cacheDir, fmt.Sprintf("%016x", h.Sum64()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create style cache directory: %w", err)
	}

	tc.mu.Lock()
	tc.template = template
	tc.styleDir = dir
	tc.mu.Unlock()

	tc.logger.Info("Basemap template set", "cache_dir", dir)
	return nil
}

func (tc *TileCache) current() (template, dir string, err error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.template == "" {
		return "", "", ErrNoTemplate
	}
	return tc.template, tc.styleDir, nil
}

func tilePath(dir string, coord tiles.TileCoord) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%d_%d.png", coord.Zoom, coord.X, coord.Y))
}

// GetTile returns tile data, fetching and caching if necessary
func (tc *TileCache) GetTile(coord tiles.TileCoord) ([]byte, error) {
	if !coord.Valid() {
		metrics.TileRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTile, coord)
	}
	_, dir, err := tc.current()
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(tilePath(dir, coord)); err == nil {
		metrics.TileRequests.WithLabelValues("hit").Inc()
		return data, nil
	}

	data, err := tc.fetchTile(coord)
	if err != nil {
		metrics.TileRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TileRequests.WithLabelValues("fetched").Inc()

	tc.queuePrefetch(coord)

	return data, nil
}

// fetchTile downloads a tile and caches it. Concurrent fetches of the same
// tile share one request.
func (tc *TileCache) fetchTile(coord tiles.TileCoord) ([]byte, error) {
	template, dir, err := tc.current()
	if err != nil {
		return nil, err
	}
	path := tilePath(dir, coord)
	key := path

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	tc.inFlightMu.Lock()
	if ch, exists := tc.inFlight[key]; exists {
		tc.inFlightMu.Unlock()
		<-ch
		return os.ReadFile(path)
	}

	ch := make(chan struct{})
	tc.inFlight[key] = ch
	tc.inFlightMu.Unlock()

	defer func() {
		tc.inFlightMu.Lock()
		delete(tc.inFlight, key)
		close(ch)
		tc.inFlightMu.Unlock()
	}()

	req, err := http.NewRequest(http.MethodGet, tiles.Expand(template, coord, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "bikestreets/1.0")

	resp, err := tc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile %s: %w", coord, redactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned status %d for %s", resp.StatusCode, coord)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		tc.logger.Warn("Failed to cache tile", "tile", coord.String(), "error", err)
	}

	return data, nil
}

// queuePrefetch adds adjacent tiles to the prefetch queue
func (tc *TileCache) queuePrefetch(coord tiles.TileCoord) {
	for _, adj := range tiles.GetAdjacentTiles(coord) {
		if !tc.enqueue(adj) {
			return
		}
	}
}

// PrefetchArea queues the tiles around a viewport for background fetching.
func (tc *TileCache) PrefetchArea(centerLat, centerLon float64, zoom int, viewportWidth, viewportHeight int) {
	for _, coord := range tiles.GetPrefetchTiles(centerLat, centerLon, zoom, viewportWidth, viewportHeight) {
		if !tc.enqueue(coord) {
			return
		}
	}
}

// IsCached checks if a tile is already cached for the current template.
func (tc *TileCache) IsCached(coord tiles.TileCoord) bool {
	_, dir, err := tc.current()
	if err != nil {
		return false
	}
	_, err = os.Stat(tilePath(dir, coord))
	return err == nil
}
