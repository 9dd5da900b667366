package tileserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bikestreets/internal/report"
	"bikestreets/internal/style"
	"bikestreets/internal/vectortile"
	"bikestreets/pkg/tiles"
)

// StyleFunc returns the loaded style, or nil while the map is loading. It is
// called from request goroutines.
type StyleFunc func() *style.Style

// Server is the debug HTTP server: cached basemap tiles, the registered
// layers as vector tiles, and metrics.
type Server struct {
	cache   *TileCache
	style   StyleFunc
	vectors *vectortile.Cache
	logger  *slog.Logger
	addr    string
	server  *http.Server
}

func NewServer(cache *TileCache, current StyleFunc, addr string, logger *slog.Logger) *Server {
	if current == nil {
		current = func() *style.Style { return nil }
	}
	return &Server{
		cache:   cache,
		style:   current,
		vectors: vectortile.NewCache(),
		logger:  logger,
		addr:    addr,
	}
}

// Routes returns the server's handler wrapped in Sentry middleware.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.HandlerFunc(http.MethodGet, "/tile/:z/:x/:y", s.handleTile)
	router.HandlerFunc(http.MethodPost, "/prefetch", s.handlePrefetch)
	router.HandlerFunc(http.MethodGet, "/layers", s.handleLayers)
	router.HandlerFunc(http.MethodGet, "/layers/:id/:z/:x/:y", s.handleLayerTile)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
	return sentryHandler.Handle(router)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Debug server starting", "addr", ln.Addr().String())
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ResetVectorTiles drops encoded vector tiles, for instance on low memory.
func (s *Server) ResetVectorTiles() {
	s.vectors.Reset()
}

func parseTile(ps httprouter.Params) (tiles.TileCoord, error) {
	zoom, err := strconv.Atoi(ps.ByName("z"))
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid zoom %q", ps.ByName("z"))
	}
	x, err := strconv.Atoi(ps.ByName("x"))
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid x %q", ps.ByName("x"))
	}
	yStr := ps.ByName("y")
	if i := strings.IndexByte(yStr, '.'); i >= 0 {
		yStr = yStr[:i]
	}
	y, err := strconv.Atoi(yStr)
	if err != nil {
		return tiles.TileCoord{}, fmt.Errorf("invalid y %q", ps.ByName("y"))
	}

	coord := tiles.TileCoord{X: x, Y: y, Zoom: zoom}
	if !coord.Valid() {
		return tiles.TileCoord{}, fmt.Errorf("%w: %s", ErrInvalidTile, coord)
	}
	return coord, nil
}

// handleTile serves cached basemap tiles: /tile/:z/:x/:y
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	coord, err := parseTile(httprouter.ParamsFromContext(r.Context()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cacheStatus := "MISS"
	if s.cache.IsCached(coord) {
		cacheStatus = "HIT"
	}

	data, err := s.cache.GetTile(coord)
	switch {
	case errors.Is(err, ErrNoTemplate):
		http.Error(w, "map style not loaded", http.StatusServiceUnavailable)
		return
	case err != nil:
		s.logger.Warn("Tile request failed", "tile", coord.String(), "error", err)
		http.Error(w, fmt.Sprintf("Failed to get tile: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Header().Set("X-Cache", cacheStatus)
	w.Write(data)
}

// PrefetchRequest represents a prefetch request
type PrefetchRequest struct {
	CenterLat      float64 `json:"centerLat"`
	CenterLon      float64 `json:"centerLon"`
	Zoom           int     `json:"zoom"`
	ViewportWidth  int     `json:"viewportWidth"`
	ViewportHeight int     `json:"viewportHeight"`
}

// maxViewport bounds each side of a prefetch viewport, in pixels.
const maxViewport = 8192

func (req PrefetchRequest) validate() error {
	if req.Zoom < tiles.MinZoom || req.Zoom > tiles.MaxZoom {
		return fmt.Errorf("zoom %d outside [%d, %d]", req.Zoom, tiles.MinZoom, tiles.MaxZoom)
	}
	if req.ViewportWidth <= 0 || req.ViewportWidth > maxViewport ||
		req.ViewportHeight <= 0 || req.ViewportHeight > maxViewport {
		return fmt.Errorf("viewport %dx%d outside (0, %d]", req.ViewportWidth, req.ViewportHeight, maxViewport)
	}
	if req.CenterLat < -90 || req.CenterLat > 90 || req.CenterLon < -180 || req.CenterLon > 180 {
		return fmt.Errorf("center %f,%f out of range", req.CenterLat, req.CenterLon)
	}
	return nil
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var req PrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	go s.cache.PrefetchArea(req.CenterLat, req.CenterLon, req.Zoom, req.ViewportWidth, req.ViewportHeight)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"prefetching"}`))
}

// LayerInfo describes one registered layer in /layers.
type LayerInfo struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Color    string  `json:"color"`
	Opacity  float64 `json:"opacity"`
	Width    float64 `json:"width"`
	Cap      string  `json:"cap"`
	Join     string  `json:"join"`
	Features int     `json:"features"`
}

type layersResponse struct {
	Style    string      `json:"style"`
	Revision uint64      `json:"revision"`
	Layers   []LayerInfo `json:"layers"`
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	st := s.style()
	if st == nil {
		http.Error(w, "map style not loaded", http.StatusServiceUnavailable)
		return
	}

	resp := layersResponse{
		Style:    redact(st.URL),
		Revision: st.Revision(),
		Layers:   []LayerInfo{},
	}
	for _, l := range st.Snapshot() {
		p := l.Layer.Paint
		resp.Layers = append(resp.Layers, LayerInfo{
			ID:       l.Layer.ID,
			Source:   l.Layer.SourceID,
			Color:    style.Hex(p.Color),
			Opacity:  p.Opacity,
			Width:    p.Width,
			Cap:      p.Cap.String(),
			Join:     p.Join.String(),
			Features: len(l.Data.Features),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		report.ReportError(err)
	}
}

// handleLayerTile serves one layer as a Mapbox Vector Tile:
// /layers/:id/:z/:x/:y
func (s *Server) handleLayerTile(w http.ResponseWriter, r *http.Request) {
	ps := httprouter.ParamsFromContext(r.Context())
	coord, err := parseTile(ps)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	st := s.style()
	if st == nil {
		http.Error(w, "map style not loaded", http.StatusServiceUnavailable)
		return
	}

	id := ps.ByName("id")
	revision := st.Revision()
	layer, ok := st.Layer(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown layer %q", id), http.StatusNotFound)
		return
	}
	src, ok := st.Source(layer.SourceID)
	if !ok {
		http.Error(w, fmt.Sprintf("layer %q has no source", id), http.StatusNotFound)
		return
	}

	data, err := s.vectors.Layer(style.ResolvedLayer{Layer: layer, Data: src.Data}, revision, coord)
	switch {
	case errors.Is(err, vectortile.ErrEmptyTile):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		s.logger.Error("Vector tile encode failed", "layer", id, "tile", coord.String(), "error", err)
		report.ReportError(err)
		http.Error(w, "failed to encode tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":      "ok",
		"style_ready":  s.style() != nil,
		"vector_tiles": s.vectors.Len(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
