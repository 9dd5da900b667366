// Package mapengine is the map engine behind the screen: the map view
// lifecycle, the asynchronous style load and the location component.
package mapengine

import (
	"errors"
	"log/slog"

	"bikestreets/pkg/tiles"
)

var ErrMissingToken = errors.New("map engine access token required")

// TileSource serves basemap tiles for the loaded style.
type TileSource interface {
	SetURLTemplate(template string) error
	GetTile(coord tiles.TileCoord) ([]byte, error)
}

// Engine is the initialized map engine shared by map views.
type Engine struct {
	token  string
	looper *Looper
	tiles  TileSource
	logger *slog.Logger
}

// Init initializes the engine with its access token.
func Init(token string, looper *Looper, tiles TileSource, logger *slog.Logger) (*Engine, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return &Engine{
		token:  token,
		looper: looper,
		tiles:  tiles,
		logger: logger,
	}, nil
}
