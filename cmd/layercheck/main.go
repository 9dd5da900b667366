// Command layercheck decodes the bundled layers without opening a window and
// prints what the map screen would register.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"bikestreets/internal/assets"
	"bikestreets/internal/config"
	"bikestreets/internal/layerdata"
	"bikestreets/internal/style"
	"bikestreets/internal/vectortile"
	"bikestreets/pkg/tiles"
)

func main() {
	configPath := flag.String("config", "bikestreets.json", "path to the JSON config file")
	zoom := flag.Int("zoom", 12, "zoom of the sample vector tile encoded per layer")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(*configPath, *zoom, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, zoom int, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := assets.Open(cfg.Assets.Dir)
	if err != nil {
		return err
	}
	resolver, err := layerdata.ResolverFromStore(store, cfg.Assets.Manifest, logger)
	if err != nil {
		return err
	}

	layers, err := layerdata.NewLoader(store, cfg.Assets.Folder, resolver, logger).Load()
	if err != nil {
		return err
	}

	fmt.Printf("=== Layers in %q: %d ===\n", cfg.Assets.Folder, len(layers))
	for _, l := range layers {
		sum := layerdata.Summarize(l.Collection)
		fmt.Printf("  %s  %s  features=%d %s\n",
			l.Descriptor.LayerID(), style.Hex(l.Descriptor.Paint.Color), sum.Features, formatTypes(sum.ByType))
		if sum.Features == 0 {
			fmt.Println("    empty, not registered")
			continue
		}

		c := sum.Bound.Center()
		t := tiles.LatLonToTile(c.Lat(), c.Lon(), zoom)
		data, err := vectortile.EncodeLayer(l.Descriptor.Name, l.Collection, t)
		switch {
		case errors.Is(err, vectortile.ErrEmptyTile):
			fmt.Printf("    tile %s: empty\n", t)
		case err != nil:
			fmt.Printf("    tile %s: %v\n", t, err)
		default:
			decoded, err := vectortile.Decode(data, t)
			if err != nil {
				return fmt.Errorf("%s: decode tile %s: %w", l.File, t, err)
			}
			n := 0
			if fc := decoded[l.Descriptor.Name]; fc != nil {
				n = len(fc.Features)
			}
			fmt.Printf("    tile %s: %d bytes, %d features\n", t, len(data), n)
		}
	}
	return nil
}

func formatTypes(byType map[string]int) string {
	keys := make([]string, 0, len(byType))
	for k := range byType {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, byType[k]))
	}
	return strings.Join(parts, " ")
}
