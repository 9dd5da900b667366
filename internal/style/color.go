package style

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Black is returned for layers no policy knows about.
var Black = color.NRGBA{A: 0xff}

// ColorPolicy maps a layer name to its display color.
type ColorPolicy interface {
	ColorFor(name string) color.NRGBA
}

// Resolver turns an asset file name into the layer descriptor used to
// register it.
type Resolver interface {
	Describe(file string) Descriptor
}

var filenameColors = map[string]string{
	"1-bikestreets-master-v0.3.geojson":   "#061f78",
	"2-trails-master-v0.3.geojson":        "#eea800",
	"3-bikelanes-master-v0.3.geojson":     "#b00d0d",
	"4-bikesidewalks-master-v0.3.geojson": "#1500f2",
	"5-walk-master-v0.3.geojson":          "#c9c219",
}

// FilenamePolicy colors layers by exact file name. The layer keeps its file
// name as identifier.
type FilenamePolicy struct{}

func (FilenamePolicy) ColorFor(name string) color.NRGBA {
	hex, ok := filenameColors[name]
	if !ok {
		return Black
	}
	c, err := ParseHexColor(hex)
	if err != nil {
		return Black
	}
	return c
}

func (p FilenamePolicy) Describe(file string) Descriptor {
	return NewDescriptor(file, p.ColorFor(file))
}

// ParseHexColor parses #rrggbb or #aarrggbb.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	c := color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}
	if len(h) == 8 {
		c.A = uint8(v >> 24)
	}
	return c, nil
}

// Hex formats c as #rrggbb, dropping alpha.
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
