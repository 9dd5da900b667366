package style

import "image/color"

type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

func (c LineCap) String() string {
	switch c {
	case LineCapRound:
		return "round"
	case LineCapSquare:
		return "square"
	default:
		return "butt"
	}
}

type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinBevel
	LineJoinRound
)

func (j LineJoin) String() string {
	switch j {
	case LineJoinBevel:
		return "bevel"
	case LineJoinRound:
		return "round"
	default:
		return "miter"
	}
}

// LinePaint holds the visual properties of a line layer. Width is in pixels.
type LinePaint struct {
	Cap        LineCap
	Join       LineJoin
	Opacity    float64
	Width      float64
	MiterLimit float64
	Color      color.NRGBA
}

// DefaultLinePaint is the paint every bundled layer uses: square caps,
// miter joins, 70% opacity, 7px wide.
func DefaultLinePaint(c color.NRGBA) LinePaint {
	return LinePaint{
		Cap:        LineCapSquare,
		Join:       LineJoinMiter,
		Opacity:    0.7,
		Width:      7,
		MiterLimit: 2,
		Color:      c,
	}
}
