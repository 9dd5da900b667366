package overlay

import (
	"math"

	"golang.org/x/image/vector"

	"bikestreets/internal/style"
)

type point struct{ x, y float64 }

func (p point) add(q point) point {
	return point{p.x + q.x, p.y + q.y}
}

func (p point) sub(q point) point {
	return point{p.x - q.x, p.y - q.y}
}

func (p point) scale(s float64) point {
	return point{p.x * s, p.y * s}
}

func (p point) dot(q point) float64 {
	return p.x*q.x + p.y*q.y
}

func (p point) cross(q point) float64 {
	return p.x*q.y - p.y*q.x
}

func (p point) length() float64 {
	return math.Hypot(p.x, p.y)
}

func (p point) perp() point {
	return point{-p.y, p.x}
}

func (p point) unit() point {
	l := p.length()
	if l == 0 {
		return point{}
	}
	return point{p.x / l, p.y / l}
}

const roundSegments = 16

// stroker adds the outline of wide polylines to a rasterizer. Every polygon
// it emits is wound the same way so overlapping pieces accumulate instead of
// cancelling.
type stroker struct {
	z     *vector.Rasterizer
	paint style.LinePaint
	hw    float64
}

func newStroker(z *vector.Rasterizer, paint style.LinePaint, scale float64) *stroker {
	return &stroker{z: z, paint: paint, hw: paint.Width * scale / 2}
}

func (s *stroker) polyline(pts []point) {
	pts = dedupe(pts)
	switch len(pts) {
	case 0:
		return
	case 1:
		s.single(pts[0])
		return
	}

	last := len(pts) - 2
	for i := 0; i <= last; i++ {
		a, b := pts[i], pts[i+1]
		d := b.sub(a).unit()
		n := d.perp().scale(s.hw)

		if i == 0 {
			a = s.capStart(a, d)
		}
		if i == last {
			b = s.capEnd(b, d)
		}
		s.polygon(a.add(n), b.add(n), b.sub(n), a.sub(n))

		if i < last {
			s.join(pts[i+1], d, pts[i+2].sub(pts[i+1]).unit())
		}
	}
}

func (s *stroker) capStart(p, d point) point {
	switch s.paint.Cap {
	case style.LineCapSquare:
		return p.sub(d.scale(s.hw))
	case style.LineCapRound:
		s.circle(p, s.hw)
	}
	return p
}

func (s *stroker) capEnd(p, d point) point {
	switch s.paint.Cap {
	case style.LineCapSquare:
		return p.add(d.scale(s.hw))
	case style.LineCapRound:
		s.circle(p, s.hw)
	}
	return p
}

// join fills the gap on the outer side of the corner at v between incoming
// direction in and outgoing direction out.
func (s *stroker) join(v, in, out point) {
	turn := in.cross(out)
	if math.Abs(turn) < 1e-9 && in.dot(out) > 0 {
		return
	}

	sign := -1.0
	if turn < 0 {
		sign = 1
	}
	na := in.perp().scale(s.hw * sign)
	nb := out.perp().scale(s.hw * sign)

	switch s.paint.Join {
	case style.LineJoinRound:
		s.circle(v, s.hw)
		return
	case style.LineJoinMiter:
		if m, ok := s.miter(na, nb); ok {
			s.polygon(v, v.add(na), v.add(m), v.add(nb))
			return
		}
	}
	s.polygon(v, v.add(na), v.add(nb))
}

// miter returns the offset of the miter tip, or false if it exceeds the
// miter limit.
func (s *stroker) miter(na, nb point) (point, bool) {
	bisector := na.add(nb)
	if bisector.length() < 1e-9 {
		return point{}, false
	}
	dir := bisector.unit()
	cosHalf := dir.dot(na.unit())
	if cosHalf <= 0 {
		return point{}, false
	}
	ratio := 1 / cosHalf
	limit := s.paint.MiterLimit
	if limit <= 0 {
		limit = 2
	}
	if ratio > limit {
		return point{}, false
	}
	return dir.scale(s.hw * ratio), true
}

// single draws a zero-length line as its cap.
func (s *stroker) single(p point) {
	switch s.paint.Cap {
	case style.LineCapRound:
		s.circle(p, s.hw)
	case style.LineCapSquare:
		h := s.hw
		s.polygon(point{p.x - h, p.y - h}, point{p.x + h, p.y - h}, point{p.x + h, p.y + h}, point{p.x - h, p.y + h})
	}
}

func (s *stroker) circle(c point, r float64) {
	s.polygon(circlePoints(c, r)...)
}

func (s *stroker) polygon(pts ...point) {
	fillPolygon(s.z, pts)
}

func circlePoints(c point, r float64) []point {
	pts := make([]point, roundSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / roundSegments
		pts[i] = point{c.x + r*math.Cos(a), c.y + r*math.Sin(a)}
	}
	return pts
}

// fillPolygon adds pts as a closed path wound clockwise on screen.
func fillPolygon(z *vector.Rasterizer, pts []point) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) < 0 {
		rev := make([]point, len(pts))
		for i, p := range pts {
			rev[len(pts)-1-i] = p
		}
		pts = rev
	}
	z.MoveTo(float32(pts[0].x), float32(pts[0].y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.x), float32(p.y))
	}
	z.ClosePath()
}

func signedArea(pts []point) float64 {
	var a float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.cross(q)
	}
	return a / 2
}

func dedupe(pts []point) []point {
	out := pts[:0:0]
	for i, p := range pts {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
