package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Vec2 struct {
	X, Y float64
}

func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Scale(f float64) Vec2 {
	return Vec2{f * a.X, f * a.Y}
}

func cross2(a, b Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// orient is positive when c lies to the left of the directed line a->b
func orient(a, b, c Vec2) float64 {
	return cross2(b.Sub(a), c.Sub(a))
}

// Frame is an orthonormal in-plane basis (U, V) with U x V = N
type Frame struct {
	Origin, U, V, N r3.Vec
}

// NewFrame builds a plane frame through origin with the given (not necessarily unit) normal
func NewFrame(origin, normal r3.Vec) (fr Frame) {
	fr.Origin = origin
	fr.N = r3.Unit(normal)
	a := r3.Vec{X: 1}
	if math.Abs(fr.N.X) > 0.9 {
		a = r3.Vec{Y: 1}
	}
	fr.U = r3.Unit(r3.Sub(a, r3.Scale(r3.Dot(a, fr.N), fr.N)))
	fr.V = r3.Cross(fr.N, fr.U)
	return
}

// Project drops a point orthogonally onto the plane and returns its in-plane coordinates
func (fr Frame) Project(p r3.Vec) Vec2 {
	d := r3.Sub(p, fr.Origin)
	return Vec2{r3.Dot(d, fr.U), r3.Dot(d, fr.V)}
}

func (fr Frame) ProjectAll(p []r3.Vec) (q []Vec2) {
	q = make([]Vec2, len(p))
	for i, pt := range p {
		q[i] = fr.Project(pt)
	}
	return
}

// Lift returns the 3D point on the plane with in-plane coordinates q
func (fr Frame) Lift(q Vec2) r3.Vec {
	return r3.Add(fr.Origin, r3.Add(r3.Scale(q.X, fr.U), r3.Scale(q.Y, fr.V)))
}

// SignedArea2D is the shoelace area, positive for counter-clockwise polygons
func SignedArea2D(p []Vec2) (a float64) {
	n := len(p)
	for i := 0; i < n; i++ {
		a += cross2(p[i], p[(i+1)%n])
	}
	return 0.5 * a
}

// Centroid2D returns the centroid and signed area of a simple polygon
func Centroid2D(p []Vec2) (c Vec2, area float64) {
	n := len(p)
	if n == 0 {
		return
	}
	// shift to the first vertex to limit cancellation
	o := p[0]
	for i := 0; i < n; i++ {
		a, b := p[i].Sub(o), p[(i+1)%n].Sub(o)
		w := cross2(a, b)
		area += w
		c = c.Add(a.Add(b).Scale(w))
	}
	area *= 0.5
	if area == 0 {
		var sum Vec2
		for _, pt := range p {
			sum = sum.Add(pt)
		}
		return sum.Scale(1. / float64(n)), 0
	}
	c = c.Scale(1. / (6. * area)).Add(o)
	return
}

// ClipConvex clips subject against a convex, counter-clockwise clip polygon
// (Sutherland-Hodgman). The subject must be counter-clockwise as well; the
// result is empty when the two do not overlap.
func ClipConvex(subject, clip []Vec2) (out []Vec2) {
	out = append(out, subject...)
	nc := len(clip)
	for i := 0; i < nc && len(out) > 0; i++ {
		var (
			a, b  = clip[i], clip[(i+1)%nc]
			input = out
		)
		out = make([]Vec2, 0, len(input)+1)
		prev := input[len(input)-1]
		prevIn := orient(a, b, prev) >= 0
		for _, cur := range input {
			curIn := orient(a, b, cur) >= 0
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, lineCut(prev, cur, a, b), cur)
			case !curIn && prevIn:
				out = append(out, lineCut(prev, cur, a, b))
			}
			prev, prevIn = cur, curIn
		}
	}
	if len(out) < 3 {
		return nil
	}
	return
}

// lineCut intersects segment p->q with the infinite line a->b
func lineCut(p, q, a, b Vec2) Vec2 {
	var (
		dp = orient(a, b, p)
		dq = orient(a, b, q)
	)
	t := dp / (dp - dq)
	return p.Add(q.Sub(p).Scale(t))
}
