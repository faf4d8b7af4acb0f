package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Polygon is a planar (or nearly planar) face described by its ordered vertices.
// The right hand rule on the vertex order gives the face normal.
type Polygon []r3.Vec

// AreaVector returns the Newell area vector, magnitude = area, direction = normal
func (p Polygon) AreaVector() (sf r3.Vec) {
	n := len(p)
	if n < 3 {
		return
	}
	for i := 0; i < n; i++ {
		sf = r3.Add(sf, r3.Cross(p[i], p[(i+1)%n]))
	}
	return r3.Scale(0.5, sf)
}

func (p Polygon) Mean() (pAvg r3.Vec) {
	if len(p) == 0 {
		return
	}
	for _, pt := range p {
		pAvg = r3.Add(pAvg, pt)
	}
	return r3.Scale(1./float64(len(p)), pAvg)
}

// Centre returns the area weighted centroid computed from a triangle fan about
// the vertex average. Triangle areas are measured along the face normal so that
// slightly warped faces are handled the same way as flat ones.
func (p Polygon) Centre() r3.Vec {
	var (
		n    = len(p)
		pAvg = p.Mean()
	)
	if n < 3 {
		return pAvg
	}
	if n == 3 {
		return r3.Scale(1./3., r3.Add(r3.Add(p[0], p[1]), p[2]))
	}
	var (
		sumN r3.Vec
		ns   = make([]r3.Vec, n)
	)
	for i := 0; i < n; i++ {
		ns[i] = r3.Cross(r3.Sub(p[(i+1)%n], p[i]), r3.Sub(pAvg, p[i]))
		sumN = r3.Add(sumN, ns[i])
	}
	magN := r3.Norm(sumN)
	if magN < math.SmallestNonzeroFloat64 {
		return pAvg
	}
	var (
		nHat = r3.Scale(1./magN, sumN)
		sumA float64
		sumC r3.Vec
	)
	for i := 0; i < n; i++ {
		a := math.Abs(r3.Dot(ns[i], nHat))
		c := r3.Add(r3.Add(p[i], p[(i+1)%n]), pAvg)
		sumA += a
		sumC = r3.Add(sumC, r3.Scale(a/3., c))
	}
	if sumA < math.SmallestNonzeroFloat64 {
		return pAvg
	}
	return r3.Scale(1./sumA, sumC)
}

func (p Polygon) Box() Box {
	return NewBox(p)
}

// Reversed returns a copy with the vertex order reversed, flipping the normal
func (p Polygon) Reversed() (r Polygon) {
	r = make(Polygon, len(p))
	for i, pt := range p {
		r[len(p)-1-i] = pt
	}
	return
}

// SelfIntersecting reports whether any two non-adjacent edges of the polygon
// cross each other when viewed along the polygon normal.
func (p Polygon) SelfIntersecting() bool {
	n := len(p)
	if n < 4 {
		return false
	}
	sf := p.AreaVector()
	if r3.Norm(sf) == 0 {
		// a figure-eight can have a vanishing net area, use the first corner instead
		sf = r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0]))
		if r3.Norm(sf) == 0 {
			return false
		}
	}
	var (
		fr = NewFrame(p[0], sf)
		q  = fr.ProjectAll(p)
	)
	for i := 0; i < n; i++ {
		a0, a1 := q[i], q[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent through the closing edge
			}
			if segmentsCross(a0, a1, q[j], q[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(p1, p2, q1, q2 Vec2) bool {
	var (
		o1 = orient(p1, p2, q1)
		o2 = orient(p1, p2, q2)
		o3 = orient(q1, q2, p1)
		o4 = orient(q1, q2, p2)
	)
	return o1*o2 < 0 && o3*o4 < 0
}

// Box is an axis aligned bounding box
type Box struct {
	Min, Max r3.Vec
}

func NewBox(pts []r3.Vec) (b Box) {
	if len(pts) == 0 {
		return
	}
	b.Min, b.Max = pts[0], pts[0]
	for _, pt := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, pt.X), Y: math.Min(b.Min.Y, pt.Y), Z: math.Min(b.Min.Z, pt.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, pt.X), Y: math.Max(b.Max.Y, pt.Y), Z: math.Max(b.Max.Z, pt.Z)}
	}
	return
}

// Diagonal is the length of the box diagonal
func (b Box) Diagonal() float64 {
	return r3.Norm(r3.Sub(b.Max, b.Min))
}

// Overlaps is true when the boxes, each grown by tol, share any volume or boundary
func (b Box) Overlaps(o Box, tol float64) bool {
	return b.Min.X <= o.Max.X+tol && o.Min.X <= b.Max.X+tol &&
		b.Min.Y <= o.Max.Y+tol && o.Min.Y <= b.Max.Y+tol &&
		b.Min.Z <= o.Max.Z+tol && o.Min.Z <= b.Max.Z+tol
}
