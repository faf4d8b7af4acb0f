// Package intersection clips the faces of a neighbour patch against the faces of
// an owner patch and returns the overlapping fragments ("parts") and the matched
// owner/neighbour fragment pairs ("couples") that carry flux across the interface.
//
// The computation is purely functional. Neighbour coordinates are mapped into the
// owner frame with the coupling transform, candidate pairs are culled with
// bounding boxes and opposing normals, each neighbour face is projected onto the
// owner face plane and clipped against a triangle fan of the owner face.
package intersection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/geometry"
	"github.com/notargets/ncstitch/types"
)

// ErrMalformedPatch is returned for patch geometry that cannot be intersected
var ErrMalformedPatch = errors.New("malformed patch geometry")

// Fraction of the larger face box diagonal by which boxes are grown during culling,
// allowing a small gap between the coupled surfaces.
const proximity = 0.1

// Part is a fragment of a donor face
type Part struct {
	Face   int // Donor face index within its patch
	Side   types.Side
	Area   r3.Vec // Area vector, oriented with the donor face normal
	Centre r3.Vec
}

func (p Part) MagArea() float64 {
	return r3.Norm(p.Area)
}

// Couple pairs the owner and neighbour fragments of one overlap. Weight is the overlap area.
type Couple struct {
	Owner, Neighbour Part
	Weight           float64
}

type Result struct {
	// Per donor face totals of the coupled fragments, ordered by face
	OwnerParts, NeighbourParts []Part
	Couples                    []Couple
}

func (r Result) Empty() bool {
	return len(r.Couples) == 0
}

// TotalWeight is the total overlap area transferred across the interface
func (r Result) TotalWeight() (w float64) {
	for _, c := range r.Couples {
		w += c.Weight
	}
	return
}

type ownerFace struct {
	sf, cf r3.Vec
	frame  geometry.Frame
	fan    [][]geometry.Vec2
	box    geometry.Box
}

// Intersect computes the overlap of the owner and neighbour faces. Neighbour faces
// are given in their own frame and mapped into the owner frame with tr. Overlaps
// smaller than tol times the smaller of the two face areas are dropped.
func Intersect(owner, neighbour []geometry.Polygon, tr geometry.Transform, tol float64) (Result, error) {
	return IntersectParallel(owner, neighbour, tr, tol, 1)
}

// IntersectParallel is Intersect with the owner faces shared out over nWorkers
// goroutines. The result does not depend on nWorkers.
func IntersectParallel(owner, neighbour []geometry.Polygon, tr geometry.Transform, tol float64,
	nWorkers int) (res Result, err error) {
	if err = checkPatch(owner, types.Owner); err != nil {
		return
	}
	if err = checkPatch(neighbour, types.Neighbour); err != nil {
		return
	}
	if len(owner) == 0 || len(neighbour) == 0 {
		return
	}
	var inv geometry.Transform
	if inv, err = tr.Inverse(); err != nil {
		return
	}
	var (
		of   = make([]ownerFace, len(owner))
		nbrT = make([]geometry.Polygon, len(neighbour))
		nSf  = make([]r3.Vec, len(neighbour))
		nCf  = make([]r3.Vec, len(neighbour))
		nBox = make([]geometry.Box, len(neighbour))
	)
	for i, p := range owner {
		of[i] = newOwnerFace(p)
	}
	for j, p := range neighbour {
		nbrT[j] = tr.Polygon(p)
		nSf[j], nCf[j] = nbrT[j].AreaVector(), nbrT[j].Centre()
		nBox[j] = nbrT[j].Box()
	}
	res.Couples = parallelCouples(nWorkers, len(of), func(kMin, kMax int) (couples []Couple) {
		for i := kMin; i < kMax; i++ {
			o := &of[i]
			magSo := r3.Norm(o.sf)
			for j := range nbrT {
				if r3.Dot(o.sf, nSf[j]) >= 0 {
					continue
				}
				grow := proximity * math.Max(o.box.Diagonal(), nBox[j].Diagonal())
				if !o.box.Overlaps(nBox[j], grow) {
					continue
				}
				area, c2 := o.clip(nbrT[j])
				magSn := r3.Norm(nSf[j])
				if area <= tol*math.Min(magSo, magSn) {
					continue
				}
				var (
					cOwner = o.frame.Lift(c2)
					nHat   = r3.Unit(nSf[j])
					// drop the owner side centre onto the neighbour face plane
					cNbr = r3.Sub(cOwner, r3.Scale(r3.Dot(r3.Sub(cOwner, nCf[j]), nHat), nHat))
				)
				couples = append(couples, Couple{
					Owner: Part{
						Face:   i,
						Side:   types.Owner,
						Area:   r3.Scale(area, o.frame.N),
						Centre: cOwner,
					},
					Neighbour: Part{
						Face:   j,
						Side:   types.Neighbour,
						Area:   r3.Scale(area, r3.Unit(neighbour[j].AreaVector())),
						Centre: inv.Point(cNbr),
					},
					Weight: area,
				})
			}
		}
		return
	})
	res.OwnerParts = faceTotals(res.Couples, types.Owner, len(owner))
	res.NeighbourParts = faceTotals(res.Couples, types.Neighbour, len(neighbour))
	if err = checkCutAreas(res.OwnerParts, owner, types.Owner, tol); err != nil {
		return
	}
	err = checkCutAreas(res.NeighbourParts, neighbour, types.Neighbour, tol)
	return
}

func newOwnerFace(p geometry.Polygon) (o ownerFace) {
	o.sf, o.cf = p.AreaVector(), p.Centre()
	o.frame = geometry.NewFrame(o.cf, o.sf)
	o.box = p.Box()
	var (
		q  = o.frame.ProjectAll(p)
		c2 = o.frame.Project(o.cf)
	)
	for k := range q {
		tri := []geometry.Vec2{c2, q[k], q[(k+1)%len(q)]}
		if geometry.SignedArea2D(tri) > 0 {
			o.fan = append(o.fan, tri)
		}
	}
	return
}

// clip returns the overlap area and its in-plane centroid
func (o *ownerFace) clip(nbr geometry.Polygon) (area float64, c geometry.Vec2) {
	subject := o.frame.ProjectAll(nbr)
	if geometry.SignedArea2D(subject) < 0 {
		for l, r := 0, len(subject)-1; l < r; l, r = l+1, r-1 {
			subject[l], subject[r] = subject[r], subject[l]
		}
	}
	var sumC geometry.Vec2
	for _, tri := range o.fan {
		piece := geometry.ClipConvex(subject, tri)
		if piece == nil {
			continue
		}
		pc, pa := geometry.Centroid2D(piece)
		if pa <= 0 {
			continue
		}
		area += pa
		sumC = sumC.Add(pc.Scale(pa))
	}
	if area > 0 {
		c = sumC.Scale(1. / area)
	}
	return
}

func faceTotals(couples []Couple, side types.Side, nFaces int) (parts []Part) {
	var (
		sumA = make([]r3.Vec, nFaces)
		sumC = make([]r3.Vec, nFaces)
		mag  = make([]float64, nFaces)
		hit  = make([]bool, nFaces)
	)
	for _, c := range couples {
		p := c.Owner
		if side == types.Neighbour {
			p = c.Neighbour
		}
		sumA[p.Face] = r3.Add(sumA[p.Face], p.Area)
		sumC[p.Face] = r3.Add(sumC[p.Face], r3.Scale(c.Weight, p.Centre))
		mag[p.Face] += c.Weight
		hit[p.Face] = true
	}
	for f := 0; f < nFaces; f++ {
		if !hit[f] {
			continue
		}
		parts = append(parts, Part{
			Face:   f,
			Side:   side,
			Area:   sumA[f],
			Centre: r3.Scale(1./mag[f], sumC[f]),
		})
	}
	return
}

func checkPatch(polys []geometry.Polygon, side types.Side) error {
	for i, p := range polys {
		switch {
		case len(p) < 3:
			return fmt.Errorf("%w: %s face %d has %d points", ErrMalformedPatch, side, i, len(p))
		case p.SelfIntersecting():
			return fmt.Errorf("%w: %s face %d is self-intersecting", ErrMalformedPatch, side, i)
		case r3.Norm(p.AreaVector()) == 0:
			return fmt.Errorf("%w: %s face %d has zero area", ErrMalformedPatch, side, i)
		}
	}
	return nil
}

// checkCutAreas rejects patches whose faces overlap each other, which shows up as
// more area being cut from a face than the face has.
func checkCutAreas(parts []Part, polys []geometry.Polygon, side types.Side, tol float64) error {
	slack := math.Max(tol, 1.e-10)
	for _, p := range parts {
		magSf := r3.Norm(polys[p.Face].AreaVector())
		if p.MagArea() > magSf*(1+slack) {
			return fmt.Errorf("%w: area %g cut from %s face %d exceeds its area %g, opposing faces overlap",
				ErrMalformedPatch, p.MagArea(), side, p.Face, magSf)
		}
	}
	return nil
}
