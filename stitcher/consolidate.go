package stitcher

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/intersection"
)

// Consolidate merges the per patch lists of parts cut from original faces into a
// single list with one part per face. Part.Face must hold the global face label.
// Contributions to a face are summed in a canonical order, so the result does not
// depend on the order of the input.
func Consolidate(perPatch [][]intersection.Part) (parts []intersection.Part) {
	byFace := make(map[int][]intersection.Part)
	for _, pp := range perPatch {
		for _, p := range pp {
			byFace[p.Face] = append(byFace[p.Face], p)
		}
	}
	faces := make([]int, 0, len(byFace))
	for f := range byFace {
		faces = append(faces, f)
	}
	sort.Ints(faces)
	parts = make([]intersection.Part, 0, len(faces))
	for _, f := range faces {
		contrib := byFace[f]
		sort.Slice(contrib, func(i, j int) bool { return partLess(contrib[i], contrib[j]) })
		var (
			sumA, sumC r3.Vec
			sumMag     float64
		)
		for _, p := range contrib {
			m := p.MagArea()
			sumA = r3.Add(sumA, p.Area)
			sumC = r3.Add(sumC, r3.Scale(m, p.Centre))
			sumMag += m
		}
		c := contrib[0].Centre
		if sumMag > 0 {
			c = r3.Scale(1./sumMag, sumC)
		}
		parts = append(parts, intersection.Part{
			Face:   f,
			Side:   contrib[0].Side,
			Area:   sumA,
			Centre: c,
		})
	}
	return
}

func partLess(a, b intersection.Part) bool {
	ka := [7]float64{float64(a.Side), a.Area.X, a.Area.Y, a.Area.Z, a.Centre.X, a.Centre.Y, a.Centre.Z}
	kb := [7]float64{float64(b.Side), b.Area.X, b.Area.Y, b.Area.Z, b.Centre.X, b.Centre.Y, b.Centre.Z}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}
