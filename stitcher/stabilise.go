package stitcher

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/intersection"
	"github.com/notargets/ncstitch/types"
)

// Stabiliser keeps faces that have been (nearly) entirely cut away from reaching
// zero area. Ref holds the geometry of the faces before cutting.
type Stabiliser struct {
	Threshold, Perturbation float64
	RefSf, RefCf            []r3.Vec
}

func NewStabiliser(cfg Config, refSf, refCf []r3.Vec) *Stabiliser {
	return &Stabiliser{
		Threshold:    cfg.StabilisationThreshold,
		Perturbation: cfg.StabilisationPerturbation,
		RefSf:        refSf,
		RefCf:        refCf,
	}
}

// Stabilise replaces the geometry of the listed faces whose area along the
// original normal has fallen below Threshold times the original area, and returns
// how many were replaced. The replacement is Perturbation times the original
// area vector, at the original centre.
func (st *Stabiliser) Stabilise(faces []int, sf, cf []r3.Vec) (n int) {
	for _, f := range faces {
		mag0 := r3.Norm(st.RefSf[f])
		if mag0 == 0 {
			continue
		}
		if r3.Dot(sf[f], st.RefSf[f])/mag0 >= st.Threshold*mag0 {
			continue
		}
		sf[f], cf[f] = st.minimal(f), st.RefCf[f]
		n++
	}
	return
}

func (st *Stabiliser) minimal(f int) r3.Vec {
	return r3.Scale(st.Perturbation, st.RefSf[f])
}

// StabilisationPart is the placeholder fragment of a face used when the coupling
// geometry is not computed: a minimal area at the original centre.
func (st *Stabiliser) StabilisationPart(face int, side types.Side) intersection.Part {
	return intersection.Part{
		Face:   face,
		Side:   side,
		Area:   st.minimal(face),
		Centre: st.RefCf[face],
	}
}
