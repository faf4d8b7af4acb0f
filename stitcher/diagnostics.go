package stitcher

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/types"
)

// nccCell returns the cell a face of non-conformal patch p lies on
func (s *Stitcher) nccCell(p *NccPatch, k int) int {
	return s.mesh.Owner[s.patchFaces[p.OrigPatch][p.PolyFaces[k]]]
}

// Openness is, per cell, the magnitude of the sum of its outward area vectors
// divided by the sum of their magnitudes. It is zero for a closed cell.
func (s *Stitcher) Openness() (open []float64) {
	var (
		n      = s.mesh.NumCells
		sumSf  = make([]r3.Vec, n)
		sumMag = make([]float64, n)
		add    = func(c int, v r3.Vec) {
			sumSf[c] = r3.Add(sumSf[c], v)
			sumMag[c] += r3.Norm(v)
		}
	)
	for f, sf := range s.sf {
		add(s.mesh.Owner[f], sf)
		if nb := s.mesh.Neighbour[f]; nb >= 0 {
			add(nb, r3.Scale(-1, sf))
		}
	}
	for i := range s.ncc {
		p := &s.ncc[i]
		for k := range p.Sf {
			add(s.nccCell(p, k), p.Sf[k])
		}
	}
	open = make([]float64, n)
	for c := range open {
		if sumMag[c] > 0 {
			open[c] = r3.Norm(sumSf[c]) / sumMag[c]
		}
	}
	return
}

// CellVolumes integrates x.n over the faces of each cell, including non-conformal faces
func (s *Stitcher) CellVolumes() (v []float64) {
	v = s.mesh.CellVolumes(s.sf, s.cf)
	for i := range s.ncc {
		p := &s.ncc[i]
		for k := range p.Sf {
			v[s.nccCell(p, k)] += r3.Dot(p.Cf[k], p.Sf[k]) / 3.
		}
	}
	return
}

// VolumeConservationError is, per cell, (V - V0 - dt*sum(phi))/V: the relative
// mismatch between the change of cell volume over a step and the volume swept by
// the mesh flux. internalPhi holds the mesh flux of every face, only internal
// faces are read from it; boundary and non-conformal fluxes come from the mesh
// flux field.
func (s *Stitcher) VolumeConservationError(v0 []float64, dt float64, internalPhi []float64) (errV []float64, err error) {
	if s.meshPhi == nil {
		return nil, errors.New("volume conservation needs the mesh flux, none is set")
	}
	if len(v0) != s.mesh.NumCells {
		return nil, fmt.Errorf("%d old volumes for %d cells", len(v0), s.mesh.NumCells)
	}
	if len(internalPhi) != s.mesh.NumFaces() {
		return nil, fmt.Errorf("%d internal fluxes for %d faces", len(internalPhi), s.mesh.NumFaces())
	}
	if err = s.meshPhi.CheckLayout(s.Layout()); err != nil {
		return
	}
	sumPhi := make([]float64, s.mesh.NumCells)
	for f, nb := range s.mesh.Neighbour {
		if nb >= 0 {
			sumPhi[s.mesh.Owner[f]] += internalPhi[f]
			sumPhi[nb] -= internalPhi[f]
		}
	}
	for pi, faces := range s.patchFaces {
		for i, f := range faces {
			sumPhi[s.mesh.Owner[f]] += s.meshPhi.Patches[pi][i]
		}
	}
	nPatches := len(s.patchFaces)
	for j := range s.ncc {
		p := &s.ncc[j]
		for k := range p.PolyFaces {
			sumPhi[s.nccCell(p, k)] += s.meshPhi.Patches[nPatches+j][k]
		}
	}
	v := s.CellVolumes()
	errV = make([]float64, len(v))
	floats.SubTo(errV, v, v0)
	floats.AddScaled(errV, -dt, sumPhi)
	floats.Div(errV, v)
	return
}

// InterfaceAreas sums the area transferred by the non-conformal owner faces and
// the area left on the coupled original owner faces
func (s *Stitcher) InterfaceAreas() (transferred, remaining float64) {
	var (
		mags []float64
		seen = make(map[int]bool)
	)
	for i := range s.ncc {
		p := &s.ncc[i]
		if p.Side != types.Owner {
			continue
		}
		for k := range p.Sf {
			mags = append(mags, r3.Norm(p.Sf[k]))
		}
	}
	transferred = floats.Sum(mags)
	mags = mags[:0]
	for _, c := range s.mesh.Couplings {
		for _, f := range s.patchFaces[c.Owner] {
			if !seen[f] {
				seen[f] = true
				mags = append(mags, r3.Norm(s.sf[f]))
			}
		}
	}
	remaining = floats.Sum(mags)
	return
}
