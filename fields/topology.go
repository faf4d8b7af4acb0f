package fields

import (
	"fmt"

	"github.com/notargets/ncstitch/types"
)

// CoupleKey identifies a coupled face pair by its original (poly) faces
type CoupleKey struct {
	Owner, Neighbour int
}

// NccPatch describes the non-conformal faces of one side of a coupling
type NccPatch struct {
	Slot     int // Slot holding the non-conformal faces
	OrigSlot int // Slot of the original patch the faces are cut from
	Side     types.Side
	// Per non-conformal face
	PolyFaces []int       // Index of the original face within OrigSlot
	MagSf     []float64   // Face area
	Keys      []CoupleKey // Identity of the coupled pair
}

func (p *NccPatch) Len() int { return len(p.PolyFaces) }

// Topology is the boundary as seen by the split/merge operations
type Topology struct {
	Sizes      []int       // Non-conformal number of faces per slot
	OrigMagSf  [][]float64 // Remaining area of the original faces, nil for slots that are not coupled
	Patches    []NccPatch
	Interfaces [][2]int // Owner/neighbour pairs of Patches; face i of one couples with face i of the other
}

// Conformal returns the slot sizes with the non-conformal patches emptied
func (t *Topology) Conformal() (sizes []int) {
	sizes = append([]int(nil), t.Sizes...)
	for _, p := range t.Patches {
		sizes[p.Slot] = 0
	}
	return
}

func (t *Topology) Validate() error {
	if len(t.OrigMagSf) != len(t.Sizes) {
		return fmt.Errorf("%w: topology has %d area slots for %d patches", ErrSizeMismatch, len(t.OrigMagSf), len(t.Sizes))
	}
	for pi, p := range t.Patches {
		switch {
		case p.Slot < 0 || p.Slot >= len(t.Sizes) || p.OrigSlot < 0 || p.OrigSlot >= len(t.Sizes):
			return fmt.Errorf("non-conformal patch %d has invalid slots %d, %d", pi, p.Slot, p.OrigSlot)
		case t.Sizes[p.Slot] != p.Len() || len(p.MagSf) != p.Len() || len(p.Keys) != p.Len():
			return fmt.Errorf("%w: non-conformal patch %d has %d faces, slot holds %d",
				ErrSizeMismatch, pi, p.Len(), t.Sizes[p.Slot])
		case len(t.OrigMagSf[p.OrigSlot]) != t.Sizes[p.OrigSlot]:
			return fmt.Errorf("%w: original slot %d areas have %d values for %d faces",
				ErrSizeMismatch, p.OrigSlot, len(t.OrigMagSf[p.OrigSlot]), t.Sizes[p.OrigSlot])
		}
		for k, i := range p.PolyFaces {
			if i < 0 || i >= t.Sizes[p.OrigSlot] {
				return fmt.Errorf("non-conformal patch %d face %d maps to original face %d out of range",
					pi, k, i)
			}
		}
	}
	for _, pair := range t.Interfaces {
		if t.Patches[pair[0]].Len() != t.Patches[pair[1]].Len() {
			return fmt.Errorf("%w: coupled patches %d and %d differ in size", ErrSizeMismatch, pair[0], pair[1])
		}
	}
	return nil
}
