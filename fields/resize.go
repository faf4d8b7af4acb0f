package fields

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// PatchMap carries one patch slot through a topology change
type PatchMap struct {
	NewToOld []int    // Index before the change of each face after it, -1 for inserted faces. Nil keeps the slot.
	Centres  []r3.Vec // Face centres after the change, used to find donors for inserted faces
}

// ResizePatchFields remaps every slot of f onto the face numbering after a topology
// change. Inserted faces copy the value of the nearest face that survived the change.
func ResizePatchFields[T any](f *Field[T], maps []PatchMap) (err error) {
	if len(maps) != len(f.Patches) {
		return fmt.Errorf("%w: %d patch maps for field %s with %d patches",
			ErrSizeMismatch, len(maps), f.Name, len(f.Patches))
	}
	patches := make([][]T, len(f.Patches))
	for slot, pm := range maps {
		if patches[slot], err = remapSlot(f.Patches[slot], pm, f.Ops); err != nil {
			return fmt.Errorf("field %s patch %d: %w", f.Name, slot, err)
		}
	}
	f.Patches = patches
	return
}

func remapSlot[T any](old []T, pm PatchMap, ops Ops[T]) (values []T, err error) {
	if pm.NewToOld == nil {
		return old, nil
	}
	if pm.Centres != nil && len(pm.Centres) != len(pm.NewToOld) {
		return nil, fmt.Errorf("%w: %d centres for %d faces", ErrSizeMismatch, len(pm.Centres), len(pm.NewToOld))
	}
	values = make([]T, len(pm.NewToOld))
	var inserted []int
	for i, o := range pm.NewToOld {
		switch {
		case o >= len(old):
			return nil, fmt.Errorf("%w: face %d maps from face %d, only %d existed",
				ErrSizeMismatch, i, o, len(old))
		case o < 0:
			inserted = append(inserted, i)
		default:
			values[i] = old[o]
		}
	}
	for _, i := range inserted {
		donor := nearestDonor(i, pm)
		switch {
		case donor >= 0:
			values[i] = values[donor]
		case ops != nil:
			values[i] = ops.Zero()
		}
	}
	return
}

func nearestDonor(i int, pm PatchMap) (donor int) {
	donor = -1
	if pm.Centres == nil {
		return
	}
	best := -1.
	for j, o := range pm.NewToOld {
		if o < 0 {
			continue
		}
		d := r3.Norm2(r3.Sub(pm.Centres[j], pm.Centres[i]))
		if donor < 0 || d < best {
			donor, best = j, d
		}
	}
	return
}

// Remap carries the stored components through a topology change. faceOldToNew
// renumbers the original faces named by the couple keys; couples whose faces
// were removed are forgotten.
func (s *Split[T]) Remap(maps []PatchMap, faceOldToNew []int) (err error) {
	for _, f := range []*Field[T]{s.Field, s.Ncc, s.Orig} {
		if err = ResizePatchFields(f, maps); err != nil {
			return
		}
	}
	renumber := func(f int) int {
		if f < 0 || f >= len(faceOldToNew) {
			return -1
		}
		return faceOldToNew[f]
	}
	couples := make(map[splitKey]coupleValue[T], len(s.couples))
	for k, v := range s.couples {
		o, n := renumber(k.Key.Owner), renumber(k.Key.Neighbour)
		if o < 0 || n < 0 {
			continue
		}
		couples[splitKey{k.Slot, CoupleKey{o, n}}] = v
	}
	s.couples = couples
	return
}
