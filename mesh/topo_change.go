package mesh

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// TopoChangeMap describes a topology edit in terms of the mesh before the edit
type TopoChangeMap struct {
	FaceMap       []int   // New face to old face, -1 for inserted faces
	OldPatchFaces [][]int // Patch face lists before the edit
}

// PatchFaceMap returns, for each face of the patch after the edit, its index in
// the same patch before the edit or -1 when the face is new to the patch.
func (tm *TopoChangeMap) PatchFaceMap(m *Mesh, patch int) (newToOld []int) {
	oldLocal := make(map[int]int, len(tm.OldPatchFaces[patch]))
	for i, f := range tm.OldPatchFaces[patch] {
		oldLocal[f] = i
	}
	faces := m.Patches[patch].Faces
	newToOld = make([]int, len(faces))
	for i, f := range faces {
		newToOld[i] = -1
		if old := tm.FaceMap[f]; old >= 0 {
			if li, ok := oldLocal[old]; ok {
				newToOld[i] = li
			}
		}
	}
	return
}

// OldToNew inverts the face map, faces that were removed map to -1
func (tm *TopoChangeMap) OldToNew(nOldFaces int) (oldToNew []int) {
	oldToNew = make([]int, nOldFaces)
	for i := range oldToNew {
		oldToNew[i] = -1
	}
	for f, old := range tm.FaceMap {
		if old >= 0 && old < nOldFaces {
			oldToNew[old] = f
		}
	}
	return
}

// ReorderFaces renumbers the faces so that new face i is old face newToOld[i].
// Patch face lists keep their membership and are put in ascending label order.
func (m *Mesh) ReorderFaces(newToOld []int) (tm *TopoChangeMap, err error) {
	nf := len(m.Faces)
	if len(newToOld) != nf {
		err = fmt.Errorf("face reordering has %d entries, mesh has %d faces", len(newToOld), nf)
		return
	}
	var (
		seen     = make([]bool, nf)
		oldToNew = make([]int, nf)
	)
	for i, old := range newToOld {
		if old < 0 || old >= nf || seen[old] {
			err = fmt.Errorf("face reordering is not a permutation at entry %d", i)
			return
		}
		seen[old] = true
		oldToNew[old] = i
	}
	tm = &TopoChangeMap{
		FaceMap:       append([]int(nil), newToOld...),
		OldPatchFaces: make([][]int, len(m.Patches)),
	}
	var (
		faces     = make([][]int, nf)
		owner     = make([]int, nf)
		neighbour = make([]int, nf)
	)
	for i, old := range newToOld {
		faces[i], owner[i], neighbour[i] = m.Faces[old], m.Owner[old], m.Neighbour[old]
	}
	m.Faces, m.Owner, m.Neighbour = faces, owner, neighbour
	if len(m.StoredSf) == nf {
		sf, cf := make([]r3.Vec, nf), make([]r3.Vec, nf)
		for i, old := range newToOld {
			sf[i], cf[i] = m.StoredSf[old], m.StoredCf[old]
		}
		m.StoredSf, m.StoredCf = sf, cf
	}
	for pi := range m.Patches {
		tm.OldPatchFaces[pi] = m.Patches[pi].Faces
		relabelled := make([]int, len(m.Patches[pi].Faces))
		for i, f := range m.Patches[pi].Faces {
			relabelled[i] = oldToNew[f]
		}
		sort.Ints(relabelled)
		m.Patches[pi].Faces = relabelled
	}
	for ci := range m.Couplings {
		for k, pair := range m.Couplings[ci].LoadedCouples {
			m.Couplings[ci].LoadedCouples[k] = [2]int{oldToNew[pair[0]], oldToNew[pair[1]]}
		}
	}
	err = m.Init()
	return
}

// Replace swaps the topology and geometry of m for those of next, a remeshed
// version of m with the same patches and couplings. Faces of next whose centre
// lies within tol of an old face centre, with the same orientation, are taken to
// be that face; all others are inserted. Loaded couples follow their faces and are
// dropped when a face was removed.
func (m *Mesh) Replace(next *Mesh, tol float64) (tm *TopoChangeMap, err error) {
	if len(next.Patches) != len(m.Patches) || len(next.Couplings) != len(m.Couplings) {
		return nil, fmt.Errorf("remeshed mesh has %d patches and %d couplings, mesh has %d and %d",
			len(next.Patches), len(next.Couplings), len(m.Patches), len(m.Couplings))
	}
	for pi := range m.Patches {
		if next.Patches[pi].Name != m.Patches[pi].Name {
			return nil, fmt.Errorf("remeshed patch %d is %s, mesh has %s", pi, next.Patches[pi].Name, m.Patches[pi].Name)
		}
	}
	var (
		oldSf, oldCf = m.FaceGeometry()
		newSf, newCf = next.FaceGeometry()
		taken        = make([]bool, len(oldCf))
		tol2         = tol * tol
	)
	tm = &TopoChangeMap{
		FaceMap:       make([]int, len(newCf)),
		OldPatchFaces: make([][]int, len(m.Patches)),
	}
	for i := range newCf {
		tm.FaceMap[i] = -1
		for j := range oldCf {
			if taken[j] || r3.Dot(newSf[i], oldSf[j]) <= 0 || r3.Norm2(r3.Sub(newCf[i], oldCf[j])) > tol2 {
				continue
			}
			tm.FaceMap[i], taken[j] = j, true
			break
		}
	}
	for pi := range m.Patches {
		tm.OldPatchFaces[pi] = append([]int(nil), m.Patches[pi].Faces...)
	}
	oldToNew := tm.OldToNew(len(oldCf))
	couplings := append([]Coupling(nil), next.Couplings...)
	for ci := range couplings {
		var loaded [][2]int
		for _, pair := range m.Couplings[ci].LoadedCouples {
			if o, n := oldToNew[pair[0]], oldToNew[pair[1]]; o >= 0 && n >= 0 {
				loaded = append(loaded, [2]int{o, n})
			}
		}
		couplings[ci].LoadedCouples = loaded
	}
	*m = *next
	m.Couplings = couplings
	return
}
