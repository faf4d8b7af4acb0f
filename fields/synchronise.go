package fields

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/ncstitch/types"
)

// SynchronisedBoundaryField returns a copy of f in which the two sides of every
// non-conformal interface carry the same value. Owner faces become
// wOwner*vO + wNbr*vN; neighbour faces the same, negated when flip is set so that
// fluxes stay equal and opposite.
func SynchronisedBoundaryField[T any](f *Field[T], topo *Topology, flip bool, wOwner, wNbr float64) (s *Field[T], err error) {
	if err = topo.Validate(); err != nil {
		return
	}
	if err = f.CheckLayout(topo.Sizes); err != nil {
		return
	}
	s = f.Clone()
	var (
		sign    = 1.
		offsets = make([][2]int, len(topo.Interfaces))
		nFaces  int
	)
	if flip {
		sign = -1
	}
	for ii, pair := range topo.Interfaces {
		n := topo.Patches[pair[0]].Len()
		offsets[ii] = [2]int{nFaces, nFaces + n}
		nFaces += 2 * n
	}
	if nFaces == 0 {
		return
	}
	// Coupling operator over all interface faces, owner faces ahead of neighbour faces per interface
	var (
		dok    = sparse.NewDOK(nFaces, nFaces)
		values = make([]T, nFaces)
	)
	for ii, pair := range topo.Interfaces {
		var (
			po, pn = topo.Patches[pair[0]], topo.Patches[pair[1]]
			oo, on = offsets[ii][0], offsets[ii][1]
		)
		for k := 0; k < po.Len(); k++ {
			o, n := oo+k, on+k
			values[o], values[n] = f.Patches[po.Slot][k], f.Patches[pn.Slot][k]
			dok.Set(o, o, wOwner)
			dok.Set(o, n, sign*wNbr)
			dok.Set(n, o, sign*wOwner)
			dok.Set(n, n, wNbr)
		}
	}
	result := make([]T, nFaces)
	for i := range result {
		result[i] = f.Ops.Zero()
	}
	dok.ToCSR().DoNonZero(func(i, j int, v float64) {
		result[i] = f.Ops.Add(result[i], f.Ops.Scale(v, values[j]))
	})
	for ii, pair := range topo.Interfaces {
		var (
			po, pn = topo.Patches[pair[0]], topo.Patches[pair[1]]
			oo, on = offsets[ii][0], offsets[ii][1]
		)
		copy(s.Patches[po.Slot], result[oo:oo+po.Len()])
		copy(s.Patches[pn.Slot], result[on:on+pn.Len()])
	}
	return
}

// Synchronised averages the two sides of each interface, flipping the sign for fluxes
func Synchronised[T any](f *Field[T], topo *Topology) (*Field[T], error) {
	if f.Ops == nil {
		return nil, fmt.Errorf("field %s has no arithmetic", f.Name)
	}
	return SynchronisedBoundaryField(f, topo, f.Kind == types.Extensive, 0.5, 0.5)
}
