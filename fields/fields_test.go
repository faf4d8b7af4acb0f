package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/types"
)

// Two original faces per side, three couples: slots 0/1 are the original
// patches, 2/3 the non-conformal owner and neighbour patches.
func testTopology() *Topology {
	keys := []CoupleKey{{0, 10}, {0, 11}, {1, 11}}
	return &Topology{
		Sizes:     []int{2, 2, 3, 3},
		OrigMagSf: [][]float64{{0.5, 0.5}, {0.75, 0.25}, nil, nil},
		Patches: []NccPatch{
			{Slot: 2, OrigSlot: 0, Side: types.Owner,
				PolyFaces: []int{0, 0, 1}, MagSf: []float64{0.25, 0.25, 0.5}, Keys: keys},
			{Slot: 3, OrigSlot: 1, Side: types.Neighbour,
				PolyFaces: []int{0, 1, 1}, MagSf: []float64{0.25, 0.25, 0.5}, Keys: keys},
		},
		Interfaces: [][2]int{{0, 1}},
	}
}

func testScalar(kind types.FieldKind) *Field[float64] {
	f := NewScalarField("p", kind, []int{2, 2, 3, 3})
	f.Patches = [][]float64{{1.1, 2.3}, {-0.7, 4.1}, {3.3, 0.9, 5.7}, {-3.3, -0.9, -5.7}}
	return f
}

func TestNewField(t *testing.T) {
	f := NewVectorField("U", types.Intensive, []int{1, 0, 2})
	assert.Equal(t, []int{1, 0, 2}, f.Sizes())
	assert.Equal(t, r3.Vec{}, f.Patches[2][1])
	assert.NoError(t, f.CheckLayout([]int{1, 0, 2}))
	assert.ErrorIs(t, f.CheckLayout([]int{1, 0, 3}), ErrSizeMismatch)
	assert.ErrorIs(t, f.CheckLayout([]int{1, 0}), ErrSizeMismatch)
	c := f.Clone()
	c.Fill(r3.Vec{X: 1})
	assert.Equal(t, f.ID, c.ID)
	assert.Equal(t, r3.Vec{}, f.Patches[0][0])
	assert.Equal(t, r3.Vec{X: 1}, c.Patches[0][0])
}

func TestSplitRoundTrip(t *testing.T) {
	topo := testTopology()
	for _, kind := range []types.FieldKind{types.Intensive, types.Extensive} {
		f := testScalar(kind)
		orig := f.Clone()
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 2, 0, 0}, f.Sizes())
		require.NoError(t, PostNonConform(s, topo))
		assert.Equal(t, orig.Patches, f.Patches, kind.String())
	}
	{ // Vector fields
		f := NewVectorField("U", types.Intensive, topo.Sizes)
		for s := range f.Patches {
			for i := range f.Patches[s] {
				f.Patches[s][i] = r3.Vec{X: float64(s) + 0.1*float64(i), Y: -1.3, Z: float64(i) / 3.}
			}
		}
		orig := f.Clone()
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, topo))
		assert.Equal(t, orig.Patches, f.Patches)
	}
}

func TestPreConform(t *testing.T) {
	topo := testTopology()
	{ // Intensive values are area weighted onto the original face
		f := testScalar(types.Intensive)
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		assert.InDelta(t, (0.25*3.3+0.25*0.9)/0.5, s.Ncc.Patches[0][0], 1.e-14)
		assert.InDelta(t, 5.7, s.Ncc.Patches[0][1], 1.e-14)
		assert.Equal(t, []float64{1.1, 2.3}, s.Orig.Patches[0])
		assert.InDelta(t, 0.5*1.1+0.25*3.3+0.25*0.9, f.Patches[0][0], 1.e-14)
		assert.InDelta(t, (0.5*2.3+0.5*5.7)/1., f.Patches[0][1], 1.e-14)
		assert.InDelta(t, (0.75*-0.7+0.25*-3.3)/1., f.Patches[1][0], 1.e-14)
	}
	{ // Extensive values are summed
		f := testScalar(types.Extensive)
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		assert.InDelta(t, 4.2, s.Ncc.Patches[0][0], 1.e-14)
		assert.InDelta(t, 1.1+4.2, f.Patches[0][0], 1.e-14)
		assert.InDelta(t, 4.1-0.9-5.7, f.Patches[1][1], 1.e-14)
	}
	{ // Size mismatch
		f := NewScalarField("p", types.Intensive, []int{2, 2, 3})
		_, err := PreConform(f, topo)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	}
}

func TestPostNonConformNewCouples(t *testing.T) {
	var (
		topo = testTopology()
		f    = testScalar(types.Extensive)
	)
	s, err := PreConform(f, topo)
	require.NoError(t, err)
	// The interface has moved: original face 0 of the owner is now cut twice
	// by couples that did not exist before
	moved := testTopology()
	moved.Patches[0].Keys = []CoupleKey{{0, 20}, {0, 21}, {1, 11}}
	moved.Patches[0].MagSf = []float64{0.1, 0.3, 0.5}
	require.NoError(t, PostNonConform(s, moved))
	assert.InDelta(t, 4.2*0.1/0.4, f.Patches[2][0], 1.e-14)
	assert.InDelta(t, 4.2*0.3/0.4, f.Patches[2][1], 1.e-14)
	assert.Equal(t, 5.7, f.Patches[2][2])
	assert.InDelta(t, 4.2, f.Patches[2][0]+f.Patches[2][1], 1.e-14)
}

func TestRegistry(t *testing.T) {
	var (
		r    = NewRegistry()
		topo = testTopology()
		p    = testScalar(types.Intensive)
		u    = NewVectorField("U", types.Intensive, topo.Sizes)
	)
	_, err := Take(r, p)
	assert.ErrorIs(t, err, ErrNotSplit)
	sp, err := PreConform(p, topo)
	require.NoError(t, err)
	su, err := PreConform(u, topo)
	require.NoError(t, err)
	require.NoError(t, Store(r, sp))
	require.NoError(t, Store(r, su))
	assert.ErrorIs(t, Store(r, sp), ErrAlreadySplit)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Has(p.ID))
	got, err := Peek(r, u)
	require.NoError(t, err)
	assert.Same(t, su, got)
	gotP, err := Take(r, p)
	require.NoError(t, err)
	assert.Same(t, sp, gotP)
	assert.False(t, r.Has(p.ID))
	_, err = Take(r, p)
	assert.ErrorIs(t, err, ErrNotSplit)
}

func TestResizePatchFields(t *testing.T) {
	f := NewScalarField("T", types.Intensive, []int{3, 1})
	f.Patches = [][]float64{{1, 2, 3}, {7}}
	maps := []PatchMap{
		{
			NewToOld: []int{2, -1, 0, 1},
			Centres:  []r3.Vec{{X: 2}, {X: 0.1}, {X: 0}, {X: 1}},
		},
		{},
	}
	require.NoError(t, ResizePatchFields(f, maps))
	assert.Equal(t, []float64{3, 1, 1, 2}, f.Patches[0])
	assert.Equal(t, []float64{7}, f.Patches[1])
	assert.ErrorIs(t, ResizePatchFields(f, maps[:1]), ErrSizeMismatch)
	bad := []PatchMap{{NewToOld: []int{9}}, {}}
	assert.ErrorIs(t, ResizePatchFields(f, bad), ErrSizeMismatch)
}

func TestSplitRemap(t *testing.T) {
	topo := testTopology()
	f := testScalar(types.Intensive)
	orig := f.Clone()
	s, err := PreConform(f, topo)
	require.NoError(t, err)
	// Swap the two owner original faces, renumbering global faces 0<->1
	maps := []PatchMap{{NewToOld: []int{1, 0}}, {}, {}, {}}
	require.NoError(t, s.Remap(maps, []int{1, 0, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}))
	swapped := testTopology()
	swapped.OrigMagSf[0] = []float64{0.5, 0.5}
	swapped.Patches[0].PolyFaces = []int{1, 1, 0}
	swapped.Patches[0].Keys = []CoupleKey{{1, 10}, {1, 11}, {0, 11}}
	swapped.Patches[1].Keys = swapped.Patches[0].Keys
	require.NoError(t, PostNonConform(s, swapped))
	assert.Equal(t, []float64{2.3, 1.1}, f.Patches[0])
	assert.Equal(t, orig.Patches[2], f.Patches[2])
	assert.Equal(t, orig.Patches[3], f.Patches[3])
}

func TestSynchronise(t *testing.T) {
	topo := testTopology()
	{ // Intensive, equal weights
		f := testScalar(types.Intensive)
		f.Patches[3] = []float64{1, 1, 1}
		s, err := Synchronised(f, topo)
		require.NoError(t, err)
		assert.InDelta(t, 0.5*(3.3+1), s.Patches[2][0], 1.e-14)
		assert.Equal(t, s.Patches[2], s.Patches[3])
		assert.Equal(t, f.Patches[0], s.Patches[0])
		assert.Equal(t, 3.3, f.Patches[2][0])
	}
	{ // Fluxes are equal and opposite
		f := testScalar(types.Extensive)
		f.Patches[3] = []float64{-3.0, -1.0, -6.0}
		s, err := Synchronised(f, topo)
		require.NoError(t, err)
		assert.InDelta(t, 0.5*(3.3+3.0), s.Patches[2][0], 1.e-14)
		for k := range s.Patches[2] {
			assert.Equal(t, -s.Patches[2][k], s.Patches[3][k])
		}
	}
	{ // Asymmetric weights take the owner value
		f := testScalar(types.Intensive)
		s, err := SynchronisedBoundaryField(f, topo, false, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, f.Patches[2], s.Patches[3])
	}
}

func TestConformalSplit(t *testing.T) {
	topo := testTopology()
	{ // Fluxes are shared out by area
		f := NewScalarField("phi", types.Extensive, topo.Conformal())
		f.Patches[0] = []float64{2, 4}
		s, err := ConformalSplit(f, topo)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, topo))
		assert.InDelta(t, 1., f.Patches[0][0], 1.e-14)
		assert.InDelta(t, 0.5, f.Patches[2][0], 1.e-14)
		assert.InDelta(t, 0.5, f.Patches[2][1], 1.e-14)
		assert.InDelta(t, 2., f.Patches[2][2], 1.e-14)
		assert.InDelta(t, 2., f.Patches[0][1], 1.e-14)
	}
	{ // Intensive values are copied
		f := NewScalarField("T", types.Intensive, topo.Conformal())
		f.Patches[1] = []float64{300, 310}
		s, err := ConformalSplit(f, topo)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, topo))
		assert.Equal(t, []float64{300, 310}, f.Patches[1])
		assert.Equal(t, []float64{300, 310, 310}, f.Patches[3])
	}
	{ // Non-conformal layout is rejected
		f := testScalar(types.Intensive)
		_, err := ConformalSplit(f, topo)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	}
}

// faceTotals sums, per original face, its own value and the values of the
// non-conformal faces cut from it
func faceTotals(f *Field[float64], topo *Topology) (totals [][]float64) {
	totals = make([][]float64, len(topo.Sizes))
	for _, p := range topo.Patches {
		if totals[p.OrigSlot] == nil {
			totals[p.OrigSlot] = append([]float64(nil), f.Patches[p.OrigSlot]...)
		}
		for k, i := range p.PolyFaces {
			totals[p.OrigSlot][i] += f.Patches[p.Slot][k]
		}
	}
	return
}

func TestPostNonConformNewlyCovered(t *testing.T) {
	// Only the second original face of each side is coupled
	before := &Topology{
		Sizes:     []int{2, 2, 1, 1},
		OrigMagSf: [][]float64{{1, 0.5}, {1, 0.5}, nil, nil},
		Patches: []NccPatch{
			{Slot: 2, OrigSlot: 0, Side: types.Owner,
				PolyFaces: []int{1}, MagSf: []float64{0.5}, Keys: []CoupleKey{{1, 11}}},
			{Slot: 3, OrigSlot: 1, Side: types.Neighbour,
				PolyFaces: []int{1}, MagSf: []float64{0.5}, Keys: []CoupleKey{{1, 11}}},
		},
		Interfaces: [][2]int{{0, 1}},
	}
	// After the motion the first faces are coupled as well
	after := &Topology{
		Sizes:     []int{2, 2, 2, 2},
		OrigMagSf: [][]float64{{0.5, 0.5}, {0.5, 0.5}, nil, nil},
		Patches: []NccPatch{
			{Slot: 2, OrigSlot: 0, Side: types.Owner,
				PolyFaces: []int{0, 1}, MagSf: []float64{0.5, 0.5}, Keys: []CoupleKey{{0, 10}, {1, 11}}},
			{Slot: 3, OrigSlot: 1, Side: types.Neighbour,
				PolyFaces: []int{0, 1}, MagSf: []float64{0.5, 0.5}, Keys: []CoupleKey{{0, 10}, {1, 11}}},
		},
		Interfaces: [][2]int{{0, 1}},
	}
	{ // A uniform field stays uniform
		f := NewScalarField("T", types.Intensive, before.Sizes)
		f.Fill(300)
		s, err := PreConform(f, before)
		require.NoError(t, err)
		assert.Equal(t, []float64{300, 300}, s.Ncc.Patches[0])
		require.NoError(t, PostNonConform(s, after))
		for slot := range f.Patches {
			for _, v := range f.Patches[slot] {
				assert.Equal(t, 300., v)
			}
		}
	}
	{ // The new couple takes the value of the face it is cut from
		f := NewScalarField("T", types.Intensive, before.Sizes)
		f.Patches = [][]float64{{280, 300}, {320, 340}, {305}, {335}}
		s, err := PreConform(f, before)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, after))
		assert.Equal(t, []float64{280, 305}, f.Patches[2])
		assert.Equal(t, []float64{320, 335}, f.Patches[3])
		assert.Equal(t, []float64{280, 300}, f.Patches[0])
	}
	{ // Vectors likewise
		f := NewVectorField("U", types.Intensive, before.Sizes)
		f.Fill(r3.Vec{X: 1, Y: -2, Z: 0.5})
		s, err := PreConform(f, before)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, after))
		assert.Equal(t, []r3.Vec{{X: 1, Y: -2, Z: 0.5}, {X: 1, Y: -2, Z: 0.5}}, f.Patches[2])
	}
}

func TestPostNonConformConservesFlux(t *testing.T) {
	topo := testTopology()
	cases := map[string]*Topology{}
	{ // One stored couple grows, a new couple appears on the same face
		moved := testTopology()
		moved.Patches[0].Keys = []CoupleKey{{0, 10}, {0, 21}, {1, 11}}
		moved.Patches[0].MagSf = []float64{0.5, 0.25, 0.5}
		cases["grown and new"] = moved
	}
	{ // Couples vanish and nothing replaces them
		keys := []CoupleKey{{0, 10}, {1, 11}}
		moved := testTopology()
		moved.Sizes = []int{2, 2, 2, 2}
		moved.Patches[0].PolyFaces, moved.Patches[0].MagSf, moved.Patches[0].Keys = []int{0, 1}, []float64{0.5, 0.5}, keys
		moved.Patches[1].PolyFaces, moved.Patches[1].MagSf, moved.Patches[1].Keys = []int{0, 1}, []float64{0.25, 0.5}, keys
		cases["vanished"] = moved
	}
	for name, moved := range cases {
		f := testScalar(types.Extensive)
		want := faceTotals(f, topo)
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, moved))
		got := faceTotals(f, moved)
		for slot := range want {
			assert.InDeltaSlice(t, want[slot], got[slot], 1.e-14, name)
		}
	}
	{ // Stored couples are rescaled, the new couple takes what is left
		f := testScalar(types.Extensive)
		s, err := PreConform(f, topo)
		require.NoError(t, err)
		require.NoError(t, PostNonConform(s, cases["grown and new"]))
		assert.InDelta(t, 6.6, f.Patches[2][0], 1.e-14)
		assert.InDelta(t, 4.2-6.6, f.Patches[2][1], 1.e-14)
		assert.Equal(t, 5.7, f.Patches[2][2])
		assert.Equal(t, 1.1, f.Patches[0][0])
	}
}
