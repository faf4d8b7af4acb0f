package intersection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/ncstitch/geometry"
)

func TestPartitionMap(t *testing.T) {
	pm := NewPartitionMap(4, 10)
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 8}, {8, 10}}, pm.Partitions)
	kMin, kMax := pm.GetBucketRange(2)
	assert.Equal(t, 6, kMin)
	assert.Equal(t, 8, kMax)
	// More threads than work
	pm = NewPartitionMap(8, 3)
	assert.Equal(t, 3, pm.ParallelDegree)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, pm.Partitions)
	pm = NewPartitionMap(4, 0)
	assert.Equal(t, [][2]int{{0, 0}}, pm.Partitions)
}

func TestIntersectCoupleOrder(t *testing.T) {
	var owner, nbr []geometry.Polygon
	for k := 0; k < 16; k++ {
		z := float64(k)
		owner = append(owner, rect(0, 0, 1, z, z+1, true))
		nbr = append(nbr, rect(0, 0, 1, z+0.5, z+1.5, false))
	}
	res, err := Intersect(owner, nbr, geometry.Identity(), 1.e-8)
	require.NoError(t, err)
	require.Len(t, res.Couples, 31)
	for i := 1; i < len(res.Couples); i++ {
		a, b := res.Couples[i-1], res.Couples[i]
		assert.True(t, a.Owner.Face < b.Owner.Face ||
			(a.Owner.Face == b.Owner.Face && a.Neighbour.Face < b.Neighbour.Face))
	}
	assert.InDelta(t, 15.5, res.TotalWeight(), 1.e-12)
	for _, nw := range []int{2, 3, 64} {
		par, err := IntersectParallel(owner, nbr, geometry.Identity(), 1.e-8, nw)
		require.NoError(t, err)
		assert.Equal(t, res, par)
	}
}
