package stitcher

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/intersection"
	"github.com/notargets/ncstitch/types"
)

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	{
		bad := cfg
		bad.StabilisationPerturbation = bad.StabilisationThreshold
		assert.Error(t, bad.Validate())
	}
	{
		bad := cfg
		bad.IntersectionTolerance = 0
		assert.Error(t, bad.Validate())
	}
	{
		bad := cfg
		bad.Motion = ""
		assert.Error(t, bad.Validate())
	}
	{
		bad := cfg
		bad.IntersectionWorkers = 0
		assert.Error(t, bad.Validate())
	}
}

func TestMotionTable(t *testing.T) {
	assert.Equal(t, []string{MovingMotion, StaticMotion}, MotionTags())
	m, err := newMotion(StaticMotion, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, m.Changing())
	m, err = newMotion(MovingMotion, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, m.Changing())
	_, err = newMotion("rotating", DefaultConfig())
	assert.Error(t, err)
	assert.Panics(t, func() {
		RegisterMotion(StaticMotion, func(Config) MeshMotion { return staticMotion{} })
	})
}

func TestConsolidate(t *testing.T) {
	var (
		r        = rand.New(rand.NewSource(1))
		perPatch = make([][]intersection.Part, 3)
	)
	for i := 0; i < 30; i++ {
		perPatch[i%3] = append(perPatch[i%3], intersection.Part{
			Face:   i % 4,
			Area:   r3.Vec{X: r.Float64(), Y: 1.e-3 * r.Float64()},
			Centre: r3.Vec{X: r.Float64(), Y: r.Float64(), Z: r.Float64()},
		})
	}
	parts := Consolidate(perPatch)
	require.Len(t, parts, 4)
	for i, p := range parts {
		assert.Equal(t, i, p.Face)
	}
	var sum, sumC r3.Vec
	var mag float64
	for _, pp := range perPatch {
		for _, p := range pp {
			if p.Face == 2 {
				sum = r3.Add(sum, p.Area)
				sumC = r3.Add(sumC, r3.Scale(p.MagArea(), p.Centre))
				mag += p.MagArea()
			}
		}
	}
	assert.InDelta(t, sum.X, parts[2].Area.X, 1.e-12)
	assert.InDelta(t, sumC.Y/mag, parts[2].Centre.Y, 1.e-12)
	// Any ordering of the contributions gives the same bits
	shuffled := [][]intersection.Part{{}, {}}
	for _, pp := range perPatch {
		for _, p := range pp {
			k := r.Intn(2)
			shuffled[k] = append(shuffled[k], p)
		}
	}
	for _, pp := range shuffled {
		r.Shuffle(len(pp), func(i, j int) { pp[i], pp[j] = pp[j], pp[i] })
	}
	assert.Equal(t, parts, Consolidate(shuffled))
	assert.Empty(t, Consolidate(nil))
}

func TestApply(t *testing.T) {
	var (
		sf = []r3.Vec{{X: 1}, {Z: 2}}
		cf = []r3.Vec{{X: 0, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 1}}
	)
	{ // A bad face label leaves the geometry untouched
		parts := []intersection.Part{
			{Face: 0, Area: r3.Vec{X: 0.5}, Centre: r3.Vec{Y: 0.25, Z: 0.5}},
			{Face: 2, Area: r3.Vec{X: 0.5}},
		}
		assert.ErrorIs(t, Apply(parts, sf, cf), ErrFaceIndex)
		assert.Equal(t, r3.Vec{X: 1}, sf[0])
		assert.Equal(t, r3.Vec{X: 0, Y: 0.5, Z: 0.5}, cf[0])
	}
	{ // Cut the lower half of face 0
		parts := []intersection.Part{{Face: 0, Area: r3.Vec{X: 0.5}, Centre: r3.Vec{Y: 0.25, Z: 0.5}}}
		require.NoError(t, Apply(parts, sf, cf))
		assert.Equal(t, r3.Vec{X: 0.5}, sf[0])
		assert.InDelta(t, 0.75, cf[0].Y, 1.e-14)
		assert.InDelta(t, 0.5, cf[0].Z, 1.e-14)
		assert.Equal(t, r3.Vec{Z: 2}, sf[1])
	}
	{ // Area is conserved
		parts := []intersection.Part{{Face: 1, Area: r3.Vec{Z: 0.3}, Centre: r3.Vec{X: 0.1, Y: 0.1, Z: 1}}}
		require.NoError(t, Apply(parts, sf, cf))
		assert.InEpsilon(t, 2.-0.3, r3.Norm(sf[1]), 1.e-9)
	}
	{ // Fully cut faces keep their centre
		parts := []intersection.Part{{Face: 0, Area: r3.Vec{X: 0.5}, Centre: r3.Vec{Y: 0.75, Z: 0.5}}}
		c := cf[0]
		require.NoError(t, Apply(parts, sf, cf))
		assert.Equal(t, r3.Vec{}, sf[0])
		assert.Equal(t, c, cf[0])
	}
}

func TestStabiliser(t *testing.T) {
	var (
		refSf = []r3.Vec{{X: 2}, {Y: 1}, {Z: 4}}
		refCf = []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
		cfg   = DefaultConfig()
		st    = NewStabiliser(cfg, refSf, refCf)
		sf    = []r3.Vec{{X: 1.e-12}, {Y: 0.5}, {Z: -1.e-3}}
		cf    = []r3.Vec{{X: 7}, {Y: 7}, {Z: 7}}
	)
	assert.Equal(t, 2, st.Stabilise([]int{0, 1, 2}, sf, cf))
	assert.Equal(t, r3.Vec{X: 2 * cfg.StabilisationPerturbation}, sf[0])
	assert.Equal(t, refCf[0], cf[0])
	assert.Equal(t, r3.Vec{Y: 0.5}, sf[1])
	assert.Equal(t, r3.Vec{Y: 7}, cf[1])
	assert.Equal(t, r3.Vec{Z: 4 * cfg.StabilisationPerturbation}, sf[2])
	// Idempotent
	sf1 := append([]r3.Vec(nil), sf...)
	cf1 := append([]r3.Vec(nil), cf...)
	st.Stabilise([]int{0, 1, 2}, sf, cf)
	assert.Equal(t, sf1, sf)
	assert.Equal(t, cf1, cf)
	// Faces not listed are left alone
	sf[1] = r3.Vec{}
	st.Stabilise([]int{0}, sf, cf)
	assert.Equal(t, r3.Vec{}, sf[1])

	p := st.StabilisationPart(2, types.Neighbour)
	assert.Equal(t, 2, p.Face)
	assert.Equal(t, types.Neighbour, p.Side)
	assert.Equal(t, sf[2], p.Area)
	assert.Equal(t, refCf[2], p.Centre)
}

func TestLogger(t *testing.T) {
	defer SetLogger(nil)
	SetLogger(nil)
	require.NotNil(t, Logger())
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	s := newStitcher(t, halfOffsetMesh(t), false)
	_, err := s.Connect(true)
	require.NoError(t, err)
	require.NoError(t, s.Disconnect())
	assert.Equal(t, 1, logs.FilterMessage("connected").Len())
	assert.Equal(t, 0, logs.FilterMessage("stabilised original faces").Len())
	// A nil logger silences the package again
	SetLogger(nil)
	_, err = s.Connect(true)
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("connected").Len())
}
