package stitcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/ncstitch/fields"
)

// MeshMotion is the part of the lifecycle that depends on whether the mesh moves.
// A moving mesh carries a mesh flux that has to stay conservative across
// conform/unconform transitions.
type MeshMotion interface {
	Changing() bool
	// ConformCorrectMeshPhi is called with the non-conformal mesh flux before it is split
	ConformCorrectMeshPhi(phi *fields.Field[float64], topo *fields.Topology) error
	// CreateNonConformalCorrectMeshPhiGeometry is called once the new interface geometry is known
	CreateNonConformalCorrectMeshPhiGeometry(topo *fields.Topology)
	// UnconformCorrectMeshPhi is called with the rebuilt non-conformal mesh flux and
	// the components it was rebuilt from
	UnconformCorrectMeshPhi(phi *fields.Field[float64], conformal *fields.Split[float64]) error
}

type MotionConstructor func(cfg Config) MeshMotion

const (
	StaticMotion = "static"
	MovingMotion = "moving"
)

var motionTable = map[string]MotionConstructor{}

// RegisterMotion adds a mesh motion strategy to the table used by New
func RegisterMotion(tag string, ctor MotionConstructor) {
	if _, ok := motionTable[tag]; ok {
		panic(fmt.Errorf("mesh motion %q registered twice", tag))
	}
	motionTable[tag] = ctor
}

func MotionTags() (tags []string) {
	for tag := range motionTable {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return
}

func newMotion(tag string, cfg Config) (MeshMotion, error) {
	ctor, ok := motionTable[tag]
	if !ok {
		return nil, fmt.Errorf("unknown mesh motion %q, available: %v", tag, MotionTags())
	}
	return ctor(cfg), nil
}

func init() {
	RegisterMotion(StaticMotion, func(Config) MeshMotion { return staticMotion{} })
	RegisterMotion(MovingMotion, func(Config) MeshMotion { return &movingMotion{} })
}

type staticMotion struct{}

func (staticMotion) Changing() bool { return false }

func (staticMotion) ConformCorrectMeshPhi(*fields.Field[float64], *fields.Topology) error { return nil }

func (staticMotion) CreateNonConformalCorrectMeshPhiGeometry(*fields.Topology) {}

func (staticMotion) UnconformCorrectMeshPhi(*fields.Field[float64], *fields.Split[float64]) error {
	return nil
}

type movingMotion struct {
	topo *fields.Topology
}

func (*movingMotion) Changing() bool { return true }

// ConformCorrectMeshPhi makes the two sides of each couple carry equal and opposite
// mesh flux, so the conformal flux built from either side is the same
func (mm *movingMotion) ConformCorrectMeshPhi(phi *fields.Field[float64], topo *fields.Topology) error {
	synced, err := fields.Synchronised(phi, topo)
	if err != nil {
		return err
	}
	phi.Patches = synced.Patches
	return nil
}

func (mm *movingMotion) CreateNonConformalCorrectMeshPhiGeometry(topo *fields.Topology) {
	mm.topo = topo
}

// UnconformCorrectMeshPhi synchronises the couples, then puts the difference
// between the conformal flux of each original face and the sum of its parts on
// the remaining original face
func (mm *movingMotion) UnconformCorrectMeshPhi(phi *fields.Field[float64], conformal *fields.Split[float64]) error {
	if mm.topo == nil {
		return errors.New("mesh flux correction requested before the interface geometry was created")
	}
	synced, err := fields.Synchronised(phi, mm.topo)
	if err != nil {
		return err
	}
	phi.Patches = synced.Patches
	nccSum := make(map[int][]float64)
	for _, p := range mm.topo.Patches {
		if nccSum[p.OrigSlot] == nil {
			nccSum[p.OrigSlot] = make([]float64, len(phi.Patches[p.OrigSlot]))
		}
		for k, i := range p.PolyFaces {
			nccSum[p.OrigSlot][i] += phi.Patches[p.Slot][k]
		}
	}
	for slot, sum := range nccSum {
		for i := range sum {
			target := conformal.Orig.Patches[slot][i] + conformal.Ncc.Patches[slot][i]
			phi.Patches[slot][i] = target - sum[i]
		}
	}
	return nil
}
