// Package stitcher connects the non-conformal couplings of a mesh: it cuts the
// coupled original faces with the intersection of the two sides, creates the
// non-conformal faces that carry flux across each coupling, and keeps every
// registered boundary field consistent as the interface is disconnected and
// reconnected around mesh motion and topology changes.
package stitcher

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/fields"
	"github.com/notargets/ncstitch/intersection"
	"github.com/notargets/ncstitch/mesh"
	"github.com/notargets/ncstitch/types"
)

var ErrInvalidTransition = errors.New("invalid stitcher transition")

// NccPatch is one side of a connected coupling. The faces of the owner and
// neighbour sides of a coupling are paired by index.
type NccPatch struct {
	Coupling  int
	Side      types.Side
	OrigPatch int
	PolyFaces []int // Index within OrigPatch of the original face each face was cut from
	Sf, Cf    []r3.Vec
	Keys      []fields.CoupleKey
}

func (p *NccPatch) Len() int { return len(p.PolyFaces) }

// Stitcher runs the connect/disconnect lifecycle of one mesh. It is not safe for
// concurrent use.
type Stitcher struct {
	mesh   *mesh.Mesh
	cfg    Config
	motion MeshMotion

	state          types.ConnectionState
	patchFaces     [][]int  // Patch face labels the geometry and fields were built on
	confSf, confCf []r3.Vec // Geometry of the uncut mesh
	sf, cf         []r3.Vec
	ncc            []NccPatch // Owner and neighbour side of each coupling
	topo           *fields.Topology
	// Couples of the last connection per coupling, nil before the first one
	couples [][]fields.CoupleKey

	scalars []*fields.Field[float64]
	vectors []*fields.Field[r3.Vec]
	meshPhi *fields.Field[float64]
	splits  *fields.Registry
}

type connection struct {
	sf, cf      []r3.Vec
	ncc         []NccPatch
	couples     [][]fields.CoupleKey
	geometric   bool
	nStabilised int
}

// New creates a disconnected stitcher for m. A changing mesh always uses the
// moving mesh motion, otherwise cfg.Motion selects it.
func New(m *mesh.Mesh, changing bool, cfg Config) (s *Stitcher, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	tag := cfg.Motion
	if changing {
		tag = MovingMotion
	}
	var motion MeshMotion
	if motion, err = newMotion(tag, cfg); err != nil {
		return
	}
	s = &Stitcher{
		mesh:    m,
		cfg:     cfg,
		motion:  motion,
		state:   types.Disconnected,
		couples: make([][]fields.CoupleKey, len(m.Couplings)),
		splits:  fields.NewRegistry(),
	}
	s.resetGeometry()
	return
}

// resetGeometry recomputes the uncut geometry and empties the non-conformal patches
func (s *Stitcher) resetGeometry() {
	s.patchFaces = make([][]int, len(s.mesh.Patches))
	for pi, p := range s.mesh.Patches {
		s.patchFaces[pi] = append([]int(nil), p.Faces...)
	}
	s.confSf, s.confCf = s.mesh.FaceGeometry()
	s.sf = append([]r3.Vec(nil), s.confSf...)
	s.cf = append([]r3.Vec(nil), s.confCf...)
	s.ncc = s.emptyNcc()
	s.topo = s.topology(s.ncc, s.sf)
}

func (s *Stitcher) emptyNcc() (ncc []NccPatch) {
	for ci, c := range s.mesh.Couplings {
		ncc = append(ncc,
			NccPatch{Coupling: ci, Side: types.Owner, OrigPatch: c.Owner},
			NccPatch{Coupling: ci, Side: types.Neighbour, OrigPatch: c.Neighbour},
		)
	}
	return
}

func layout(patchFaces [][]int, ncc []NccPatch) (sizes []int) {
	for _, faces := range patchFaces {
		sizes = append(sizes, len(faces))
	}
	for i := range ncc {
		sizes = append(sizes, ncc[i].Len())
	}
	return
}

// Layout is the number of faces per field slot: the mesh patches followed by the
// owner and neighbour non-conformal patches of each coupling
func (s *Stitcher) Layout() []int { return layout(s.patchFaces, s.ncc) }

func (s *Stitcher) topology(ncc []NccPatch, sf []r3.Vec) (topo *fields.Topology) {
	var (
		nPatches = len(s.patchFaces)
		magSf    = func(v []r3.Vec) (m []float64) {
			m = make([]float64, len(v))
			for i := range v {
				m[i] = r3.Norm(v[i])
			}
			return
		}
	)
	topo = &fields.Topology{
		Sizes:     layout(s.patchFaces, ncc),
		OrigMagSf: make([][]float64, nPatches+len(ncc)),
	}
	for j, p := range ncc {
		if topo.OrigMagSf[p.OrigPatch] == nil {
			faces := s.patchFaces[p.OrigPatch]
			topo.OrigMagSf[p.OrigPatch] = make([]float64, len(faces))
			for i, f := range faces {
				topo.OrigMagSf[p.OrigPatch][i] = r3.Norm(sf[f])
			}
		}
		topo.Patches = append(topo.Patches, fields.NccPatch{
			Slot:      nPatches + j,
			OrigSlot:  p.OrigPatch,
			Side:      p.Side,
			PolyFaces: p.PolyFaces,
			MagSf:     magSf(p.Sf),
			Keys:      p.Keys,
		})
	}
	for ci := range s.mesh.Couplings {
		topo.Interfaces = append(topo.Interfaces, [2]int{2 * ci, 2*ci + 1})
	}
	return
}

func (s *Stitcher) canIntersect() bool {
	if len(s.mesh.Couplings) == 0 {
		return false
	}
	for _, c := range s.mesh.Couplings {
		if !s.mesh.CanIntersect(c) {
			return false
		}
	}
	return true
}

// Connect cuts the couplings into the mesh. The intersection is computed when
// geometric is set and every coupled patch has local geometry; otherwise the
// couples of the last connection (or those loaded with the mesh) are given
// stabilisation geometry. Returns whether the interface stitches anything.
func (s *Stitcher) Connect(geometric bool) (stitches bool, err error) {
	defer func() { recordTransition("connect", err) }()
	if s.state.Connected() {
		return false, fmt.Errorf("%w: connect while %s", ErrInvalidTransition, s.state)
	}
	var c connection
	if c, err = s.connection(geometric && s.canIntersect()); err != nil {
		return
	}
	conformal := layout(s.patchFaces, s.emptyNcc())
	if err = s.checkFields(conformal); err != nil {
		return
	}
	s.sf, s.cf, s.ncc, s.couples = c.sf, c.cf, c.ncc, c.couples
	s.topo = s.topology(s.ncc, s.sf)
	s.state = types.ConnectedStabilised
	if c.geometric {
		s.state = types.ConnectedGeometric
	}
	s.motion.CreateNonConformalCorrectMeshPhiGeometry(s.topo)
	var phiSplit *fields.Split[float64]
	for _, f := range s.scalars {
		var sp *fields.Split[float64]
		if sp, err = merge(s.splits, f, s.topo); err != nil {
			return
		}
		if f == s.meshPhi {
			phiSplit = sp
		}
	}
	for _, f := range s.vectors {
		if _, err = merge(s.splits, f, s.topo); err != nil {
			return
		}
	}
	if phiSplit != nil {
		if err = s.motion.UnconformCorrectMeshPhi(s.meshPhi, phiSplit); err != nil {
			return
		}
	}
	var nCouples int
	for _, cc := range s.couples {
		nCouples += len(cc)
	}
	couplesPerConnect.Observe(float64(nCouples))
	stabilisedFacesTotal.Add(float64(c.nStabilised))
	Logger().Info("connected",
		zap.String("state", s.state.String()),
		zap.Int("couples", nCouples),
		zap.Int("fields", len(s.scalars)+len(s.vectors)))
	Logger().Debug("stabilised original faces", zap.Int("faces", c.nStabilised))
	return s.Stitches(), nil
}

// connection computes the cut geometry and non-conformal patches from the uncut geometry
func (s *Stitcher) connection(geometric bool) (c connection, err error) {
	c = connection{
		sf:        append([]r3.Vec(nil), s.confSf...),
		cf:        append([]r3.Vec(nil), s.confCf...),
		ncc:       s.emptyNcc(),
		couples:   make([][]fields.CoupleKey, len(s.mesh.Couplings)),
		geometric: geometric,
	}
	var (
		stab     = NewStabiliser(s.cfg, s.confSf, s.confCf)
		perPatch [][]intersection.Part
		cut      []int
	)
	for ci, cp := range s.mesh.Couplings {
		var (
			ownerFaces = s.mesh.Patches[cp.Owner].Faces
			nbrFaces   = s.mesh.Patches[cp.Neighbour].Faces
			po, pn     = &c.ncc[2*ci], &c.ncc[2*ci+1]
			oParts     []intersection.Part
			nParts     []intersection.Part
		)
		c.couples[ci] = []fields.CoupleKey{}
		addFace := func(p *NccPatch, local int, part intersection.Part, key fields.CoupleKey) {
			p.PolyFaces = append(p.PolyFaces, local)
			p.Sf = append(p.Sf, part.Area)
			p.Cf = append(p.Cf, part.Centre)
			p.Keys = append(p.Keys, key)
		}
		if geometric {
			var res intersection.Result
			res, err = intersection.IntersectParallel(s.mesh.PatchPolygons(cp.Owner), s.mesh.PatchPolygons(cp.Neighbour),
				cp.Transform, s.cfg.IntersectionTolerance, s.cfg.IntersectionWorkers)
			if err != nil {
				err = fmt.Errorf("coupling %s: %w", cp.Name, err)
				return
			}
			for _, cpl := range res.Couples {
				key := fields.CoupleKey{Owner: ownerFaces[cpl.Owner.Face], Neighbour: nbrFaces[cpl.Neighbour.Face]}
				addFace(po, cpl.Owner.Face, cpl.Owner, key)
				addFace(pn, cpl.Neighbour.Face, cpl.Neighbour, key)
				c.couples[ci] = append(c.couples[ci], key)
			}
			for _, p := range res.OwnerParts {
				p.Face = ownerFaces[p.Face]
				oParts = append(oParts, p)
			}
			for _, p := range res.NeighbourParts {
				p.Face = nbrFaces[p.Face]
				nParts = append(nParts, p)
			}
		} else {
			for _, key := range s.stabilisedCouples(ci) {
				oPatch, oLocal := s.mesh.FacePatch(key.Owner)
				nPatch, nLocal := s.mesh.FacePatch(key.Neighbour)
				if oPatch != cp.Owner || nPatch != cp.Neighbour {
					err = fmt.Errorf("%w: coupling %s couples faces %d and %d which are not on patches %s and %s",
						ErrFaceIndex, cp.Name, key.Owner, key.Neighbour,
						s.mesh.Patches[cp.Owner].Name, s.mesh.Patches[cp.Neighbour].Name)
					return
				}
				op := stab.StabilisationPart(key.Owner, types.Owner)
				np := stab.StabilisationPart(key.Neighbour, types.Neighbour)
				addFace(po, oLocal, op, key)
				addFace(pn, nLocal, np, key)
				oParts, nParts = append(oParts, op), append(nParts, np)
				c.couples[ci] = append(c.couples[ci], key)
			}
		}
		perPatch = append(perPatch, oParts, nParts)
	}
	parts := Consolidate(perPatch)
	if err = Apply(parts, c.sf, c.cf); err != nil {
		return
	}
	for _, p := range parts {
		cut = append(cut, p.Face)
	}
	c.nStabilised = stab.Stabilise(cut, c.sf, c.cf)
	return
}

// stabilisedCouples are the couples of the last connection, or those loaded with the mesh
func (s *Stitcher) stabilisedCouples(ci int) (keys []fields.CoupleKey) {
	if s.couples[ci] != nil {
		return s.couples[ci]
	}
	for _, pair := range s.mesh.Couplings[ci].LoadedCouples {
		keys = append(keys, fields.CoupleKey{Owner: pair[0], Neighbour: pair[1]})
	}
	return
}

// Disconnect splits every registered field, restores the uncut geometry and
// empties the non-conformal patches. The couples are remembered for a later
// stabilised connection.
func (s *Stitcher) Disconnect() (err error) {
	defer func() { recordTransition("disconnect", err) }()
	if !s.state.Connected() {
		return fmt.Errorf("%w: disconnect while %s", ErrInvalidTransition, s.state)
	}
	if err = s.checkFields(s.Layout()); err != nil {
		return
	}
	for _, f := range s.scalars {
		if s.splits.Has(f.ID) {
			return fmt.Errorf("%w: %s", fields.ErrAlreadySplit, f.Name)
		}
	}
	for _, f := range s.vectors {
		if s.splits.Has(f.ID) {
			return fmt.Errorf("%w: %s", fields.ErrAlreadySplit, f.Name)
		}
	}
	if s.meshPhi != nil {
		if err = s.motion.ConformCorrectMeshPhi(s.meshPhi, s.topo); err != nil {
			return
		}
	}
	for _, f := range s.scalars {
		if err = split(s.splits, f, s.topo); err != nil {
			return
		}
	}
	for _, f := range s.vectors {
		if err = split(s.splits, f, s.topo); err != nil {
			return
		}
	}
	s.sf = append([]r3.Vec(nil), s.confSf...)
	s.cf = append([]r3.Vec(nil), s.confCf...)
	s.ncc = s.emptyNcc()
	s.topo = s.topology(s.ncc, s.sf)
	s.state = types.Disconnected
	Logger().Info("disconnected", zap.Int("splitFields", s.splits.Len()))
	return
}

// Reconnect disconnects, when connected, and connects again on the same mesh
func (s *Stitcher) Reconnect(geometric bool) (stitches bool, err error) {
	if s.state.Connected() {
		if err = s.Disconnect(); err != nil {
			return
		}
	}
	return s.Connect(geometric)
}

// MovePoints moves the mesh and, when connected, recomputes the intersection on
// the new geometry
func (s *Stitcher) MovePoints(points []r3.Vec) (err error) {
	defer func() { recordTransition("movePoints", err) }()
	if len(points) != len(s.mesh.Points) {
		return fmt.Errorf("motion supplies %d points, mesh has %d", len(points), len(s.mesh.Points))
	}
	wasConnected := s.state.Connected()
	if wasConnected {
		if err = s.Disconnect(); err != nil {
			return
		}
	}
	if _, err = s.mesh.MovePoints(points); err != nil {
		return
	}
	s.resetGeometry()
	if wasConnected {
		_, err = s.Connect(true)
	}
	return
}

// UpdateMesh follows a topology change that has been applied to the mesh: fields
// are carried onto the new face numbering and, when connected, the interface is
// intersected again
func (s *Stitcher) UpdateMesh(tm *mesh.TopoChangeMap) (err error) {
	defer func() { recordTransition("updateMesh", err) }()
	if tm == nil {
		return errors.New("mesh update without a topology change map")
	}
	if len(tm.OldPatchFaces) != len(s.mesh.Patches) {
		return fmt.Errorf("topology change has %d patches, mesh has %d", len(tm.OldPatchFaces), len(s.mesh.Patches))
	}
	var (
		nOldFaces    = len(s.confSf)
		wasConnected = s.state.Connected()
	)
	if wasConnected {
		if err = s.Disconnect(); err != nil {
			return
		}
	}
	_, newCf := s.mesh.FaceGeometry()
	maps := make([]fields.PatchMap, len(s.mesh.Patches)+2*len(s.mesh.Couplings))
	for pi, p := range s.mesh.Patches {
		maps[pi].NewToOld = tm.PatchFaceMap(s.mesh, pi)
		maps[pi].Centres = make([]r3.Vec, len(p.Faces))
		for i, f := range p.Faces {
			maps[pi].Centres[i] = newCf[f]
		}
	}
	oldToNew := tm.OldToNew(nOldFaces)
	for _, f := range s.scalars {
		if err = remap(s.splits, f, maps, oldToNew); err != nil {
			return
		}
	}
	for _, f := range s.vectors {
		if err = remap(s.splits, f, maps, oldToNew); err != nil {
			return
		}
	}
	for ci, keys := range s.couples {
		if keys == nil {
			continue
		}
		kept := []fields.CoupleKey{}
		for _, k := range keys {
			if k.Owner >= nOldFaces || k.Neighbour >= nOldFaces {
				continue
			}
			if o, n := oldToNew[k.Owner], oldToNew[k.Neighbour]; o >= 0 && n >= 0 {
				kept = append(kept, fields.CoupleKey{Owner: o, Neighbour: n})
			}
		}
		s.couples[ci] = kept
	}
	s.resetGeometry()
	Logger().Info("mesh updated", zap.Int("faces", s.mesh.NumFaces()))
	if wasConnected {
		_, err = s.Connect(true)
	}
	return
}

func (s *Stitcher) checkFields(sizes []int) (err error) {
	for _, f := range s.scalars {
		if err = f.CheckLayout(sizes); err != nil {
			return
		}
	}
	for _, f := range s.vectors {
		if err = f.CheckLayout(sizes); err != nil {
			return
		}
	}
	return
}

func split[T any](r *fields.Registry, f *fields.Field[T], topo *fields.Topology) error {
	sp, err := fields.PreConform(f, topo)
	if err != nil {
		return err
	}
	return fields.Store(r, sp)
}

// merge rebuilds f on topo from its stored split, or from its conformal values if it has none
func merge[T any](r *fields.Registry, f *fields.Field[T], topo *fields.Topology) (sp *fields.Split[T], err error) {
	if sp, err = fields.Take(r, f); errors.Is(err, fields.ErrNotSplit) {
		sp, err = fields.ConformalSplit(f, topo)
	}
	if err != nil {
		return
	}
	err = fields.PostNonConform(sp, topo)
	return
}

func remap[T any](r *fields.Registry, f *fields.Field[T], maps []fields.PatchMap, oldToNew []int) error {
	sp, err := fields.Peek(r, f)
	if errors.Is(err, fields.ErrNotSplit) {
		return fields.ResizePatchFields(f, maps)
	}
	if err != nil {
		return err
	}
	return sp.Remap(maps, oldToNew)
}

func register[T any](s *Stitcher, f *fields.Field[T]) error {
	if f.Ops == nil {
		return fmt.Errorf("field %s has no arithmetic", f.Name)
	}
	for _, g := range s.scalars {
		if g.ID == f.ID {
			return fmt.Errorf("field %s (%s) is already registered", f.Name, f.ID)
		}
	}
	for _, g := range s.vectors {
		if g.ID == f.ID {
			return fmt.Errorf("field %s (%s) is already registered", f.Name, f.ID)
		}
	}
	return f.CheckLayout(s.Layout())
}

// RegisterScalarField puts f under the stitcher's control. It must have the current Layout.
func (s *Stitcher) RegisterScalarField(f *fields.Field[float64]) (err error) {
	if err = register(s, f); err == nil {
		s.scalars = append(s.scalars, f)
	}
	return
}

func (s *Stitcher) RegisterVectorField(f *fields.Field[r3.Vec]) (err error) {
	if err = register(s, f); err == nil {
		s.vectors = append(s.vectors, f)
	}
	return
}

// SetMeshPhi registers the mesh flux, the field corrected by the mesh motion
func (s *Stitcher) SetMeshPhi(phi *fields.Field[float64]) (err error) {
	if phi.Kind != types.Extensive {
		return fmt.Errorf("mesh flux %s must be %s, is %s", phi.Name, types.Extensive, phi.Kind)
	}
	if s.meshPhi != nil {
		return fmt.Errorf("mesh flux already set to %s", s.meshPhi.Name)
	}
	if err = s.RegisterScalarField(phi); err == nil {
		s.meshPhi = phi
	}
	return
}

func (s *Stitcher) State() types.ConnectionState { return s.state }

// Stitches is true when the interface couples anything: the last connection made
// couples or, before the first, couples were loaded with the mesh
func (s *Stitcher) Stitches() bool {
	for ci, keys := range s.couples {
		if len(keys) > 0 {
			return true
		}
		if keys == nil && len(s.mesh.Couplings[ci].LoadedCouples) > 0 {
			return true
		}
	}
	return false
}

// Geometric is true when the current geometry is a computed intersection
func (s *Stitcher) Geometric() bool { return s.state == types.ConnectedGeometric }

func (s *Stitcher) Changing() bool { return s.motion.Changing() }

// Split is true while fields are held split between a disconnect and a connect
func (s *Stitcher) Split() bool { return s.splits.Len() != 0 }

// Sf and Cf are the face area vectors and centres of the mesh faces. Not to be modified.
func (s *Stitcher) Sf() []r3.Vec { return s.sf }
func (s *Stitcher) Cf() []r3.Vec { return s.cf }

func (s *Stitcher) NccPatches() []NccPatch { return s.ncc }

func (s *Stitcher) Mesh() *mesh.Mesh { return s.mesh }
