package fields

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/notargets/ncstitch/types"
)

type splitKey struct {
	Slot int
	Key  CoupleKey
}

type coupleValue[T any] struct {
	Value T
	MagSf float64
}

// Split holds the two components of a field while the interface is disconnected.
// Ncc and Orig use the conformal layout: Ncc carries, per original face, the
// combined value of the non-conformal faces cut from it, Orig the value of what
// remained of the original face. Per-couple values are kept as well so that a
// reconnection onto the same couples restores the field exactly.
type Split[T any] struct {
	Field     *Field[T]
	Ncc, Orig *Field[T]
	couples   map[splitKey]coupleValue[T]
}

// PreConform splits f into its non-conformal-coupled and original components and
// replaces f with its conformal representation, in which the non-conformal slots
// are empty and each original face holds the combination of both components.
func PreConform[T any](f *Field[T], topo *Topology) (s *Split[T], err error) {
	if err = topo.Validate(); err != nil {
		return
	}
	if err = f.CheckLayout(topo.Sizes); err != nil {
		return
	}
	var (
		ops      = f.Ops
		conf     = topo.Conformal()
		nccMagSf = make([][]float64, len(conf))
	)
	s = &Split[T]{
		Field:   f,
		Ncc:     &Field[T]{ID: f.ID, Name: f.Name, Kind: f.Kind, Ops: ops, Patches: make([][]T, len(conf))},
		Orig:    &Field[T]{ID: f.ID, Name: f.Name, Kind: f.Kind, Ops: ops, Patches: make([][]T, len(conf))},
		couples: make(map[splitKey]coupleValue[T]),
	}
	for slot, n := range conf {
		s.Orig.Patches[slot] = append([]T(nil), f.Patches[slot][:n]...)
		s.Ncc.Patches[slot] = make([]T, n)
		for i := range s.Ncc.Patches[slot] {
			s.Ncc.Patches[slot][i] = ops.Zero()
		}
		nccMagSf[slot] = make([]float64, n)
	}
	for _, p := range topo.Patches {
		for k, i := range p.PolyFaces {
			var (
				v = f.Patches[p.Slot][k]
				a = p.MagSf[k]
			)
			s.couples[splitKey{p.Slot, p.Keys[k]}] = coupleValue[T]{v, a}
			if f.Kind == types.Intensive {
				v = ops.Scale(a, v)
			}
			s.Ncc.Patches[p.OrigSlot][i] = ops.Add(s.Ncc.Patches[p.OrigSlot][i], v)
			nccMagSf[p.OrigSlot][i] += a
		}
	}
	conformal := make([][]T, len(conf))
	for slot, n := range conf {
		conformal[slot] = append([]T(nil), s.Orig.Patches[slot]...)
		if topo.OrigMagSf[slot] == nil {
			continue
		}
		for i := 0; i < n; i++ {
			var (
				aN   = nccMagSf[slot][i]
				vN   = s.Ncc.Patches[slot][i]
				vO   = s.Orig.Patches[slot][i]
				aO   = topo.OrigMagSf[slot][i]
				aSum = aN + aO
			)
			switch {
			case aN == 0:
				if f.Kind == types.Intensive {
					s.Ncc.Patches[slot][i] = vO
				}
			case f.Kind == types.Extensive:
				conformal[slot][i] = ops.Add(vO, vN)
			default:
				s.Ncc.Patches[slot][i] = ops.Scale(1./aN, vN)
				conformal[slot][i] = ops.Scale(1./aSum, ops.Add(ops.Scale(aO, vO), vN))
			}
		}
	}
	f.Patches = conformal
	return
}

// ConformalSplit builds the components of a field that is held in its conformal
// form, e.g. one read or created while the interface was disconnected. Intensive
// values are shared by both components, extensive values are divided by area.
func ConformalSplit[T any](f *Field[T], topo *Topology) (s *Split[T], err error) {
	if err = topo.Validate(); err != nil {
		return
	}
	conf := topo.Conformal()
	if err = f.CheckLayout(conf); err != nil {
		return
	}
	ops := f.Ops
	s = &Split[T]{
		Field:   f,
		Ncc:     &Field[T]{ID: f.ID, Name: f.Name, Kind: f.Kind, Ops: ops, Patches: make([][]T, len(conf))},
		Orig:    f.Clone(),
		couples: make(map[splitKey]coupleValue[T]),
	}
	nccMagSf := make([][]float64, len(conf))
	for slot, n := range conf {
		s.Ncc.Patches[slot] = make([]T, n)
		for i := range s.Ncc.Patches[slot] {
			s.Ncc.Patches[slot][i] = ops.Zero()
		}
		nccMagSf[slot] = make([]float64, n)
	}
	for _, p := range topo.Patches {
		for k, i := range p.PolyFaces {
			nccMagSf[p.OrigSlot][i] += p.MagSf[k]
		}
	}
	for slot, n := range conf {
		for i := 0; i < n; i++ {
			v := f.Patches[slot][i]
			if f.Kind == types.Intensive {
				s.Ncc.Patches[slot][i] = v
				continue
			}
			aN := nccMagSf[slot][i]
			if aN == 0 {
				continue
			}
			aO := topo.OrigMagSf[slot][i]
			s.Ncc.Patches[slot][i] = ops.Scale(aN/(aN+aO), v)
			s.Orig.Patches[slot][i] = ops.Scale(aO/(aN+aO), v)
		}
	}
	return
}

// PostNonConform rebuilds the non-conformal field from its stored components on the
// given topology. Couples present at the split get their stored value back (fluxes
// rescaled by the change in face area); new couples take the combined value of
// their original face. For fluxes the new couples share out what the stored
// couples did not take back, by area, and without new couples that remainder
// stays on the original face, so orig + sum(ncc) of every face is unchanged.
func PostNonConform[T any](s *Split[T], topo *Topology) (err error) {
	if err = topo.Validate(); err != nil {
		return
	}
	conf := topo.Conformal()
	if err = s.Ncc.CheckLayout(conf); err != nil {
		return
	}
	if err = s.Orig.CheckLayout(conf); err != nil {
		return
	}
	var (
		f         = s.Field
		ops       = f.Ops
		extensive = f.Kind == types.Extensive
		patches   = make([][]T, len(topo.Sizes))
		stored    = make([][]T, len(conf))       // Sum of the restored couple fluxes per original face
		newMagSf  = make([][]float64, len(conf)) // Area of the new couples per original face
		cached    = make([][]bool, len(topo.Patches))
	)
	for slot := range conf {
		patches[slot] = append([]T(nil), s.Orig.Patches[slot]...)
		stored[slot] = make([]T, conf[slot])
		for i := range stored[slot] {
			stored[slot][i] = ops.Zero()
		}
		newMagSf[slot] = make([]float64, conf[slot])
	}
	for j, p := range topo.Patches {
		patches[p.Slot] = make([]T, p.Len())
		cached[j] = make([]bool, p.Len())
		for k, i := range p.PolyFaces {
			a := p.MagSf[k]
			c, ok := s.couples[splitKey{p.Slot, p.Keys[k]}]
			cached[j][k] = ok
			switch {
			case !ok:
				newMagSf[p.OrigSlot][i] += a
			case extensive:
				v := c.Value
				if c.MagSf > 0 {
					v = ops.Scale(a/c.MagSf, v)
				}
				patches[p.Slot][k] = v
				stored[p.OrigSlot][i] = ops.Add(stored[p.OrigSlot][i], v)
			default:
				patches[p.Slot][k] = c.Value
			}
		}
	}
	remainder := func(slot, i int) T {
		return ops.Add(s.Ncc.Patches[slot][i], ops.Scale(-1, stored[slot][i]))
	}
	for j, p := range topo.Patches {
		for k, i := range p.PolyFaces {
			switch {
			case cached[j][k]:
			case extensive:
				patches[p.Slot][k] = ops.Scale(p.MagSf[k]/newMagSf[p.OrigSlot][i], remainder(p.OrigSlot, i))
			default:
				patches[p.Slot][k] = s.Ncc.Patches[p.OrigSlot][i]
			}
		}
	}
	if extensive {
		for _, p := range topo.Patches {
			for i := range newMagSf[p.OrigSlot] {
				if newMagSf[p.OrigSlot][i] == 0 {
					patches[p.OrigSlot][i] = ops.Add(s.Orig.Patches[p.OrigSlot][i], remainder(p.OrigSlot, i))
				}
			}
		}
	}
	f.Patches = patches
	return
}

// Registry is the transient store of split fields for one conform cycle, keyed by field identity
type Registry struct {
	splits map[uuid.UUID]any
}

func NewRegistry() *Registry {
	return &Registry{splits: make(map[uuid.UUID]any)}
}

func (r *Registry) Len() int { return len(r.splits) }

func (r *Registry) Has(id uuid.UUID) bool {
	_, ok := r.splits[id]
	return ok
}

func Store[T any](r *Registry, s *Split[T]) error {
	if r.Has(s.Field.ID) {
		return fmt.Errorf("%w: %s (%s)", ErrAlreadySplit, s.Field.Name, s.Field.ID)
	}
	r.splits[s.Field.ID] = s
	return nil
}

// Peek returns the stored split of f without removing it
func Peek[T any](r *Registry, f *Field[T]) (s *Split[T], err error) {
	v, ok := r.splits[f.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotSplit, f.Name, f.ID)
	}
	if s, ok = v.(*Split[T]); !ok {
		return nil, fmt.Errorf("stored split of %s has type %T", f.Name, v)
	}
	return
}

// Take removes and returns the stored split of f
func Take[T any](r *Registry, f *Field[T]) (s *Split[T], err error) {
	if s, err = Peek(r, f); err == nil {
		delete(r.splits, f.ID)
	}
	return
}
