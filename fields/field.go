// Package fields holds per-face boundary data for a stitched mesh and the
// machinery that splits it into non-conformal-coupled and original components
// before the interface is disconnected, and recombines it once reconnected.
//
// Fields are generic over the value type. Arithmetic is supplied through an
// Ops capability so the same split/merge code serves scalars and vectors; the
// field Kind selects whether fragments are area weighted (intensive) or summed
// (extensive, e.g. fluxes).
package fields

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/types"
)

var (
	ErrSizeMismatch = errors.New("field size does not match mesh")
	ErrNotSplit     = errors.New("field has not been split")
	ErrAlreadySplit = errors.New("field is already split")
)

// Ops is the arithmetic a value type must provide to be split and merged
type Ops[T any] interface {
	Zero() T
	Add(a, b T) T
	Scale(f float64, a T) T
}

type Scalar struct{}

func (Scalar) Zero() float64                      { return 0 }
func (Scalar) Add(a, b float64) float64           { return a + b }
func (Scalar) Scale(f float64, a float64) float64 { return f * a }

type Vector struct{}

func (Vector) Zero() r3.Vec                     { return r3.Vec{} }
func (Vector) Add(a, b r3.Vec) r3.Vec           { return r3.Add(a, b) }
func (Vector) Scale(f float64, a r3.Vec) r3.Vec { return r3.Scale(f, a) }

// Field is a boundary field: one value per face of each patch slot. Slots are the
// mesh patches followed by the non-conformal patches of each coupling.
type Field[T any] struct {
	ID      uuid.UUID
	Name    string
	Kind    types.FieldKind
	Ops     Ops[T]
	Patches [][]T
}

func NewField[T any](name string, kind types.FieldKind, ops Ops[T], sizes []int) (f *Field[T]) {
	f = &Field[T]{
		ID:      uuid.New(),
		Name:    name,
		Kind:    kind,
		Ops:     ops,
		Patches: make([][]T, len(sizes)),
	}
	for s, n := range sizes {
		f.Patches[s] = make([]T, n)
		if ops != nil {
			for i := range f.Patches[s] {
				f.Patches[s][i] = ops.Zero()
			}
		}
	}
	return
}

func NewScalarField(name string, kind types.FieldKind, sizes []int) *Field[float64] {
	return NewField[float64](name, kind, Scalar{}, sizes)
}

func NewVectorField(name string, kind types.FieldKind, sizes []int) *Field[r3.Vec] {
	return NewField[r3.Vec](name, kind, Vector{}, sizes)
}

func (f *Field[T]) Sizes() (sizes []int) {
	sizes = make([]int, len(f.Patches))
	for s, p := range f.Patches {
		sizes[s] = len(p)
	}
	return
}

// CheckLayout verifies the field has the given number of faces on every slot
func (f *Field[T]) CheckLayout(sizes []int) error {
	if len(f.Patches) != len(sizes) {
		return fmt.Errorf("%w: field %s has %d patches, mesh has %d",
			ErrSizeMismatch, f.Name, len(f.Patches), len(sizes))
	}
	for s, n := range sizes {
		if len(f.Patches[s]) != n {
			return fmt.Errorf("%w: field %s patch %d has %d values, mesh has %d faces",
				ErrSizeMismatch, f.Name, s, len(f.Patches[s]), n)
		}
	}
	return nil
}

// Clone is a deep copy sharing the field identity
func (f *Field[T]) Clone() (c *Field[T]) {
	c = &Field[T]{ID: f.ID, Name: f.Name, Kind: f.Kind, Ops: f.Ops, Patches: make([][]T, len(f.Patches))}
	for s, p := range f.Patches {
		c.Patches[s] = append([]T(nil), p...)
	}
	return
}

func (f *Field[T]) Fill(v T) {
	for _, p := range f.Patches {
		for i := range p {
			p[i] = v
		}
	}
}
