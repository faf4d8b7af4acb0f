package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform maps neighbour-side coordinates of a coupling into the owner frame,
// x' = R x + t. A nil Rotation is the identity rotation.
type Transform struct {
	Rotation    *mat.Dense
	Translation r3.Vec
}

func Identity() Transform {
	return Transform{}
}

func Translation(t r3.Vec) Transform {
	return Transform{Translation: t}
}

func NewTransform(rotation *mat.Dense, translation r3.Vec) (tr Transform, err error) {
	if rotation != nil {
		if nr, nc := rotation.Dims(); nr != 3 || nc != 3 {
			err = fmt.Errorf("coupling rotation must be 3x3, have %dx%d", nr, nc)
			return
		}
		if mat.Det(rotation) == 0 {
			err = fmt.Errorf("coupling rotation is singular")
			return
		}
	}
	tr = Transform{Rotation: rotation, Translation: translation}
	return
}

// Vector rotates a direction (area vectors, normals)
func (tr Transform) Vector(v r3.Vec) r3.Vec {
	if tr.Rotation == nil {
		return v
	}
	var y mat.VecDense
	y.MulVec(tr.Rotation, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: y.AtVec(0), Y: y.AtVec(1), Z: y.AtVec(2)}
}

func (tr Transform) Point(p r3.Vec) r3.Vec {
	return r3.Add(tr.Vector(p), tr.Translation)
}

func (tr Transform) Polygon(p Polygon) (q Polygon) {
	q = make(Polygon, len(p))
	for i, pt := range p {
		q[i] = tr.Point(pt)
	}
	return
}

func (tr Transform) Inverse() (inv Transform, err error) {
	if tr.Rotation == nil {
		inv.Translation = r3.Scale(-1, tr.Translation)
		return
	}
	var rInv mat.Dense
	if err = rInv.Inverse(tr.Rotation); err != nil {
		err = fmt.Errorf("unable to invert coupling rotation: %w", err)
		return
	}
	inv.Rotation = &rInv
	inv.Translation = r3.Scale(-1, inv.Vector(tr.Translation))
	return
}
