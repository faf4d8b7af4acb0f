package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/geometry"
)

// Block is an axis aligned box of hexahedral cells
type Block struct {
	Origin r3.Vec
	Size   r3.Vec
	Cells  [3]int
}

type faceRec struct {
	verts            []int
	owner, neighbour int
}

type blockFaces struct {
	points                     []r3.Vec
	internal, xMin, xMax, rest []faceRec
}

// Patch and coupling names of the two block mesh
const (
	OwnerInterface     = "ownerInterface"
	OwnerWalls         = "ownerWalls"
	NeighbourInterface = "neighbourInterface"
	NeighbourWalls     = "neighbourWalls"
	InterfaceCoupling  = "interface"
)

// NewTwoBlockMesh builds two hex blocks that meet non-conformally: the x-max side of
// the owner block is coupled to the x-min side of the neighbour block. The blocks
// are expected to touch in x; their resolutions and in-plane offsets are arbitrary.
func NewTwoBlockMesh(owner, neighbour Block) (m *Mesh, err error) {
	for _, b := range []Block{owner, neighbour} {
		for d := 0; d < 3; d++ {
			if b.Cells[d] < 1 {
				return nil, fmt.Errorf("block needs at least one cell in each direction, have %v", b.Cells)
			}
		}
		if b.Size.X <= 0 || b.Size.Y <= 0 || b.Size.Z <= 0 {
			return nil, fmt.Errorf("block size must be positive, have %v", b.Size)
		}
	}
	var (
		nCellsOwner = owner.Cells[0] * owner.Cells[1] * owner.Cells[2]
		bo          = hexBlock(owner, 0, 0)
		bn          = hexBlock(neighbour, len(bo.points), nCellsOwner)
	)
	m = &Mesh{
		Points:   append(bo.points, bn.points...),
		NumCells: nCellsOwner + neighbour.Cells[0]*neighbour.Cells[1]*neighbour.Cells[2],
	}
	add := func(recs []faceRec) (labels []int) {
		for _, r := range recs {
			labels = append(labels, len(m.Faces))
			m.Faces = append(m.Faces, r.verts)
			m.Owner = append(m.Owner, r.owner)
			m.Neighbour = append(m.Neighbour, r.neighbour)
		}
		return
	}
	add(bo.internal)
	add(bn.internal)
	m.Patches = []Patch{
		{Name: OwnerInterface, Faces: add(bo.xMax)},
		{Name: OwnerWalls, Faces: add(append(bo.xMin, bo.rest...))},
		{Name: NeighbourInterface, Faces: add(bn.xMin)},
		{Name: NeighbourWalls, Faces: add(append(bn.xMax, bn.rest...))},
	}
	m.Couplings = []Coupling{{
		Name:      InterfaceCoupling,
		Owner:     0,
		Neighbour: 2,
		Transform: geometry.Identity(),
	}}
	err = m.Init()
	return
}

func hexBlock(b Block, pointOffset, cellOffset int) (bf blockFaces) {
	var (
		nx, ny, nz = b.Cells[0], b.Cells[1], b.Cells[2]
		dx         = b.Size.X / float64(nx)
		dy         = b.Size.Y / float64(ny)
		dz         = b.Size.Z / float64(nz)
	)
	pid := func(i, j, k int) int { return pointOffset + i + (nx+1)*(j+(ny+1)*k) }
	cid := func(i, j, k int) int { return cellOffset + i + nx*(j+ny*k) }
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				bf.points = append(bf.points, r3.Vec{
					X: b.Origin.X + float64(i)*dx,
					Y: b.Origin.Y + float64(j)*dy,
					Z: b.Origin.Z + float64(k)*dz,
				})
			}
		}
	}
	reverse := func(q []int) []int {
		return []int{q[0], q[3], q[2], q[1]}
	}
	// x normal faces, vertex order gives +x
	for i := 0; i <= nx; i++ {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				q := []int{pid(i, j, k), pid(i, j+1, k), pid(i, j+1, k+1), pid(i, j, k+1)}
				switch i {
				case 0:
					bf.xMin = append(bf.xMin, faceRec{reverse(q), cid(0, j, k), -1})
				case nx:
					bf.xMax = append(bf.xMax, faceRec{q, cid(nx-1, j, k), -1})
				default:
					bf.internal = append(bf.internal, faceRec{q, cid(i-1, j, k), cid(i, j, k)})
				}
			}
		}
	}
	// y normal faces, vertex order gives +y
	for j := 0; j <= ny; j++ {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				q := []int{pid(i, j, k), pid(i, j, k+1), pid(i+1, j, k+1), pid(i+1, j, k)}
				switch j {
				case 0:
					bf.rest = append(bf.rest, faceRec{reverse(q), cid(i, 0, k), -1})
				case ny:
					bf.rest = append(bf.rest, faceRec{q, cid(i, ny-1, k), -1})
				default:
					bf.internal = append(bf.internal, faceRec{q, cid(i, j-1, k), cid(i, j, k)})
				}
			}
		}
	}
	// z normal faces, vertex order gives +z
	for k := 0; k <= nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				q := []int{pid(i, j, k), pid(i+1, j, k), pid(i+1, j+1, k), pid(i, j+1, k)}
				switch k {
				case 0:
					bf.rest = append(bf.rest, faceRec{reverse(q), cid(i, j, 0), -1})
				case nz:
					bf.rest = append(bf.rest, faceRec{q, cid(i, j, nz-1), -1})
				default:
					bf.internal = append(bf.internal, faceRec{q, cid(i, j, k-1), cid(i, j, k)})
				}
			}
		}
	}
	return
}
