package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/geometry"
)

// Patch is an ordered set of boundary faces sharing a role
type Patch struct {
	Name  string
	Faces []int // Global face labels
	// Remote marks a patch whose geometry lives on another partition and has
	// not been exchanged, so it cannot take part in an intersection.
	Remote bool
}

// Coupling declares a non-conformal owner/neighbour pair of original patches
type Coupling struct {
	Name      string
	Owner     int                // Owner side original patch index
	Neighbour int                // Neighbour side original patch index
	Transform geometry.Transform // Maps neighbour coordinates into the owner frame
	// LoadedCouples are owner/neighbour global face pairs read with the mesh.
	// They stand in for the intersection when it cannot be computed.
	LoadedCouples [][2]int
}

// Mesh is a polyhedral mesh with polygonal faces, following the owner/neighbour convention:
// the face normal points out of the owner cell, boundary faces have Neighbour = -1.
type Mesh struct {
	// Geometry
	Points []r3.Vec
	// Face geometry read with the mesh, used when Points are not available
	StoredSf, StoredCf []r3.Vec

	// Topology
	Faces     [][]int // Face to point connectivity
	Owner     []int   // Face to owner cell
	Neighbour []int   // Face to neighbour cell, -1 on the boundary
	NumCells  int

	Patches   []Patch
	Couplings []Coupling

	// Built by Init
	facePatch []int // Face to patch, -1 for internal faces
	faceLocal []int // Face to index within its patch
}

// Init validates the connectivity and builds the face to patch addressing
func (m *Mesh) Init() (err error) {
	nf := len(m.Faces)
	if len(m.Owner) != nf || len(m.Neighbour) != nf {
		return fmt.Errorf("face count %d does not match owner (%d) / neighbour (%d) sizes",
			nf, len(m.Owner), len(m.Neighbour))
	}
	if len(m.Points) == 0 && (len(m.StoredSf) != nf || len(m.StoredCf) != nf) {
		return fmt.Errorf("mesh without points must carry stored face geometry for all %d faces", nf)
	}
	for f, verts := range m.Faces {
		if len(verts) < 3 {
			return fmt.Errorf("face %d has %d points", f, len(verts))
		}
		if len(m.Points) != 0 {
			for _, p := range verts {
				if p < 0 || p >= len(m.Points) {
					return fmt.Errorf("face %d references point %d out of range", f, p)
				}
			}
		}
		if m.Owner[f] < 0 || m.Owner[f] >= m.NumCells || m.Neighbour[f] >= m.NumCells {
			return fmt.Errorf("face %d has invalid cells owner %d neighbour %d", f, m.Owner[f], m.Neighbour[f])
		}
	}
	m.facePatch = make([]int, nf)
	m.faceLocal = make([]int, nf)
	for f := range m.facePatch {
		m.facePatch[f] = -1
	}
	for pi, patch := range m.Patches {
		for i, f := range patch.Faces {
			switch {
			case f < 0 || f >= nf:
				return fmt.Errorf("patch %s face %d: label %d out of range", patch.Name, i, f)
			case m.Neighbour[f] >= 0:
				return fmt.Errorf("patch %s face %d: face %d is internal", patch.Name, i, f)
			case m.facePatch[f] >= 0:
				return fmt.Errorf("patch %s face %d: face %d already in patch %s",
					patch.Name, i, f, m.Patches[m.facePatch[f]].Name)
			}
			m.facePatch[f] = pi
			m.faceLocal[f] = i
		}
	}
	for f := range m.Faces {
		if m.Neighbour[f] < 0 && m.facePatch[f] < 0 {
			return fmt.Errorf("boundary face %d is not in any patch", f)
		}
	}
	for _, c := range m.Couplings {
		if c.Owner < 0 || c.Owner >= len(m.Patches) || c.Neighbour < 0 || c.Neighbour >= len(m.Patches) ||
			c.Owner == c.Neighbour {
			return fmt.Errorf("coupling %s has invalid patches %d, %d", c.Name, c.Owner, c.Neighbour)
		}
	}
	return
}

func (m *Mesh) NumFaces() int { return len(m.Faces) }

// FacePatch returns the patch of a face and its index in that patch, (-1, -1) for internal faces
func (m *Mesh) FacePatch(f int) (patch, local int) {
	if m.facePatch[f] < 0 {
		return -1, -1
	}
	return m.facePatch[f], m.faceLocal[f]
}

func (m *Mesh) PatchIndex(name string) int {
	for i, p := range m.Patches {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// HasGeometry is true when the point positions are available
func (m *Mesh) HasGeometry() bool {
	return len(m.Points) != 0
}

// CanIntersect is true when both sides of the coupling are local and have point positions
func (m *Mesh) CanIntersect(c Coupling) bool {
	return m.HasGeometry() && !m.Patches[c.Owner].Remote && !m.Patches[c.Neighbour].Remote
}

func (m *Mesh) FacePolygon(f int) (p geometry.Polygon) {
	p = make(geometry.Polygon, len(m.Faces[f]))
	for i, pt := range m.Faces[f] {
		p[i] = m.Points[pt]
	}
	return
}

func (m *Mesh) PatchPolygons(patch int) (polys []geometry.Polygon) {
	faces := m.Patches[patch].Faces
	polys = make([]geometry.Polygon, len(faces))
	for i, f := range faces {
		polys[i] = m.FacePolygon(f)
	}
	return
}

// FaceGeometry returns the conformal area vectors and centres of every face
func (m *Mesh) FaceGeometry() (sf, cf []r3.Vec) {
	nf := len(m.Faces)
	sf, cf = make([]r3.Vec, nf), make([]r3.Vec, nf)
	if !m.HasGeometry() {
		copy(sf, m.StoredSf)
		copy(cf, m.StoredCf)
		return
	}
	for f := range m.Faces {
		p := m.FacePolygon(f)
		sf[f], cf[f] = p.AreaVector(), p.Centre()
	}
	return
}

// CellVolumes integrates x.n over the faces of each cell (divergence theorem)
func (m *Mesh) CellVolumes(sf, cf []r3.Vec) (v []float64) {
	v = make([]float64, m.NumCells)
	for f := range m.Faces {
		contrib := r3.Dot(cf[f], sf[f]) / 3.
		v[m.Owner[f]] += contrib
		if nb := m.Neighbour[f]; nb >= 0 {
			v[nb] -= contrib
		}
	}
	return
}

// MovePoints replaces the point positions and returns the previous ones
func (m *Mesh) MovePoints(points []r3.Vec) (old []r3.Vec, err error) {
	if len(points) != len(m.Points) {
		err = fmt.Errorf("motion supplies %d points, mesh has %d", len(points), len(m.Points))
		return
	}
	old = m.Points
	m.Points = points
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	var nInternal int
	for _, nb := range m.Neighbour {
		if nb >= 0 {
			nInternal++
		}
	}
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Points: %d\n", len(m.Points))
	fmt.Printf("  Cells: %d\n", m.NumCells)
	fmt.Printf("  Faces: %d (%d internal)\n", len(m.Faces), nInternal)
	fmt.Printf("  Patches:\n")
	for _, p := range m.Patches {
		fmt.Printf("    %s: %d faces\n", p.Name, len(p.Faces))
	}
	for _, c := range m.Couplings {
		fmt.Printf("  Coupling %s: %s -> %s\n", c.Name, m.Patches[c.Owner].Name, m.Patches[c.Neighbour].Name)
	}
}
