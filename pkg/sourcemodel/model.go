package sourcemodel

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/srcmodel/pkg/formats"
)

// SourceModel is a loaded and cross-validated model. It is never modified after
// Load returns and may be shared between goroutines.
type SourceModel struct {
	Name       string
	Studio     *formats.StudioModel
	Topology   *formats.VTX
	VertexData *formats.VVD

	// Projections of VertexData.Vertices, same length and order.
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
}

func newSourceModel(name string, studio *formats.StudioModel, topology *formats.VTX, vertexData *formats.VVD) *SourceModel {
	n := len(vertexData.Vertices)
	m := &SourceModel{
		Name:       name,
		Studio:     studio,
		Topology:   topology,
		VertexData: vertexData,
		Positions:  make([]mgl32.Vec3, n),
		Normals:    make([]mgl32.Vec3, n),
		TexCoords:  make([]mgl32.Vec2, n),
	}
	for i, v := range vertexData.Vertices {
		m.Positions[i] = mgl32.Vec3(v.Position)
		m.Normals[i] = mgl32.Vec3(v.Normal)
		m.TexCoords[i] = mgl32.Vec2(v.TexCoord)
	}
	return m
}

// Checksum returns the checksum shared by all three files.
func (m *SourceModel) Checksum() int32 {
	return m.Studio.Header.Checksum
}

// NumLODs returns the number of levels of detail in the mesh topology.
func (m *SourceModel) NumLODs() int {
	return int(m.Topology.Header.NumLODs)
}

// Bounds returns the axis-aligned bounding box of all vertex positions.
// ok is false for a model without vertices.
func (m *SourceModel) Bounds() (min, max mgl32.Vec3, ok bool) {
	if len(m.Positions) == 0 {
		return min, max, false
	}

	inf := math32.Inf(1)
	min = mgl32.Vec3{inf, inf, inf}
	max = mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range m.Positions {
		for i := 0; i < 3; i++ {
			min[i] = math32.Min(min[i], p[i])
			max[i] = math32.Max(max[i], p[i])
		}
	}
	return min, max, true
}

// MeshTriangles holds the triangles of one VTX mesh.
type MeshTriangles struct {
	BodyPart int
	Model    int
	Mesh     int
	Indices  []uint32 // Indices into Positions, three per triangle
}

// Triangles assembles the triangles of one LOD as indices into Positions.
// Every three consecutive values form one triangle.
func (m *SourceModel) Triangles(lod int) ([]uint32, error) {
	meshes, err := m.MeshTriangles(lod)
	if err != nil {
		return nil, err
	}

	var out []uint32
	for _, mt := range meshes {
		out = append(out, mt.Indices...)
	}
	return out, nil
}

// MeshTriangles assembles the triangles of one LOD per mesh, in body part,
// model and mesh order.
//
// Each VTX vertex refers to a vertex of its studio mesh. Studio meshes store
// their vertices back to back in the flat array, in body part, model and mesh
// order, so a mesh's base is the sum of the vertex counts of all meshes before
// it. The counts are taken from LOD 0, which references every mesh vertex.
func (m *SourceModel) MeshTriangles(lod int) ([]MeshTriangles, error) {
	if lod < 0 || lod >= m.NumLODs() {
		return nil, fmt.Errorf("lod %d out of range [0, %d)", lod, m.NumLODs())
	}

	var out []MeshTriangles
	var base uint32
	for b, bp := range m.Topology.BodyParts {
		for j, model := range bp.Models {
			if len(model.LODs) == 0 {
				continue
			}
			bases := meshBases(model.LODs[0], base)
			base = bases[len(bases)-1]

			if lod >= len(model.LODs) {
				continue
			}
			for k, mesh := range model.LODs[lod].Meshes {
				if k >= len(bases)-1 {
					return nil, fmt.Errorf("body part %d model %d lod %d: mesh %d has no lod 0 counterpart", b, j, lod, k)
				}
				mt := MeshTriangles{BodyPart: b, Model: j, Mesh: k}
				for n, sg := range mesh.StripGroups {
					tris, err := stripGroupTriangles(sg, bases[k])
					if err != nil {
						return nil, fmt.Errorf("body part %d model %d lod %d mesh %d strip group %d: %w", b, j, lod, k, n, err)
					}
					mt.Indices = append(mt.Indices, tris...)
				}
				for _, idx := range mt.Indices {
					if int(idx) >= len(m.Positions) {
						return nil, fmt.Errorf("%w: vertex %d of %d", ErrIndexOutOfRange, idx, len(m.Positions))
					}
				}
				out = append(out, mt)
			}
		}
	}
	return out, nil
}

// meshBases returns the first flat vertex of every mesh in lod, followed by
// the first vertex after the last mesh.
func meshBases(lod formats.VTXLOD, start uint32) []uint32 {
	bases := make([]uint32, 0, len(lod.Meshes)+1)
	next := start
	for _, mesh := range lod.Meshes {
		bases = append(bases, next)
		var count uint32
		for _, sg := range mesh.StripGroups {
			for _, v := range sg.Vertices {
				count = max(count, uint32(v.OrigMeshVertID)+1)
			}
		}
		next += count
	}
	return append(bases, next)
}

func stripGroupTriangles(sg formats.VTXStripGroup, base uint32) ([]uint32, error) {
	resolve := func(i formats.VTXIndex) (uint32, error) {
		if int(i) >= len(sg.Vertices) {
			return 0, fmt.Errorf("%w: index %d of %d strip group vertices", ErrIndexOutOfRange, i, len(sg.Vertices))
		}
		return base + uint32(sg.Vertices[i].OrigMeshVertID), nil
	}

	strips := sg.Strips
	if len(strips) == 0 && len(sg.Indices) > 0 {
		strips = []formats.VTXStripHeader{{
			NumIndices: int32(len(sg.Indices)),
			Flags:      formats.StripIsTriList,
		}}
	}

	var out []uint32
	for s, strip := range strips {
		start, n := int(strip.IndexOffset), int(strip.NumIndices)
		if start < 0 || n < 0 || start+n > len(sg.Indices) {
			return nil, fmt.Errorf("%w: strip %d indices [%d, %d) of %d", ErrIndexOutOfRange, s, start, start+n, len(sg.Indices))
		}
		indices := sg.Indices[start : start+n]

		var tris []formats.VTXIndex
		if strip.IsTriStrip() {
			tris = unstrip(indices)
		} else {
			tris = indices[:len(indices)-len(indices)%3]
		}

		for _, i := range tris {
			v, err := resolve(i)
			if err != nil {
				return nil, fmt.Errorf("strip %d: %w", s, err)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// unstrip converts a triangle strip to a list, flipping every other triangle to
// keep the winding and dropping degenerate triangles.
func unstrip(strip []formats.VTXIndex) []formats.VTXIndex {
	var out []formats.VTXIndex
	for i := 0; i+2 < len(strip); i++ {
		a, b, c := strip[i], strip[i+1], strip[i+2]
		if a == b || b == c || a == c {
			continue
		}
		if i%2 == 1 {
			a, b = b, a
		}
		out = append(out, a, b, c)
	}
	return out
}
