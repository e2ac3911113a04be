// Package testmodel builds synthetic but consistent .mdl/.vtx/.vvd triples for tests.
//
// Every field is written explicitly at its documented byte offset, so the
// builders double as an independent description of the on-disk layout.
package testmodel

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing/fstest"
)

// Record sizes of the on-disk layout.
const (
	mdlHeaderSize        = 400
	vtxHeaderSize        = 36
	vtxBodyPartSize      = 8
	vtxModelSize         = 8
	vtxLODSize           = 12
	vtxMeshSize          = 9
	vtxStripGroupSize    = 25
	vtxVertexSize        = 9
	vtxIndexSize         = 2
	vtxStripSize         = 27
	vvdHeaderSize        = 64
	vvdFixupSize         = 12
	vvdVertexSize        = 48
	vvdTangentSize       = 16
	mdlBodyPartCountAt   = 232
	mdlBodyPartOffsetAt  = 236
	mdlStudioHdr2IndexAt = 392
	mdlNameSize          = 64
	maxLODs              = 8
)

// Magic values and flags written by the builders.
const (
	MDLMagic              = "IDST"
	VVDMagic              = "IDSV"
	VTXVersion            = 7
	stripIsTriList        = 0x01
	stripGroupIsHWSkinned = 0x02
)

// Fixup is one entry of the vertex data fixup table.
type Fixup struct {
	LOD            int32
	SourceVertexID int32
	NumVertexes    int32
}

// Layout describes the shape of a synthetic model.
// Counts are per parent: Models per body part, LODs per model and so on.
type Layout struct {
	Name        string // Internal name stored in the .mdl
	Checksum    int32
	MDLVersion  int32
	BodyParts   int
	Models      int
	LODs        int
	Meshes      int
	StripGroups int
	Verts       int // Vertices per strip group; 3 or more produce a triangle fan
	Vertices    int // Flat vertex count; 0 derives it from the mesh layout
	Fixups      []Fixup
}

// Default mirrors the shape of a single-body-part player model.
func Default() Layout {
	return Layout{
		Name:        "player/ctm_sas_variantA.mdl",
		Checksum:    0x5A17C0DE,
		MDLVersion:  49,
		BodyParts:   1,
		Models:      1,
		LODs:        1,
		Meshes:      4,
		StripGroups: 1,
		Verts:       4,
	}
}

// VertexCount returns the number of flat vertices the layout produces.
func (l Layout) VertexCount() int {
	if l.Vertices > 0 {
		return l.Vertices
	}
	return l.BodyParts * l.Models * l.Meshes * l.Verts
}

// IndexCount returns the number of indices per strip group.
func (l Layout) IndexCount() int {
	if l.Verts < 3 {
		return 0
	}
	return 3 * (l.Verts - 2)
}

type buf []byte

func (b buf) i32(off int, v int32)   { binary.LittleEndian.PutUint32(b[off:], uint32(v)) }
func (b buf) i16(off int, v int16)   { binary.LittleEndian.PutUint16(b[off:], uint16(v)) }
func (b buf) u16(off int, v uint16)  { binary.LittleEndian.PutUint16(b[off:], v) }
func (b buf) f32(off int, v float32) { binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v)) }

// BuildMDL encodes the studio header. Only the header is present; body part
// records are not part of the decoded surface.
func BuildMDL(l Layout) []byte {
	b := make(buf, mdlHeaderSize)
	copy(b[0:4], MDLMagic)
	b.i32(4, l.MDLVersion)
	b.i32(8, l.Checksum)
	copy(b[12:12+mdlNameSize], l.Name)
	b.i32(76, int32(len(b)))
	b.i32(mdlBodyPartCountAt, int32(l.BodyParts))
	b.i32(mdlBodyPartOffsetAt, mdlHeaderSize)
	b.i32(mdlStudioHdr2IndexAt, 0)
	return b
}

// BuildVVD encodes the vertex data file: header, fixups, vertices, tangents.
func BuildVVD(l Layout) []byte {
	n := l.VertexCount()
	fixupStart := vvdHeaderSize
	vertexStart := fixupStart + len(l.Fixups)*vvdFixupSize
	tangentStart := vertexStart + n*vvdVertexSize
	b := make(buf, tangentStart+n*vvdTangentSize)

	copy(b[0:4], VVDMagic)
	b.i32(4, 4)
	b.i32(8, l.Checksum)
	b.i32(12, int32(l.LODs))
	for i := 0; i < l.LODs && i < maxLODs; i++ {
		b.i32(16+4*i, int32(n))
	}
	b.i32(48, int32(len(l.Fixups)))
	b.i32(52, int32(fixupStart))
	b.i32(56, int32(vertexStart))
	b.i32(60, int32(tangentStart))

	for i, f := range l.Fixups {
		off := fixupStart + i*vvdFixupSize
		b.i32(off, f.LOD)
		b.i32(off+4, f.SourceVertexID)
		b.i32(off+8, f.NumVertexes)
	}

	for i := 0; i < n; i++ {
		off := vertexStart + i*vvdVertexSize
		p := VertexPosition(i)
		b.f32(off, 1)  // weight 0
		b[off+12] = 0  // bone 0
		b[off+15] = 1  // num bones
		b.f32(off+16, p[0])
		b.f32(off+20, p[1])
		b.f32(off+24, p[2])
		b.f32(off+36, 1) // normal +Z
		b.f32(off+40, float32(i)/float32(n))
		b.f32(off+44, 1-float32(i)/float32(n))
	}

	for i := 0; i < n; i++ {
		off := tangentStart + i*vvdTangentSize
		b.f32(off, 1)
		b.f32(off+12, 1)
	}
	return b
}

// VertexPosition is the position BuildVVD writes for vertex i.
func VertexPosition(i int) [3]float32 {
	return [3]float32{float32(i), float32(2 * i), float32(-i)}
}

// BuildVTX encodes the optimized mesh file. Records are laid out level by level:
// all body parts, all models, all LODs, all meshes, all strip groups, then the
// vertex, index and strip arrays of each strip group.
func BuildVTX(l Layout) []byte {
	nBP := l.BodyParts
	nModels := nBP * l.Models
	nLODs := nModels * l.LODs
	nMeshes := nLODs * l.Meshes
	nGroups := nMeshes * l.StripGroups
	nIdx := l.IndexCount()
	nStrips := 0
	if nIdx > 0 {
		nStrips = 1
	}
	groupData := l.Verts*vtxVertexSize + nIdx*vtxIndexSize + nStrips*vtxStripSize

	bpStart := vtxHeaderSize
	modelStart := bpStart + nBP*vtxBodyPartSize
	lodStart := modelStart + nModels*vtxModelSize
	meshStart := lodStart + nLODs*vtxLODSize
	groupStart := meshStart + nMeshes*vtxMeshSize
	dataStart := groupStart + nGroups*vtxStripGroupSize
	b := make(buf, dataStart+nGroups*groupData)

	b.i32(0, VTXVersion)
	b.i32(4, 24) // vert cache size
	b.u16(8, 53) // max bones per strip
	b.u16(10, 9) // max bones per tri
	b.i32(12, 3) // max bones per vert
	b.i32(16, l.Checksum)
	b.i32(20, int32(l.LODs))
	b.i32(24, 0)
	b.i32(28, int32(nBP))
	b.i32(32, int32(bpStart))

	for bp := 0; bp < nBP; bp++ {
		at := bpStart + bp*vtxBodyPartSize
		b.i32(at, int32(l.Models))
		b.i32(at+4, int32(modelStart+bp*l.Models*vtxModelSize-at))
	}
	for m := 0; m < nModels; m++ {
		at := modelStart + m*vtxModelSize
		b.i32(at, int32(l.LODs))
		b.i32(at+4, int32(lodStart+m*l.LODs*vtxLODSize-at))
	}
	for lod := 0; lod < nLODs; lod++ {
		at := lodStart + lod*vtxLODSize
		b.i32(at, int32(l.Meshes))
		b.i32(at+4, int32(meshStart+lod*l.Meshes*vtxMeshSize-at))
		b.f32(at+8, float32(lod%max(l.LODs, 1))*10)
	}
	for mesh := 0; mesh < nMeshes; mesh++ {
		at := meshStart + mesh*vtxMeshSize
		b.i32(at, int32(l.StripGroups))
		b.i32(at+4, int32(groupStart+mesh*l.StripGroups*vtxStripGroupSize-at))
		b[at+8] = 0
	}
	for g := 0; g < nGroups; g++ {
		at := groupStart + g*vtxStripGroupSize
		data := dataStart + g*groupData
		vertAt := data
		idxAt := vertAt + l.Verts*vtxVertexSize
		stripAt := idxAt + nIdx*vtxIndexSize

		b.i32(at, int32(l.Verts))
		b.i32(at+4, int32(vertAt-at))
		b.i32(at+8, int32(nIdx))
		b.i32(at+12, int32(idxAt-at))
		b.i32(at+16, int32(nStrips))
		b.i32(at+20, int32(stripAt-at))
		b[at+24] = stripGroupIsHWSkinned

		for v := 0; v < l.Verts; v++ {
			vat := vertAt + v*vtxVertexSize
			b[vat+3] = 1 // num bones
			b.u16(vat+4, uint16(v))
		}
		for t := 0; t+2 < l.Verts; t++ {
			tat := idxAt + t*3*vtxIndexSize
			b.u16(tat, 0)
			b.u16(tat+2, uint16(t+1))
			b.u16(tat+4, uint16(t+2))
		}
		if nStrips > 0 {
			b.i32(stripAt, int32(nIdx))
			b.i32(stripAt+4, 0)
			b.i32(stripAt+8, int32(l.Verts))
			b.i32(stripAt+12, 0)
			b.i16(stripAt+16, 1)
			b[stripAt+18] = stripIsTriList
		}
	}
	return b
}

// Files returns the three files keyed by their paths relative to a model root.
func Files(name string, l Layout) map[string][]byte {
	return map[string][]byte{
		name + ".mdl":      BuildMDL(l),
		name + ".dx90.vtx": BuildVTX(l),
		name + ".vvd":      BuildVVD(l),
	}
}

// MapFS returns the files of one or more models as an in-memory filesystem.
func MapFS(models map[string]Layout) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, l := range models {
		for path, data := range Files(name, l) {
			fsys[path] = &fstest.MapFile{Data: data, Mode: 0644}
		}
	}
	return fsys
}

// WriteFiles writes the model files under dir, creating directories as needed.
func WriteFiles(dir, name string, l Layout) error {
	for path, data := range Files(name, l) {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
