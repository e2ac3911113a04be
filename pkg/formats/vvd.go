// VVD (vertex data) parser.
package formats

import (
	"fmt"
	"os"
)

// VVDMagic is the vertex data file identifier.
const VVDMagic = "IDSV"

// VVDHeaderSize is the packed size of VVDHeader.
const VVDHeaderSize = 64

// MaxLODs is the number of per-LOD vertex counts stored in the header.
const MaxLODs = 8

// MaxBonesPerVertex is the number of bone influences stored per vertex.
const MaxBonesPerVertex = 3

// VVDHeader is the fixed header at the start of a .vvd file.
// Offsets are relative to the start of the file.
type VVDHeader struct {
	ID               [4]byte
	Version          int32
	Checksum         int32 // Must match the .mdl checksum
	NumLODs          int32
	NumLODVertexes   [MaxLODs]int32
	NumFixups        int32
	FixupTableStart  int32
	VertexDataStart  int32
	TangentDataStart int32
}

// VVDFixup maps a LOD to a run of vertices in the flat vertex array.
type VVDFixup struct {
	LOD            int32
	SourceVertexID int32
	NumVertexes    int32
}

// VVDBoneWeights holds up to three bone influences.
type VVDBoneWeights struct {
	Weight   [MaxBonesPerVertex]float32
	Bone     [MaxBonesPerVertex]uint8
	NumBones uint8
}

// VVDVertex is one element of the flat vertex array.
type VVDVertex struct {
	BoneWeights VVDBoneWeights
	Position    Vector3
	Normal      Vector3
	TexCoord    Vector2
}

// VVD is a decoded .vvd file.
type VVD struct {
	Header   VVDHeader
	Fixups   []VVDFixup // nil when the file has no fixup table
	Vertices []VVDVertex
}

// ParseVVD parses vertex data from raw bytes.
func ParseVVD(data []byte) (*VVD, error) {
	var header VVDHeader
	if err := ReadRecord(data, 0, &header); err != nil {
		return nil, fmt.Errorf("vvd header: %w", err)
	}

	if string(header.ID[:]) != VVDMagic {
		return nil, fmt.Errorf("%w: vvd id %q, expected %q", ErrBadMagic, header.ID[:], VVDMagic)
	}

	vvd := &VVD{Header: header}

	if header.NumFixups != 0 {
		fixups, err := ReadRecords[VVDFixup](data, int64(header.FixupTableStart), header.NumFixups)
		if err != nil {
			return nil, fmt.Errorf("vvd fixups: %w", err)
		}
		vvd.Fixups = fixups
	}

	count, err := vertexCount(&header, len(data))
	if err != nil {
		return nil, err
	}

	vertices, err := ReadRecords[VVDVertex](data, int64(header.VertexDataStart), count)
	if err != nil {
		return nil, fmt.Errorf("vvd vertices: %w", err)
	}
	vvd.Vertices = vertices

	return vvd, nil
}

// vertexCount derives the length of the vertex block. The block ends where the
// tangent block starts, or at the end of the file when there are no tangents.
func vertexCount(h *VVDHeader, fileSize int) (int32, error) {
	end := int64(h.TangentDataStart)
	if end == 0 {
		end = int64(fileSize)
	}

	start := int64(h.VertexDataStart)
	if start < VVDHeaderSize || end < start {
		return 0, fmt.Errorf("%w: vertex block [%d, %d)", ErrTruncatedBuffer, start, end)
	}

	n := (end - start) / recordSize[VVDVertex]()
	if n > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("%w: vertex block of %d records", ErrTruncatedBuffer, n)
	}
	return int32(n), nil
}

// LODVertices returns the vertices used by the given LOD.
// With a fixup table, every entry whose LOD is at least lod contributes its run,
// in table order. Without one, the full vertex array is returned.
func (v *VVD) LODVertices(lod int) ([]VVDVertex, error) {
	if lod < 0 || lod >= MaxLODs {
		return nil, fmt.Errorf("lod %d out of range", lod)
	}
	if len(v.Fixups) == 0 {
		return v.Vertices, nil
	}

	var out []VVDVertex
	for i, f := range v.Fixups {
		if int(f.LOD) < lod {
			continue
		}
		start, n := int(f.SourceVertexID), int(f.NumVertexes)
		if start < 0 || n < 0 || start+n > len(v.Vertices) {
			return nil, fmt.Errorf("%w: fixup %d selects [%d, %d) of %d vertices",
				ErrTruncatedBuffer, i, start, start+n, len(v.Vertices))
		}
		out = append(out, v.Vertices[start:start+n]...)
	}
	return out, nil
}

// ParseVVDFile parses a VVD file from disk.
func ParseVVDFile(path string) (*VVD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VVD file: %w", err)
	}
	return ParseVVD(data)
}
