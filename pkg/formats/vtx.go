// VTX (optimized mesh) parser.
package formats

import (
	"fmt"
	"os"
)

// VTXVersion is the only supported optimized model file version.
const VTXVersion = 7

// Strip flags.
const (
	StripIsTriList  uint8 = 0x01
	StripIsTriStrip uint8 = 0x02
)

// Strip group flags.
const (
	StripGroupIsFlexed        uint8 = 0x01
	StripGroupIsHWSkinned     uint8 = 0x02
	StripGroupIsDeltaFlexed   uint8 = 0x04
	StripGroupSuppressHWMorph uint8 = 0x08
)

// Mesh flags.
const (
	MeshIsTeeth uint8 = 0x01
	MeshIsEyes  uint8 = 0x02
)

// VTXHeader is the fixed header at the start of a .vtx file.
// BodyPartOffset is relative to the start of the file.
type VTXHeader struct {
	Version int32

	// Hardware limits the mesh was optimized for
	VertCacheSize    int32
	MaxBonesPerStrip uint16
	MaxBonesPerTri   uint16
	MaxBonesPerVert  int32

	Checksum int32 // Must match the .mdl checksum
	NumLODs  int32

	MaterialReplacementListOffset int32

	NumBodyParts   int32
	BodyPartOffset int32
}

// VTXBodyPartHeader locates the models of one body part.
type VTXBodyPartHeader struct {
	NumModels   int32
	ModelOffset int32
}

// VTXModelHeader locates the LODs of one model.
type VTXModelHeader struct {
	NumLODs   int32
	LODOffset int32
}

// VTXLODHeader locates the meshes of one LOD.
type VTXLODHeader struct {
	NumMeshes   int32
	MeshOffset  int32
	SwitchPoint float32 // Distance at which this LOD becomes active
}

// VTXMeshHeader locates the strip groups of one mesh.
type VTXMeshHeader struct {
	NumStripGroups         int32
	StripGroupHeaderOffset int32
	Flags                  uint8
}

// VTXStripGroupHeader locates the vertices, indices and strips of one strip group.
type VTXStripGroupHeader struct {
	NumVerts    int32
	VertOffset  int32
	NumIndices  int32
	IndexOffset int32
	NumStrips   int32
	StripOffset int32
	Flags       uint8
}

// VTXVertex references one vertex of the owning studio mesh.
type VTXVertex struct {
	BoneWeightIndex [MaxBonesPerVertex]uint8
	NumBones        uint8
	OrigMeshVertID  uint16
	BoneID          [MaxBonesPerVertex]uint8
}

// VTXIndex is a position in the strip group vertex array.
type VTXIndex uint16

// VTXStripHeader is a sub-range of a strip group's indices and vertices.
// IndexOffset and VertOffset are element offsets into the strip group arrays.
type VTXStripHeader struct {
	NumIndices  int32
	IndexOffset int32
	NumVerts    int32
	VertOffset  int32
	NumBones    int16
	Flags       uint8

	NumBoneStateChanges   int32
	BoneStateChangeOffset int32
}

// VTXStripGroup is a decoded strip group.
type VTXStripGroup struct {
	Header   VTXStripGroupHeader
	Vertices []VTXVertex
	Indices  []VTXIndex
	Strips   []VTXStripHeader
}

// VTXMesh is a decoded mesh.
type VTXMesh struct {
	Header      VTXMeshHeader
	StripGroups []VTXStripGroup
}

// VTXLOD is a decoded level of detail.
type VTXLOD struct {
	Header VTXLODHeader
	Meshes []VTXMesh
}

// VTXModel is a decoded model.
type VTXModel struct {
	Header VTXModelHeader
	LODs   []VTXLOD
}

// VTXBodyPart is a decoded body part.
type VTXBodyPart struct {
	Header VTXBodyPartHeader
	Models []VTXModel
}

// VTX is a decoded .vtx file.
type VTX struct {
	Header    VTXHeader
	BodyParts []VTXBodyPart
}

// IsTriList returns true if the strip is an indexed triangle list.
func (s VTXStripHeader) IsTriList() bool { return s.Flags&StripIsTriList != 0 }

// IsTriStrip returns true if the strip is an indexed triangle strip.
func (s VTXStripHeader) IsTriStrip() bool { return s.Flags&StripIsTriStrip != 0 }

// IsFlexed returns true if the strip group carries flex (facial) vertices.
func (h VTXStripGroupHeader) IsFlexed() bool {
	return h.Flags&(StripGroupIsFlexed|StripGroupIsDeltaFlexed) != 0
}

// IsHWSkinned returns true if the strip group is hardware skinned.
func (h VTXStripGroupHeader) IsHWSkinned() bool { return h.Flags&StripGroupIsHWSkinned != 0 }

// IsTeeth returns true for teeth meshes.
func (h VTXMeshHeader) IsTeeth() bool { return h.Flags&MeshIsTeeth != 0 }

// IsEyes returns true for eyeball meshes.
func (h VTXMeshHeader) IsEyes() bool { return h.Flags&MeshIsEyes != 0 }

// ParseVTX parses optimized mesh data from raw bytes.
func ParseVTX(data []byte) (*VTX, error) {
	var header VTXHeader
	if err := ReadRecord(data, 0, &header); err != nil {
		return nil, fmt.Errorf("vtx header: %w", err)
	}

	if header.Version != VTXVersion {
		return nil, fmt.Errorf("%w: vtx version %d, expected %d", ErrUnsupportedVersion, header.Version, VTXVersion)
	}

	d := vtxDecoder{data: data}
	bodyParts, err := d.bodyParts(&header)
	if err != nil {
		return nil, err
	}

	return &VTX{
		Header:    header,
		BodyParts: bodyParts,
	}, nil
}

// vtxDecoder walks the VTX tree. Each level resolves its children against its own
// absolute start, never the file start.
type vtxDecoder struct {
	data []byte
}

// headers reads count consecutive headers of type T at base+offset and returns
// them with their absolute start positions.
func headers[T any](data []byte, base int64, offset, count int32) ([]T, []int64, error) {
	first := base + int64(offset)
	records, err := ReadRecords[T](data, first, count)
	if err != nil {
		return nil, nil, err
	}

	size := recordSize[T]()
	starts := make([]int64, len(records))
	for i := range starts {
		starts[i] = first + int64(i)*size
	}
	return records, starts, nil
}

func (d *vtxDecoder) bodyParts(h *VTXHeader) ([]VTXBodyPart, error) {
	hdrs, starts, err := headers[VTXBodyPartHeader](d.data, 0, h.BodyPartOffset, h.NumBodyParts)
	if err != nil {
		return nil, fmt.Errorf("body parts: %w", err)
	}

	parts := make([]VTXBodyPart, len(hdrs))
	for i, hdr := range hdrs {
		models, err := d.models(&hdr, starts[i])
		if err != nil {
			return nil, fmt.Errorf("body part %d: %w", i, err)
		}
		parts[i] = VTXBodyPart{Header: hdr, Models: models}
	}
	return parts, nil
}

func (d *vtxDecoder) models(h *VTXBodyPartHeader, start int64) ([]VTXModel, error) {
	hdrs, starts, err := headers[VTXModelHeader](d.data, start, h.ModelOffset, h.NumModels)
	if err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}

	models := make([]VTXModel, len(hdrs))
	for i, hdr := range hdrs {
		lods, err := d.lods(&hdr, starts[i])
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		models[i] = VTXModel{Header: hdr, LODs: lods}
	}
	return models, nil
}

func (d *vtxDecoder) lods(h *VTXModelHeader, start int64) ([]VTXLOD, error) {
	hdrs, starts, err := headers[VTXLODHeader](d.data, start, h.LODOffset, h.NumLODs)
	if err != nil {
		return nil, fmt.Errorf("lods: %w", err)
	}

	lods := make([]VTXLOD, len(hdrs))
	for i, hdr := range hdrs {
		meshes, err := d.meshes(&hdr, starts[i])
		if err != nil {
			return nil, fmt.Errorf("lod %d: %w", i, err)
		}
		lods[i] = VTXLOD{Header: hdr, Meshes: meshes}
	}
	return lods, nil
}

func (d *vtxDecoder) meshes(h *VTXLODHeader, start int64) ([]VTXMesh, error) {
	hdrs, starts, err := headers[VTXMeshHeader](d.data, start, h.MeshOffset, h.NumMeshes)
	if err != nil {
		return nil, fmt.Errorf("meshes: %w", err)
	}

	meshes := make([]VTXMesh, len(hdrs))
	for i, hdr := range hdrs {
		groups, err := d.stripGroups(&hdr, starts[i])
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		meshes[i] = VTXMesh{Header: hdr, StripGroups: groups}
	}
	return meshes, nil
}

func (d *vtxDecoder) stripGroups(h *VTXMeshHeader, start int64) ([]VTXStripGroup, error) {
	hdrs, starts, err := headers[VTXStripGroupHeader](d.data, start, h.StripGroupHeaderOffset, h.NumStripGroups)
	if err != nil {
		return nil, fmt.Errorf("strip groups: %w", err)
	}

	groups := make([]VTXStripGroup, len(hdrs))
	for i, hdr := range hdrs {
		group, err := d.stripGroup(hdr, starts[i])
		if err != nil {
			return nil, fmt.Errorf("strip group %d: %w", i, err)
		}
		groups[i] = group
	}
	return groups, nil
}

func (d *vtxDecoder) stripGroup(h VTXStripGroupHeader, start int64) (VTXStripGroup, error) {
	group := VTXStripGroup{Header: h}

	if h.NumVerts != 0 {
		verts, err := ReadRecords[VTXVertex](d.data, start+int64(h.VertOffset), h.NumVerts)
		if err != nil {
			return group, fmt.Errorf("vertices: %w", err)
		}
		group.Vertices = verts
	}

	if h.NumIndices != 0 {
		indices, err := ReadRecords[VTXIndex](d.data, start+int64(h.IndexOffset), h.NumIndices)
		if err != nil {
			return group, fmt.Errorf("indices: %w", err)
		}
		group.Indices = indices
	}

	if h.NumStrips != 0 {
		strips, err := ReadRecords[VTXStripHeader](d.data, start+int64(h.StripOffset), h.NumStrips)
		if err != nil {
			return group, fmt.Errorf("strips: %w", err)
		}
		group.Strips = strips
	}

	return group, nil
}

// CheckCounts verifies that every declared count in the tree matches the
// number of decoded children.
func (v *VTX) CheckCounts() error {
	if err := checkCount("body parts", v.Header.NumBodyParts, len(v.BodyParts)); err != nil {
		return err
	}
	for i := range v.BodyParts {
		bp := &v.BodyParts[i]
		if err := checkCount(fmt.Sprintf("body part %d models", i), bp.Header.NumModels, len(bp.Models)); err != nil {
			return err
		}
		for j := range bp.Models {
			m := &bp.Models[j]
			if err := checkCount(fmt.Sprintf("body part %d model %d lods", i, j), m.Header.NumLODs, len(m.LODs)); err != nil {
				return err
			}
			for k := range m.LODs {
				if err := m.LODs[k].checkCounts(); err != nil {
					return fmt.Errorf("body part %d model %d lod %d: %w", i, j, k, err)
				}
			}
		}
	}
	return nil
}

func (l *VTXLOD) checkCounts() error {
	if err := checkCount("meshes", l.Header.NumMeshes, len(l.Meshes)); err != nil {
		return err
	}
	for m := range l.Meshes {
		mesh := &l.Meshes[m]
		if err := checkCount(fmt.Sprintf("mesh %d strip groups", m), mesh.Header.NumStripGroups, len(mesh.StripGroups)); err != nil {
			return err
		}
		for n := range mesh.StripGroups {
			sg := &mesh.StripGroups[n]
			prefix := fmt.Sprintf("mesh %d strip group %d", m, n)
			if err := checkCount(prefix+" vertices", sg.Header.NumVerts, len(sg.Vertices)); err != nil {
				return err
			}
			if err := checkCount(prefix+" indices", sg.Header.NumIndices, len(sg.Indices)); err != nil {
				return err
			}
			if err := checkCount(prefix+" strips", sg.Header.NumStrips, len(sg.Strips)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkCount(what string, declared int32, actual int) error {
	if int(declared) != actual {
		return fmt.Errorf("%w: %s declared %d, decoded %d", ErrCountMismatch, what, declared, actual)
	}
	return nil
}

// ParseVTXFile parses a VTX file from disk.
func ParseVTXFile(path string) (*VTX, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VTX file: %w", err)
	}
	return ParseVTX(data)
}
