// MDL (studio model) header parser.
package formats

import (
	"fmt"
	"os"

	"github.com/Faultbox/srcmodel/pkg/encoding"
)

// MDLMagic is the studio model file identifier.
const MDLMagic = "IDST"

// MDLHeaderSize is the packed size of StudioHeader.
const MDLHeaderSize = 400

// MDLNameSize is the width of the fixed name field.
const MDLNameSize = 64

// studiohdr2Inline is the secondary header offset when it directly follows
// the 408-byte on-disk header.
const studiohdr2Inline = 408

// StudioHeader is the fixed header at the start of an .mdl file.
// Offsets are relative to the start of the file.
type StudioHeader struct {
	ID         [4]byte
	Version    int32
	Checksum   int32 // Must match the .vtx and .vvd checksums
	Name       [MDLNameSize]byte
	DataLength int32

	EyePosition   Vector3
	IllumPosition Vector3
	HullMin       Vector3
	HullMax       Vector3
	ViewBBMin     Vector3
	ViewBBMax     Vector3

	Flags int32

	BoneCount            int32
	BoneOffset           int32
	BoneControllerCount  int32
	BoneControllerOffset int32
	HitboxSetCount       int32
	HitboxSetOffset      int32
	LocalAnimCount       int32
	LocalAnimOffset      int32
	LocalSeqCount        int32
	LocalSeqOffset       int32

	ActivityListVersion int32
	EventsIndexed       int32

	TextureCount        int32
	TextureOffset       int32
	TextureDirCount     int32
	TextureDirOffset    int32
	SkinReferenceCount  int32
	SkinFamilyCount     int32
	SkinReferenceIndex  int32
	BodyPartCount       int32
	BodyPartOffset      int32
	AttachmentCount     int32
	AttachmentOffset    int32
	LocalNodeCount      int32
	LocalNodeIndex      int32
	LocalNodeNameIndex  int32
	FlexDescCount       int32
	FlexDescIndex       int32
	FlexControllerCount int32
	FlexControllerIndex int32
	FlexRulesCount      int32
	FlexRulesIndex      int32
	IKChainCount        int32
	IKChainIndex        int32
	MouthsCount         int32
	MouthsIndex         int32
	LocalPoseParamCount int32
	LocalPoseParamIndex int32
	SurfacePropIndex    int32
	KeyValueIndex       int32 // Index precedes count here
	KeyValueCount       int32
	IKLockCount         int32
	IKLockIndex         int32

	Mass     float32
	Contents int32

	IncludeModelCount int32
	IncludeModelIndex int32
	VirtualModel      int32 // Runtime pointer placeholder

	AnimBlocksNameIndex int32
	AnimBlocksCount     int32
	AnimBlocksIndex     int32
	AnimBlockModel      int32 // Runtime pointer placeholder

	BoneTableNameIndex int32
	VertexBase         int32 // Runtime pointer placeholder
	OffsetBase         int32 // Runtime pointer placeholder

	DirectionalDotProduct uint8
	RootLOD               uint8
	NumAllowedRootLODs    uint8 // 0 means any
	Unused1               uint8
	Unused2               int32

	FlexControllerUICount int32
	FlexControllerUIIndex int32

	StudioHdr2Index int32
	Unused3         int32
}

// HasSecondaryHeader reports whether a studiohdr2 block is present.
func (h *StudioHeader) HasSecondaryHeader() bool {
	return h.StudioHdr2Index != 0
}

// SecondaryHeaderInline reports whether the studiohdr2 block immediately follows the header.
func (h *StudioHeader) SecondaryHeaderInline() bool {
	return h.StudioHdr2Index == studiohdr2Inline
}

// StudioModel is a decoded .mdl file.
type StudioModel struct {
	Header StudioHeader
	Name   string // Internal model name, e.g. "player/ctm_sas_variantA.mdl"
}

// ParseMDL parses a studio model from raw bytes. The name is decoded as UTF-8.
func ParseMDL(data []byte) (*StudioModel, error) {
	return ParseMDLCharset(data, encoding.UTF8)
}

// ParseMDLCharset parses a studio model, decoding the name with the given charset.
func ParseMDLCharset(data []byte, charset string) (*StudioModel, error) {
	var header StudioHeader
	if err := ReadRecord(data, 0, &header); err != nil {
		return nil, fmt.Errorf("mdl header: %w", err)
	}

	if string(header.ID[:]) != MDLMagic {
		return nil, fmt.Errorf("%w: mdl id %q, expected %q", ErrBadMagic, header.ID[:], MDLMagic)
	}

	name, err := encoding.DecodeFixedString(header.Name[:], charset)
	if err != nil {
		return nil, fmt.Errorf("mdl name: %w", err)
	}

	return &StudioModel{
		Header: header,
		Name:   name,
	}, nil
}

// ParseMDLFile parses an MDL file from disk.
func ParseMDLFile(path string) (*StudioModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MDL file: %w", err)
	}
	return ParseMDL(data)
}
