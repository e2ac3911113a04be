package formats

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Faultbox/srcmodel/internal/testmodel"
)

func TestParseVVD_Fixture(t *testing.T) {
	layout := testmodel.Default()
	layout.Vertices = 11204

	vvd, err := ParseVVD(testmodel.BuildVVD(layout))
	if err != nil {
		t.Fatalf("ParseVVD failed: %v", err)
	}

	h := vvd.Header
	if string(h.ID[:]) != VVDMagic {
		t.Errorf("ID = %q, want %q", h.ID[:], VVDMagic)
	}
	if h.Version != 4 {
		t.Errorf("Version = %d, want 4", h.Version)
	}
	if h.NumLODs != 1 {
		t.Errorf("NumLODs = %d, want 1", h.NumLODs)
	}
	if len(h.NumLODVertexes) != MaxLODs {
		t.Errorf("len(NumLODVertexes) = %d, want %d", len(h.NumLODVertexes), MaxLODs)
	}
	if h.NumFixups != 0 {
		t.Errorf("NumFixups = %d, want 0", h.NumFixups)
	}
	if h.FixupTableStart != 64 {
		t.Errorf("FixupTableStart = %d, want 64 (header size)", h.FixupTableStart)
	}
	if h.VertexDataStart != 64 {
		t.Errorf("VertexDataStart = %d, want 64", h.VertexDataStart)
	}
	if h.TangentDataStart != 537856 {
		t.Errorf("TangentDataStart = %d, want 537856", h.TangentDataStart)
	}
	if vvd.Fixups != nil {
		t.Errorf("expected no fixup table, got %d entries", len(vvd.Fixups))
	}

	want := int(h.TangentDataStart-h.VertexDataStart) / 48
	if len(vvd.Vertices) != want {
		t.Errorf("vertex count = %d, want %d", len(vvd.Vertices), want)
	}
}

func TestParseVVD_VertexValues(t *testing.T) {
	layout := testmodel.Default()
	vvd, err := ParseVVD(testmodel.BuildVVD(layout))
	if err != nil {
		t.Fatalf("ParseVVD failed: %v", err)
	}

	if len(vvd.Vertices) != layout.VertexCount() {
		t.Fatalf("vertex count = %d, want %d", len(vvd.Vertices), layout.VertexCount())
	}

	for i, v := range vvd.Vertices {
		if v.Position != Vector3(testmodel.VertexPosition(i)) {
			t.Errorf("vertex %d position = %v, want %v", i, v.Position, testmodel.VertexPosition(i))
		}
		if v.Normal != (Vector3{0, 0, 1}) {
			t.Errorf("vertex %d normal = %v, want +Z", i, v.Normal)
		}
		if v.BoneWeights.NumBones != 1 || v.BoneWeights.Weight[0] != 1 {
			t.Errorf("vertex %d bone weights = %+v", i, v.BoneWeights)
		}
	}
}

func TestParseVVD_MagicValidation(t *testing.T) {
	valid := testmodel.BuildVVD(testmodel.Default())

	mdlMagic := append([]byte(nil), valid...)
	copy(mdlMagic, "IDST")

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"mdl magic", mdlMagic, ErrBadMagic},
		{"empty data", nil, ErrTruncatedBuffer},
		{"header only partially present", valid[:40], ErrTruncatedBuffer},
		{"vertex block cut short", valid[:64+48+10], ErrTruncatedBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVVD(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseVVD_MalformedHeaderFields(t *testing.T) {
	layout := testmodel.Default()
	layout.Fixups = []testmodel.Fixup{{LOD: 0, SourceVertexID: 0, NumVertexes: 16}}

	tests := []struct {
		name   string
		offset int
		value  uint32
	}{
		{"negative fixup count", 48, 0xFFFFFFFF},
		{"fixup table past end", 52, 0x7FFFFFF0},
		{"vertex data inside header", 56, 0},
		{"vertex data at header midpoint", 56, 32},
		{"negative vertex data start", 56, 0xFFFFFFC0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testmodel.BuildVVD(layout)
			binary.LittleEndian.PutUint32(data[tt.offset:], tt.value)
			if _, err := ParseVVD(data); !errors.Is(err, ErrTruncatedBuffer) {
				t.Errorf("expected ErrTruncatedBuffer, got %v", err)
			}
		})
	}
}

func TestParseVVD_TangentBlock(t *testing.T) {
	layout := testmodel.Default()
	n := layout.VertexCount()

	t.Run("tangent block before vertex block", func(t *testing.T) {
		data := testmodel.BuildVVD(layout)
		binary.LittleEndian.PutUint32(data[60:], 32)
		if _, err := ParseVVD(data); !errors.Is(err, ErrTruncatedBuffer) {
			t.Errorf("expected ErrTruncatedBuffer, got %v", err)
		}
	})

	t.Run("no tangent block runs to end of file", func(t *testing.T) {
		data := testmodel.BuildVVD(layout)
		data = data[:64+n*48]
		binary.LittleEndian.PutUint32(data[60:], 0)

		vvd, err := ParseVVD(data)
		if err != nil {
			t.Fatalf("ParseVVD failed: %v", err)
		}
		if len(vvd.Vertices) != n {
			t.Errorf("vertex count = %d, want %d", len(vvd.Vertices), n)
		}
	})
}

func TestParseVVD_Fixups(t *testing.T) {
	layout := testmodel.Default()
	layout.LODs = 2
	layout.Fixups = []testmodel.Fixup{
		{LOD: 1, SourceVertexID: 0, NumVertexes: 4},
		{LOD: 0, SourceVertexID: 4, NumVertexes: 4},
		{LOD: 1, SourceVertexID: 8, NumVertexes: 8},
	}

	vvd, err := ParseVVD(testmodel.BuildVVD(layout))
	if err != nil {
		t.Fatalf("ParseVVD failed: %v", err)
	}

	if len(vvd.Fixups) != 3 {
		t.Fatalf("fixup count = %d, want 3", len(vvd.Fixups))
	}
	if vvd.Fixups[2] != (VVDFixup{LOD: 1, SourceVertexID: 8, NumVertexes: 8}) {
		t.Errorf("Fixups[2] = %+v", vvd.Fixups[2])
	}
	if vvd.Header.VertexDataStart != 64+3*12 {
		t.Errorf("VertexDataStart = %d, want %d", vvd.Header.VertexDataStart, 64+3*12)
	}

	// Loading never applies the table: the flat array stays complete.
	if len(vvd.Vertices) != layout.VertexCount() {
		t.Errorf("vertex count = %d, want %d", len(vvd.Vertices), layout.VertexCount())
	}

	lod0, err := vvd.LODVertices(0)
	if err != nil {
		t.Fatalf("LODVertices(0) failed: %v", err)
	}
	if len(lod0) != 16 {
		t.Errorf("lod 0 vertex count = %d, want 16", len(lod0))
	}

	lod1, err := vvd.LODVertices(1)
	if err != nil {
		t.Fatalf("LODVertices(1) failed: %v", err)
	}
	if len(lod1) != 12 {
		t.Fatalf("lod 1 vertex count = %d, want 12", len(lod1))
	}
	if lod1[4].Position != vvd.Vertices[8].Position {
		t.Errorf("lod 1 vertex 4 should come from flat vertex 8")
	}

	if _, err := vvd.LODVertices(MaxLODs); err == nil {
		t.Error("expected error for out of range lod")
	}

	vvd.Fixups[0].NumVertexes = 1000
	if _, err := vvd.LODVertices(0); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("expected ErrTruncatedBuffer for oversized fixup, got %v", err)
	}
}

func TestVVD_LODVerticesWithoutFixups(t *testing.T) {
	vvd, err := ParseVVD(testmodel.BuildVVD(testmodel.Default()))
	if err != nil {
		t.Fatalf("ParseVVD failed: %v", err)
	}

	got, err := vvd.LODVertices(3)
	if err != nil {
		t.Fatalf("LODVertices failed: %v", err)
	}
	if len(got) != len(vvd.Vertices) {
		t.Errorf("got %d vertices, want full array of %d", len(got), len(vvd.Vertices))
	}
}
