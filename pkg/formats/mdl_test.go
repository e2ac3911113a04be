package formats

import (
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/srcmodel/internal/testmodel"
)

func TestParseMDL_Fixture(t *testing.T) {
	data := testmodel.BuildMDL(testmodel.Default())

	mdl, err := ParseMDL(data)
	if err != nil {
		t.Fatalf("ParseMDL failed: %v", err)
	}

	if string(mdl.Header.ID[:]) != MDLMagic {
		t.Errorf("ID = %q, want %q", mdl.Header.ID[:], MDLMagic)
	}
	if mdl.Header.Version != 49 {
		t.Errorf("Version = %d, want 49", mdl.Header.Version)
	}
	if mdl.Header.BodyPartCount != 1 {
		t.Errorf("BodyPartCount = %d, want 1", mdl.Header.BodyPartCount)
	}
	if mdl.Header.BodyPartOffset != MDLHeaderSize {
		t.Errorf("BodyPartOffset = %d, want %d", mdl.Header.BodyPartOffset, MDLHeaderSize)
	}
	if mdl.Header.DataLength != int32(len(data)) {
		t.Errorf("DataLength = %d, want %d", mdl.Header.DataLength, len(data))
	}
	if mdl.Header.Checksum != testmodel.Default().Checksum {
		t.Errorf("Checksum = %#x, want %#x", mdl.Header.Checksum, testmodel.Default().Checksum)
	}
	if mdl.Name != "player/ctm_sas_variantA.mdl" {
		t.Errorf("Name = %q, want %q", mdl.Name, "player/ctm_sas_variantA.mdl")
	}
}

func TestParseMDL_MagicValidation(t *testing.T) {
	valid := testmodel.BuildMDL(testmodel.Default())

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "IDSV")

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"vvd magic", badMagic, ErrBadMagic},
		{"empty data", []byte{}, ErrTruncatedBuffer},
		{"truncated header", valid[:MDLHeaderSize-1], ErrTruncatedBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMDL(tt.data)
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

func TestParseMDL_Name(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		charset string
		want    string
		wantErr error
	}{
		{"nul terminated", []byte("props/crate.mdl\x00junk"), "utf-8", "props/crate.mdl", nil},
		{"full width without nul", []byte(strings.Repeat("a", MDLNameSize)), "utf-8", strings.Repeat("a", MDLNameSize), nil},
		{"empty", []byte{0}, "utf-8", "", nil},
		{"invalid utf-8", []byte{'m', 0xFF, 0xFE, 0}, "utf-8", "", ErrInvalidText},
		{"windows 1252", []byte{'c', 'a', 'f', 0xE9, 0}, "Windows 1252", "café", nil},
		{"unknown charset", []byte("x\x00"), "klingon", "", ErrUnknownCharset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testmodel.BuildMDL(testmodel.Default())
			name := data[12 : 12+MDLNameSize]
			for i := range name {
				name[i] = 0
			}
			copy(name, tt.raw)

			mdl, err := ParseMDLCharset(data, tt.charset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.wantErr == ErrUnknownCharset && errors.Is(err, ErrInvalidText) {
					t.Errorf("unknown charset reported as invalid text: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMDLCharset failed: %v", err)
			}
			if mdl.Name != tt.want {
				t.Errorf("Name = %q, want %q", mdl.Name, tt.want)
			}
		})
	}
}

func TestStudioHeader_SecondaryHeader(t *testing.T) {
	tests := []struct {
		index      int32
		wantHas    bool
		wantInline bool
	}{
		{0, false, false},
		{408, true, true},
		{1024, true, false},
	}

	for _, tt := range tests {
		h := StudioHeader{StudioHdr2Index: tt.index}
		if got := h.HasSecondaryHeader(); got != tt.wantHas {
			t.Errorf("index %d: HasSecondaryHeader = %v, want %v", tt.index, got, tt.wantHas)
		}
		if got := h.SecondaryHeaderInline(); got != tt.wantInline {
			t.Errorf("index %d: SecondaryHeaderInline = %v, want %v", tt.index, got, tt.wantInline)
		}
	}
}

func TestParseMDLFile_Missing(t *testing.T) {
	_, err := ParseMDLFile(t.TempDir() + "/invalid.mdl")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
