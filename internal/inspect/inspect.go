// Package inspect renders human-readable views of loaded models.
package inspect

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.SortKeys = true
}

// Dump writes a deep dump of v to w.
func Dump(w io.Writer, v ...interface{}) {
	spewConfig.Fdump(w, v...)
}

// Sdump returns a deep dump of v.
func Sdump(v ...interface{}) string {
	return spewConfig.Sdump(v...)
}

// DumpHeaders dumps the three file headers and the fixup table of a model,
// leaving out the vertex and index arrays.
func DumpHeaders(w io.Writer, m *sourcemodel.SourceModel) {
	Dump(w, m.Studio.Header, m.Topology.Header, m.VertexData.Header, m.VertexData.Fixups)
}

// Summary holds the counts of a loaded model.
type Summary struct {
	Name         string `json:"name"`
	InternalName string `json:"internal_name"`
	Checksum     int32  `json:"checksum"`

	MDLVersion int32 `json:"mdl_version"`
	VTXVersion int32 `json:"vtx_version"`
	VVDVersion int32 `json:"vvd_version"`

	BodyParts   int `json:"body_parts"`
	Models      int `json:"models"`
	LODs        int `json:"lods"`
	Meshes      int `json:"meshes"`
	StripGroups int `json:"strip_groups"`
	Strips      int `json:"strips"`
	Indices     int `json:"indices"`
	Vertices    int `json:"vertices"`
	Fixups      int `json:"fixups"`
	Triangles   int `json:"triangles"` // LOD 0

	BoundsMin [3]float32 `json:"bounds_min"`
	BoundsMax [3]float32 `json:"bounds_max"`

	SecondaryHeader string `json:"secondary_header"`
}

// Summarize counts the structures of m. Mesh and index counts cover every LOD.
func Summarize(m *sourcemodel.SourceModel) Summary {
	s := Summary{
		Name:         m.Name,
		InternalName: m.Studio.Name,
		Checksum:     m.Checksum(),
		MDLVersion:   m.Studio.Header.Version,
		VTXVersion:   m.Topology.Header.Version,
		VVDVersion:   m.VertexData.Header.Version,
		BodyParts:    len(m.Topology.BodyParts),
		LODs:         m.NumLODs(),
		Vertices:     len(m.Positions),
		Fixups:       len(m.VertexData.Fixups),
	}

	for _, bp := range m.Topology.BodyParts {
		s.Models += len(bp.Models)
		for _, model := range bp.Models {
			for _, lod := range model.LODs {
				s.Meshes += len(lod.Meshes)
				for _, mesh := range lod.Meshes {
					s.StripGroups += len(mesh.StripGroups)
					for _, sg := range mesh.StripGroups {
						s.Strips += len(sg.Strips)
						s.Indices += len(sg.Indices)
					}
				}
			}
		}
	}

	if m.NumLODs() > 0 {
		if tris, err := m.Triangles(0); err == nil {
			s.Triangles = len(tris) / 3
		}
	}

	if lo, hi, ok := m.Bounds(); ok {
		s.BoundsMin = lo
		s.BoundsMax = hi
	}

	switch h := &m.Studio.Header; {
	case !h.HasSecondaryHeader():
		s.SecondaryHeader = "none"
	case h.SecondaryHeaderInline():
		s.SecondaryHeader = "inline"
	default:
		s.SecondaryHeader = fmt.Sprintf("offset %d", h.StudioHdr2Index)
	}
	return s
}

// WriteText prints the summary as an aligned table.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		key   string
		value interface{}
	}{
		{"Model", s.Name},
		{"Internal name", s.InternalName},
		{"Checksum", fmt.Sprintf("%#08x", uint32(s.Checksum))},
		{"Versions", fmt.Sprintf("mdl %d, vtx %d, vvd %d", s.MDLVersion, s.VTXVersion, s.VVDVersion)},
		{"Body parts", s.BodyParts},
		{"Models", s.Models},
		{"LODs", s.LODs},
		{"Meshes", s.Meshes},
		{"Strip groups", s.StripGroups},
		{"Strips", s.Strips},
		{"Indices", s.Indices},
		{"Vertices", s.Vertices},
		{"Fixups", s.Fixups},
		{"Triangles (LOD 0)", s.Triangles},
		{"Bounds", fmt.Sprintf("%v - %v", s.BoundsMin, s.BoundsMax)},
		{"Secondary header", s.SecondaryHeader},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%v\n", r.key, r.value)
	}
	return tw.Flush()
}
