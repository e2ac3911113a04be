// Package export converts loaded models to glTF 2.0.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

// Generator is written to the asset block of every document.
const Generator = "srcmodel mdltool"

// BuildDocument converts one LOD of a model into a glTF document.
// The flat vertex array becomes a single set of accessors shared by every
// primitive; each body part model becomes a node with one primitive per mesh.
func BuildDocument(model *sourcemodel.SourceModel, lod int) (*gltf.Document, error) {
	meshes, err := model.MeshTriangles(lod)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s lod %d", model.Name, lod)
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator

	attributes := writeVertices(doc, model)

	type key struct{ bodyPart, model int }
	byModel := make(map[key]*gltf.Mesh)
	for _, mt := range meshes {
		if len(mt.Indices) == 0 {
			continue
		}

		k := key{mt.BodyPart, mt.Model}
		mesh, ok := byModel[k]
		if !ok {
			mesh = &gltf.Mesh{Name: fmt.Sprintf("%s_bp%d_m%d_lod%d", baseName(model.Name), mt.BodyPart, mt.Model, lod)}
			byModel[k] = mesh

			doc.Meshes = append(doc.Meshes, mesh)
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
			doc.Nodes = append(doc.Nodes, &gltf.Node{
				Name: mesh.Name,
				Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
			})
		}

		indices := modeler.WriteIndices(doc, mt.Indices)
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Indices:    &indices,
			Attributes: attributes,
			Mode:       gltf.PrimitiveTriangles,
		})
	}

	return doc, nil
}

func writeVertices(doc *gltf.Document, model *sourcemodel.SourceModel) map[string]uint32 {
	n := len(model.Positions)
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	uvs := make([][2]float32, n)
	for i := range model.Positions {
		positions[i] = model.Positions[i]
		normal := model.Normals[i]
		if normal.Len() > 0.5 {
			normal = normal.Normalize()
		}
		normals[i] = normal
		uvs[i] = model.TexCoords[i]
	}

	if n == 0 {
		return map[string]uint32{}
	}
	return map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, positions),
		"NORMAL":     modeler.WriteNormal(doc, normals),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, uvs),
	}
}

func baseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// WriteGLB encodes doc as a binary glTF container.
func WriteGLB(w io.Writer, doc *gltf.Document) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return errors.Wrap(enc.Encode(doc), "encoding glb")
}

// WriteGLTF encodes doc as JSON glTF. Buffers are embedded as data URIs.
func WriteGLTF(w io.Writer, doc *gltf.Document) error {
	for _, b := range doc.Buffers {
		if b.URI == "" {
			b.EmbeddedResource()
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = false
	return errors.Wrap(enc.Encode(doc), "encoding gltf")
}

// ExportFile writes one LOD of model to path. A .gltf extension selects JSON,
// anything else binary.
func ExportFile(model *sourcemodel.SourceModel, lod int, path string) error {
	doc, err := BuildDocument(model, lod)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating output directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".gltf") {
		err = WriteGLTF(f, doc)
	} else {
		err = WriteGLB(f, doc)
	}
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}
