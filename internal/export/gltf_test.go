package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/srcmodel/internal/testmodel"
	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

const modelName = "props/crate"

func loadModel(t *testing.T, l testmodel.Layout) *sourcemodel.SourceModel {
	t.Helper()
	fsys := testmodel.MapFS(map[string]testmodel.Layout{modelName: l})
	model, err := sourcemodel.NewLoader(fsys, sourcemodel.Options{}).Load(modelName)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return model
}

func TestBuildDocument(t *testing.T) {
	layout := testmodel.Default()
	layout.BodyParts = 2
	model := loadModel(t, layout)

	doc, err := BuildDocument(model, 0)
	if err != nil {
		t.Fatalf("BuildDocument failed: %v", err)
	}

	if doc.Asset.Generator != Generator {
		t.Errorf("generator = %q", doc.Asset.Generator)
	}
	if len(doc.Meshes) != 2 || len(doc.Nodes) != 2 {
		t.Fatalf("got %d meshes / %d nodes, want 2/2", len(doc.Meshes), len(doc.Nodes))
	}
	if len(doc.Scenes[0].Nodes) != 2 {
		t.Errorf("scene holds %d nodes, want 2", len(doc.Scenes[0].Nodes))
	}
	if doc.Meshes[1].Name != "crate_bp1_m0_lod0" {
		t.Errorf("mesh name = %q", doc.Meshes[1].Name)
	}

	for i, mesh := range doc.Meshes {
		if len(mesh.Primitives) != layout.Meshes {
			t.Fatalf("mesh %d has %d primitives, want %d", i, len(mesh.Primitives), layout.Meshes)
		}
		for _, prim := range mesh.Primitives {
			pos := doc.Accessors[prim.Attributes["POSITION"]]
			if int(pos.Count) != layout.VertexCount() {
				t.Errorf("position count = %d, want %d", pos.Count, layout.VertexCount())
			}
			if idx := doc.Accessors[*prim.Indices]; idx.Count != 6 {
				t.Errorf("index count = %d, want 6", idx.Count)
			}
		}
	}

	if _, err := BuildDocument(model, 3); err == nil {
		t.Error("expected error for missing lod")
	}
}

func TestWriteGLB(t *testing.T) {
	model := loadModel(t, testmodel.Default())
	doc, err := BuildDocument(model, 0)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteGLB(&buf, doc); err != nil {
		t.Fatalf("WriteGLB failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Fatalf("output does not start with the glb magic")
	}

	var decoded gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&decoded); err != nil {
		t.Fatalf("decoding glb: %v", err)
	}
	if len(decoded.Meshes) != 1 || len(decoded.Meshes[0].Primitives) != 4 {
		t.Errorf("decoded document has unexpected shape")
	}
}

func TestWriteGLTF(t *testing.T) {
	model := loadModel(t, testmodel.Default())
	doc, err := BuildDocument(model, 0)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteGLTF(&buf, doc); err != nil {
		t.Fatalf("WriteGLTF failed: %v", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("output is not JSON, starts with %q", buf.Bytes()[:4])
	}
	if !bytes.Contains(buf.Bytes(), []byte("data:application/octet-stream;base64,")) {
		t.Error("buffer is not embedded")
	}

	var decoded gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&decoded); err != nil {
		t.Fatalf("decoding gltf: %v", err)
	}
	if len(decoded.Accessors) != len(doc.Accessors) {
		t.Errorf("decoded %d accessors, want %d", len(decoded.Accessors), len(doc.Accessors))
	}
}

func TestExportFile(t *testing.T) {
	model := loadModel(t, testmodel.Default())
	dir := t.TempDir()

	for _, name := range []string{"out/crate.glb", "out/crate.gltf"} {
		path := filepath.Join(dir, name)
		if err := ExportFile(model, 0, path); err != nil {
			t.Fatalf("ExportFile(%s) failed: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s was not written", name)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		isGLB := bytes.HasPrefix(data, []byte("glTF"))
		if want := filepath.Ext(name) == ".glb"; isGLB != want {
			t.Errorf("%s: binary container = %v, want %v", name, isGLB, want)
		}
	}

	if err := ExportFile(model, 5, filepath.Join(dir, "bad.glb")); err == nil {
		t.Error("expected error for missing lod")
	}
}
