package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Faultbox/srcmodel/internal/assets"
	"github.com/Faultbox/srcmodel/internal/inspect"
	"github.com/Faultbox/srcmodel/internal/testmodel"
	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	broken := testmodel.Default()
	broken.Checksum = 1
	fsys := testmodel.MapFS(map[string]testmodel.Layout{
		"player/ctm_sas_variantA": testmodel.Default(),
		"props/broken":            broken,
	})
	// Break the broken model: its vtx comes from another checksum.
	fsys["props/broken.dx90.vtx"].Data = testmodel.BuildVTX(testmodel.Default())

	m := assets.NewManager()
	m.AddFS("mem", fsys)

	loader := sourcemodel.NewLoader(m, sourcemodel.Options{})
	srv := New(loader, m, Config{DefaultLOD: 0}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/healthz", nil)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("response carries no request id")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/healthz", http.Header{RequestIDHeader: {"trace-42"}})

	if got := resp.Header.Get(RequestIDHeader); got != "trace-42" {
		t.Errorf("request id = %q, want trace-42", got)
	}
}

func TestModels(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/api/models", nil)

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(names) != 2 || names[0] != "player/ctm_sas_variantA" || names[1] != "props/broken" {
		t.Errorf("models = %v", names)
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/api/summary/player/ctm_sas_variantA", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var s inspect.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if s.Name != "player/ctm_sas_variantA" || s.Vertices != 16 || s.Meshes != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantKind   string
	}{
		{"missing model", "/api/summary/props/none", http.StatusNotFound, "io"},
		{"checksum mismatch", "/api/summary/props/broken", http.StatusUnprocessableEntity, "checksum mismatch"},
		{"bad lod value", "/api/glb/player/ctm_sas_variantA?lod=x", http.StatusBadRequest, ""},
		{"lod out of range", "/api/glb/player/ctm_sas_variantA?lod=4", http.StatusBadRequest, ""},
		{"unknown route", "/api/nothing", http.StatusNotFound, ""},
	}

	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts.URL+tt.path, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantKind == "" {
				return
			}

			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if body.RequestID == "" || body.RequestID != resp.Header.Get(RequestIDHeader) {
				t.Errorf("request id %q does not match header", body.RequestID)
			}
		})
	}
}

func TestGLB(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/api/glb/player/ctm_sas_variantA", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "model/gltf-binary" {
		t.Errorf("content type = %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Error("body is not a glb container")
	}
}

func TestDump(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/api/dump/player/ctm_sas_variantA", nil)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("VVDHeader")) {
		t.Errorf("dump missing vertex data header:\n%s", buf.String())
	}
}
