// Package sourcemodel loads a Source engine model from its .mdl, .dx90.vtx and
// .vvd files and validates them against each other.
package sourcemodel

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/srcmodel/internal/assets"
	"github.com/Faultbox/srcmodel/pkg/encoding"
	"github.com/Faultbox/srcmodel/pkg/formats"
)

// DefaultBaseDir is where LoadModel looks for model files.
const DefaultBaseDir = "source_assets/models/"

// File extensions of the three model files.
const (
	ExtMDL = ".mdl"
	ExtVTX = ".dx90.vtx"
	ExtVVD = ".vvd"
)

// FileSource supplies raw file contents by slash-separated path.
// fs.ReadFileFS implementations and *assets.Manager both satisfy it.
type FileSource interface {
	ReadFile(name string) ([]byte, error)
}

// Options control how a Loader decodes.
type Options struct {
	Parallel bool        // Decode the three files concurrently
	Charset  string      // Charset of the model name, defaults to UTF-8
	Logger   *zap.Logger // Defaults to a no-op logger
}

// Loader decodes models from a FileSource.
type Loader struct {
	src  FileSource
	opts Options
	log  *zap.Logger
}

// NewLoader creates a loader reading from src.
func NewLoader(src FileSource, opts Options) *Loader {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Charset == "" {
		opts.Charset = encoding.UTF8
	}
	return &Loader{src: src, opts: opts, log: log}
}

// LoadModel loads <name>.mdl, <name>.dx90.vtx and <name>.vvd from DefaultBaseDir.
func LoadModel(name string) (*SourceModel, error) {
	m := assets.NewManager()
	m.SetCaching(false)
	m.AddFS(DefaultBaseDir, os.DirFS(filepath.Clean(DefaultBaseDir)))
	return NewLoader(m, Options{}).Load(name)
}

// decoded holds per-file results. Each slot is written by exactly one decoder.
type decoded struct {
	studio     *formats.StudioModel
	topology   *formats.VTX
	vertexData *formats.VVD
	errs       [3]error
}

// Load reads and decodes the three files of a model, then validates them in a
// fixed order: per-file errors (mdl, vtx, vvd), declared counts, body part
// count, checksums. The first failure is returned as a *LoadError.
func (l *Loader) Load(name string) (*SourceModel, error) {
	log := l.log.With(zap.String("model", name))

	var d decoded
	steps := [3]func(){
		func() { d.studio, d.errs[0] = l.decodeMDL(log, name) },
		func() { d.topology, d.errs[1] = l.decodeVTX(log, name) },
		func() { d.vertexData, d.errs[2] = l.decodeVVD(log, name) },
	}

	if l.opts.Parallel {
		var wg sync.WaitGroup
		for _, step := range steps {
			wg.Add(1)
			go func(step func()) {
				defer wg.Done()
				step()
			}(step)
		}
		wg.Wait()
	} else {
		for i, step := range steps {
			step()
			if d.errs[i] != nil {
				break
			}
		}
	}

	for _, err := range d.errs {
		if err != nil {
			log.Warn("model load failed", zap.Error(err))
			return nil, err
		}
	}

	if err := l.validate(name, &d); err != nil {
		log.Warn("model validation failed", zap.Error(err))
		return nil, err
	}

	model := newSourceModel(name, d.studio, d.topology, d.vertexData)
	log.Debug("model loaded",
		zap.Int32("checksum", model.Checksum()),
		zap.Int("vertices", len(model.Positions)),
		zap.Int("body_parts", len(model.Topology.BodyParts)),
	)
	return model, nil
}

func (l *Loader) validate(name string, d *decoded) error {
	vtxPath := name + ExtVTX
	if err := d.topology.CheckCounts(); err != nil {
		return &LoadError{Kind: KindCountMismatch, Model: name, Path: vtxPath, Err: err}
	}

	if got, want := len(d.topology.BodyParts), int(d.studio.Header.BodyPartCount); got != want {
		return &LoadError{
			Kind:  KindBodyPartCountMismatch,
			Model: name,
			Err: pkgerrors.Wrapf(ErrBodyPartCountMismatch,
				"mdl declares %d body parts, vtx has %d", want, got),
		}
	}

	mdlSum := d.studio.Header.Checksum
	vtxSum := d.topology.Header.Checksum
	vvdSum := d.vertexData.Header.Checksum
	if mdlSum != vtxSum || mdlSum != vvdSum {
		return &LoadError{
			Kind:  KindChecksumMismatch,
			Model: name,
			Err: pkgerrors.Wrapf(ErrChecksumMismatch,
				"mdl %#x, vtx %#x, vvd %#x", uint32(mdlSum), uint32(vtxSum), uint32(vvdSum)),
		}
	}
	return nil
}

// read fetches one file, mapping lookup failures to KindIO.
func (l *Loader) read(name, path string) ([]byte, error) {
	data, err := l.src.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			Kind:  KindIO,
			Model: name,
			Path:  path,
			Err:   pkgerrors.Wrapf(errors.Join(ErrIO, err), "reading %s", path),
		}
	}
	return data, nil
}

func decodeFailure(name, path string, err error) error {
	return &LoadError{
		Kind:  classify(err),
		Model: name,
		Path:  path,
		Err:   pkgerrors.Wrapf(err, "decoding %s", path),
	}
}

func (l *Loader) decodeMDL(log *zap.Logger, name string) (*formats.StudioModel, error) {
	path := name + ExtMDL
	data, err := l.read(name, path)
	if err != nil {
		return nil, err
	}

	mdl, err := formats.ParseMDLCharset(data, l.opts.Charset)
	if err != nil {
		return nil, decodeFailure(name, path, err)
	}

	log.Debug("decoded studio header",
		zap.String("file", path),
		zap.Int("bytes", len(data)),
		zap.Int32("version", mdl.Header.Version),
		zap.String("name", mdl.Name),
		zap.Int32("body_parts", mdl.Header.BodyPartCount),
	)
	switch {
	case !mdl.Header.HasSecondaryHeader():
		log.Debug("no secondary header", zap.String("file", path))
	case mdl.Header.SecondaryHeaderInline():
		log.Debug("secondary header follows the studio header", zap.String("file", path))
	default:
		log.Debug("secondary header at explicit offset",
			zap.String("file", path), zap.Int32("offset", mdl.Header.StudioHdr2Index))
	}
	return mdl, nil
}

func (l *Loader) decodeVTX(log *zap.Logger, name string) (*formats.VTX, error) {
	path := name + ExtVTX
	data, err := l.read(name, path)
	if err != nil {
		return nil, err
	}

	vtx, err := formats.ParseVTX(data)
	if err != nil {
		return nil, decodeFailure(name, path, err)
	}

	log.Debug("decoded mesh topology",
		zap.String("file", path),
		zap.Int("bytes", len(data)),
		zap.Int32("lods", vtx.Header.NumLODs),
		zap.Int("body_parts", len(vtx.BodyParts)),
	)
	return vtx, nil
}

func (l *Loader) decodeVVD(log *zap.Logger, name string) (*formats.VVD, error) {
	path := name + ExtVVD
	data, err := l.read(name, path)
	if err != nil {
		return nil, err
	}

	vvd, err := formats.ParseVVD(data)
	if err != nil {
		return nil, decodeFailure(name, path, err)
	}

	log.Debug("decoded vertex data",
		zap.String("file", path),
		zap.Int("bytes", len(data)),
		zap.Int32("version", vvd.Header.Version),
		zap.Int("fixups", len(vvd.Fixups)),
		zap.Int("vertices", len(vvd.Vertices)),
	)
	return vvd, nil
}
