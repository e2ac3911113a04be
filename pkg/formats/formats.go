// Package formats provides parsers for Source engine studio model files.
//
// A model is split across three files: the studio header (.mdl), the optimized
// mesh topology (.vtx) and the vertex data (.vvd). Records are packed and
// little-endian; substructures are located through offsets relative to the
// record that declares them.
package formats

import (
	"errors"

	"github.com/Faultbox/srcmodel/pkg/encoding"
)

// Shared decode errors.
var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncatedBuffer    = errors.New("truncated buffer")
	ErrInvalidText        = encoding.ErrInvalidText
	ErrUnknownCharset     = encoding.ErrUnknownCharset
	ErrCountMismatch      = errors.New("declared count does not match decoded length")
)

// Vector3 is a packed three-component float vector.
type Vector3 [3]float32

// Vector2 is a packed two-component float vector.
type Vector2 [2]float32
