package sourcemodel

import (
	"errors"
	"fmt"

	"github.com/Faultbox/srcmodel/pkg/formats"
)

// Errors raised by cross-file validation.
var (
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrBodyPartCountMismatch = errors.New("body part count mismatch")
	ErrIO                    = errors.New("i/o error")
	ErrIndexOutOfRange       = errors.New("index out of range")
)

// Kind classifies a load failure.
type Kind int

const (
	KindIO Kind = iota + 1
	KindBadMagic
	KindUnsupportedVersion
	KindTruncatedBuffer
	KindInvalidText
	KindCountMismatch
	KindChecksumMismatch
	KindBodyPartCountMismatch
	KindUnknownCharset
)

var kindNames = map[Kind]string{
	KindIO:                    "io",
	KindBadMagic:              "bad magic",
	KindUnsupportedVersion:    "unsupported version",
	KindTruncatedBuffer:       "truncated buffer",
	KindInvalidText:           "invalid text",
	KindCountMismatch:         "count mismatch",
	KindChecksumMismatch:      "checksum mismatch",
	KindBodyPartCountMismatch: "body part count mismatch",
	KindUnknownCharset:        "unknown charset",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel returns the error value errors.Is matches for this kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindBadMagic:
		return formats.ErrBadMagic
	case KindUnsupportedVersion:
		return formats.ErrUnsupportedVersion
	case KindTruncatedBuffer:
		return formats.ErrTruncatedBuffer
	case KindInvalidText:
		return formats.ErrInvalidText
	case KindCountMismatch:
		return formats.ErrCountMismatch
	case KindChecksumMismatch:
		return ErrChecksumMismatch
	case KindBodyPartCountMismatch:
		return ErrBodyPartCountMismatch
	case KindUnknownCharset:
		return formats.ErrUnknownCharset
	}
	return nil
}

// LoadError describes why a model could not be loaded.
type LoadError struct {
	Kind  Kind
	Model string // Model name as passed to Load
	Path  string // File that failed, empty for cross-file checks
	Err   error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("loading model %q: %s: %v", e.Model, e.Path, e.Err)
	}
	return fmt.Sprintf("loading model %q: %v", e.Model, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *LoadError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// classify maps a decoder error onto a Kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, formats.ErrBadMagic):
		return KindBadMagic
	case errors.Is(err, formats.ErrUnsupportedVersion):
		return KindUnsupportedVersion
	case errors.Is(err, formats.ErrUnknownCharset):
		return KindUnknownCharset
	case errors.Is(err, formats.ErrInvalidText):
		return KindInvalidText
	case errors.Is(err, formats.ErrCountMismatch):
		return KindCountMismatch
	default:
		return KindTruncatedBuffer
	}
}
