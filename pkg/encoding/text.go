// Package encoding provides text decoding for fixed-width model file strings.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// UTF8 is the default charset. Names are validated, never repaired.
const UTF8 = "utf-8"

// ErrInvalidText is returned when bytes are not valid in the requested charset.
var ErrInvalidText = errors.New("invalid text")

// ErrUnknownCharset is returned for charset names that cannot be resolved.
var ErrUnknownCharset = errors.New("unknown charset")

// DecodeFixedString decodes a fixed-width, NUL-terminated field.
// Bytes after the first NUL are ignored; a field without NUL is used whole.
func DecodeFixedString(data []byte, charset string) (string, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}

	dec, err := decoder(charset)
	if err != nil {
		return "", err
	}

	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidText, err)
	}
	return string(out), nil
}

// EUCKR names the Korean multi-byte charset used by some community tools.
const EUCKR = "euc-kr"

// Charsets lists the charset names accepted by DecodeFixedString.
func Charsets() []string {
	names := []string{UTF8, EUCKR}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			names = append(names, cm.String())
		}
	}
	return names
}

// ValidCharset reports whether name resolves to a known charset.
func ValidCharset(name string) bool {
	_, err := decoder(name)
	return err == nil
}

func decoder(charset string) (transform.Transformer, error) {
	if charset == "" || strings.EqualFold(charset, UTF8) || strings.EqualFold(charset, "utf8") {
		return encoding.UTF8Validator, nil
	}
	if strings.EqualFold(charset, EUCKR) {
		return korean.EUCKR.NewDecoder(), nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && strings.EqualFold(cm.String(), charset) {
			return cm.NewDecoder(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
}
