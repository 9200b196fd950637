// Package charset encodes story output for terminals that are not UTF-8.
package charset

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Default is the output charset when none is configured.
const Default = "utf-8"

// Canonical returns the canonical name of the charset label, such as
// "windows-1252" for "latin1".
func Canonical(label string) (string, error) {
	if isUTF8(label) {
		return Default, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q", label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q", label)
	}
	return name, nil
}

// NewWriter returns a writer that encodes UTF-8 text written to it in the
// named charset. Characters the charset cannot represent are replaced.
// Close flushes pending output but does not close w.
func NewWriter(w io.Writer, label string) (io.WriteCloser, error) {
	if isUTF8(label) {
		return nopCloser{w}, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q", label)
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}

// String encodes s in the named charset.
func String(s, label string) (string, error) {
	if isUTF8(label) {
		return s, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q", label)
	}
	out, _, err := transform.String(encoding.ReplaceUnsupported(enc.NewEncoder()), s)
	return out, err
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
