// Package encodings serializes query responses for the wire.
package encodings

import (
	"errors"
	"fmt"
	"io"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/palette"
)

// ErrUnknownEncoding is returned by Get for an unsupported name.
var ErrUnknownEncoding = errors.New("encodings: unknown encoding")

// Encoding is an interface to be implemented by different response codecs.
type Encoding interface {
	Name() string
	// Binary reports whether the output must travel as a binary message.
	Binary() bool
	Encode(w io.Writer, r *frame.Response) error
}

// DefaultEncodings lists the encodings a client may pick without a palette.
var DefaultEncodings = []Encoding{
	&JSONEncoding{},
	&MsgpackEncoding{},
	&BinaryEncoding{},
}

// GetDefaults returns a slice of the default encoding handlers.
func GetDefaults() []Encoding {
	out := make([]Encoding, len(DefaultEncodings))
	copy(out, DefaultEncodings)
	return out
}

// Get returns the encoding with the given name. Image previews paint with
// pal, or the default palette when pal is nil.
func Get(name string, pal *palette.Palette) (Encoding, error) {
	for _, e := range DefaultEncodings {
		if e.Name() == name {
			return e, nil
		}
	}
	switch name {
	case PreviewPNG:
		return NewPreview(PreviewOptions{Palette: pal}), nil
	case PreviewJPEG:
		return NewPreview(PreviewOptions{Palette: pal, Format: PreviewJPEG}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}
