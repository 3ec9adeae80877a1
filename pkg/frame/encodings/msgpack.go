package encodings

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

// MsgpackEncoding writes the JSON layout as msgpack. Padding is nil.
type MsgpackEncoding struct{}

func (m *MsgpackEncoding) Name() string { return "msgpack" }
func (m *MsgpackEncoding) Binary() bool { return true }

func (m *MsgpackEncoding) Encode(w io.Writer, r *frame.Response) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(toWire(r))
}
