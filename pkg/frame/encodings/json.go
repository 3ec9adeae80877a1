package encodings

import (
	"encoding/json"
	"io"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

// JSONEncoding writes responses as JSON data frames. Padding is null.
type JSONEncoding struct{}

func (j *JSONEncoding) Name() string { return "json" }
func (j *JSONEncoding) Binary() bool { return false }

func (j *JSONEncoding) Encode(w io.Writer, r *frame.Response) error {
	return json.NewEncoder(w).Encode(toWire(r))
}
