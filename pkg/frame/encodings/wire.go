package encodings

import (
	"math"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

// Field types of the wire format.
const (
	FieldTime   = "time"
	FieldNumber = "number"
	FieldString = "string"
)

// TimeField is the name of the time column of every frame.
const TimeField = "Time"

type wireResponse struct {
	Key    string      `json:"key" msgpack:"key"`
	State  frame.State `json:"state" msgpack:"state"`
	Frames []wireFrame `json:"frames" msgpack:"frames"`
}

type wireFrame struct {
	Name   string      `json:"name" msgpack:"name"`
	RefID  string      `json:"refId,omitempty" msgpack:"refId,omitempty"`
	Fields []wireField `json:"fields" msgpack:"fields"`
}

type wireField struct {
	Name   string            `json:"name" msgpack:"name"`
	Type   string            `json:"type" msgpack:"type"`
	Labels map[string]string `json:"labels,omitempty" msgpack:"labels,omitempty"`
	Values interface{}       `json:"values" msgpack:"values"`
}

// padded is a screen value column whose Pad entries travel as null.
type padded []int16

func (p padded) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(p)*4)
	out = append(out, '[')
	for i, v := range p {
		if i > 0 {
			out = append(out, ',')
		}
		if v == frame.Pad {
			out = append(out, "null"...)
			continue
		}
		out = strconv.AppendInt(out, int64(v), 10)
	}
	return append(out, ']'), nil
}

var _ msgpack.CustomEncoder = padded(nil)

func (p padded) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(len(p)); err != nil {
		return err
	}
	for _, v := range p {
		var err error
		if v == frame.Pad {
			err = enc.EncodeNil()
		} else {
			err = enc.EncodeInt(int64(v))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// epochMillis keeps the sub-millisecond part, short ranges step by less than
// a millisecond per column.
func epochMillis(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/float64(time.Millisecond)
	}
	return out
}

func fromEpochMillis(ms float64) time.Time {
	whole := math.Floor(ms)
	frac := time.Duration(math.Round((ms - whole) * float64(time.Millisecond)))
	return time.UnixMilli(int64(whole)).Add(frac)
}

func toWire(r *frame.Response) *wireResponse {
	w := &wireResponse{Key: r.Key, State: r.State, Frames: []wireFrame{}}
	if w.State == "" {
		w.State = frame.StateStreaming
	}
	switch {
	case r.Screen != nil:
		w.Frames = append(w.Frames, screenToWire(r.Screen))
	case r.Series != nil:
		w.Frames = append(w.Frames, seriesToWire(r.Series))
	}
	return w
}

func screenToWire(s *frame.Screen) wireFrame {
	f := wireFrame{
		Name:   s.Name,
		RefID:  s.RefID,
		Fields: make([]wireField, 0, len(s.Values)+1),
	}
	f.Fields = append(f.Fields, wireField{Name: TimeField, Type: FieldTime, Values: epochMillis(s.Time)})
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		f.Fields = append(f.Fields, wireField{
			Name:   "Value",
			Type:   FieldNumber,
			Labels: map[string]string{frame.ColorLabel: strconv.Itoa(i)},
			Values: padded(v),
		})
	}
	return f
}

func seriesToWire(s *frame.Series) wireFrame {
	f := wireFrame{
		Name:   s.Name,
		RefID:  s.RefID,
		Fields: make([]wireField, 0, len(s.Fields)+1),
	}
	f.Fields = append(f.Fields, wireField{Name: TimeField, Type: FieldTime, Values: epochMillis(s.Time)})
	for _, fl := range s.Fields {
		wf := wireField{Name: fl.Name, Labels: fl.Labels}
		if fl.IsString() {
			wf.Type, wf.Values = FieldString, fl.Strings
		} else {
			wf.Type, wf.Values = FieldNumber, fl.Numbers
		}
		f.Fields = append(f.Fields, wf)
	}
	return f
}
