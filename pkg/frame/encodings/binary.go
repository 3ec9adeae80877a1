package encodings

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
	"github.com/kamrankamilli/gsdoom/pkg/internal/util"
)

// Frame kinds of the binary layout.
const (
	kindEmpty  uint8 = 0
	kindScreen uint8 = 1
	kindSeries uint8 = 2
)

const (
	valueNumber uint8 = 0
	valueString uint8 = 1
)

var binaryMagic = [4]byte{'G', 'S', 'D', 'F'}

const binaryVersion = 2

// binaryHeader leads every binary message. Strings (key, state, name, refId)
// follow, then Rows big-endian float64 epoch milliseconds, then the value
// columns.
type binaryHeader struct {
	Magic   [4]byte
	Version uint8
	Kind    uint8
	Rows    uint32
}

// BinaryEncoding is a compact big-endian layout. Screen columns are sent as
// raw int16 with -1 padding; omitted columns are not sent.
type BinaryEncoding struct{}

func (b *BinaryEncoding) Name() string { return "binary" }
func (b *BinaryEncoding) Binary() bool { return true }

func (b *BinaryEncoding) Encode(w io.Writer, r *frame.Response) error {
	hdr := binaryHeader{Magic: binaryMagic, Version: binaryVersion, Kind: kindEmpty}
	var name, refID string
	var ts []time.Time
	switch {
	case r.Screen != nil:
		hdr.Kind, name, refID, ts = kindScreen, r.Screen.Name, r.Screen.RefID, r.Screen.Time
	case r.Series != nil:
		hdr.Kind, name, refID, ts = kindSeries, r.Series.Name, r.Series.RefID, r.Series.Time
	}
	hdr.Rows = uint32(len(ts))

	state := r.State
	if state == "" {
		state = frame.StateStreaming
	}
	if err := util.PackStruct(w, &hdr); err != nil {
		return err
	}
	for _, s := range []string{r.Key, string(state), name, refID} {
		if err := util.WriteString(w, s); err != nil {
			return err
		}
	}
	if err := util.Write(w, epochMillis(ts)); err != nil {
		return err
	}

	switch hdr.Kind {
	case kindScreen:
		return writeScreenColumns(w, r.Screen)
	case kindSeries:
		return writeSeriesFields(w, r.Series)
	}
	return nil
}

func writeScreenColumns(w io.Writer, s *frame.Screen) error {
	used := s.Used()
	if err := util.Write(w, uint16(len(used))); err != nil {
		return err
	}
	for _, idx := range used {
		if err := util.Write(w, uint8(idx)); err != nil {
			return err
		}
		if err := util.Write(w, s.Values[idx]); err != nil {
			return err
		}
	}
	return nil
}

func writeSeriesFields(w io.Writer, s *frame.Series) error {
	if err := util.Write(w, uint16(len(s.Fields))); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := util.WriteString(w, f.Name); err != nil {
			return err
		}
		if err := util.Write(w, uint16(len(f.Labels))); err != nil {
			return err
		}
		for k, v := range f.Labels {
			if err := util.WriteString(w, k); err != nil {
				return err
			}
			if err := util.WriteString(w, v); err != nil {
				return err
			}
		}
		if f.IsString() {
			if err := util.Write(w, valueString); err != nil {
				return err
			}
			for _, v := range f.Strings {
				if err := util.WriteString(w, v); err != nil {
					return err
				}
			}
			continue
		}
		if err := util.Write(w, valueNumber); err != nil {
			return err
		}
		if err := util.Write(w, f.Numbers); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBinary reads one response written by BinaryEncoding.
func DecodeBinary(r io.Reader) (*frame.Response, error) {
	var hdr binaryHeader
	if err := util.Read(r, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != binaryMagic {
		return nil, errors.New("not a binary frame")
	}
	if hdr.Version != binaryVersion {
		return nil, fmt.Errorf("unsupported binary frame version %d", hdr.Version)
	}

	strs := make([]string, 4)
	for i := range strs {
		s, err := util.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("read header strings: %w", err)
		}
		strs[i] = s
	}
	resp := &frame.Response{Key: strs[0], State: frame.State(strs[1])}

	millis := make([]float64, hdr.Rows)
	if err := util.Read(r, millis); err != nil {
		return nil, fmt.Errorf("read time column: %w", err)
	}
	ts := make([]time.Time, len(millis))
	for i, ms := range millis {
		ts[i] = fromEpochMillis(ms)
	}

	switch hdr.Kind {
	case kindScreen:
		s := &frame.Screen{Name: strs[2], RefID: strs[3], Time: ts, Values: make([][]int16, 256)}
		var n uint16
		if err := util.Read(r, &n); err != nil {
			return nil, err
		}
		for i := 0; i < int(n); i++ {
			var idx uint8
			if err := util.Read(r, &idx); err != nil {
				return nil, err
			}
			vals := make([]int16, hdr.Rows)
			if err := util.Read(r, vals); err != nil {
				return nil, fmt.Errorf("read column %d: %w", idx, err)
			}
			s.Values[idx] = vals
		}
		resp.Screen = s
	case kindSeries:
		s := &frame.Series{Name: strs[2], RefID: strs[3], Time: ts}
		var n uint16
		if err := util.Read(r, &n); err != nil {
			return nil, err
		}
		for i := 0; i < int(n); i++ {
			f, err := readSeriesField(r, int(hdr.Rows))
			if err != nil {
				return nil, err
			}
			s.Fields = append(s.Fields, f)
		}
		resp.Series = s
	}
	return resp, nil
}

func readSeriesField(r io.Reader, rows int) (frame.Field, error) {
	var f frame.Field
	name, err := util.ReadString(r)
	if err != nil {
		return f, err
	}
	f.Name = name

	var labels uint16
	if err := util.Read(r, &labels); err != nil {
		return f, err
	}
	if labels > 0 {
		f.Labels = make(map[string]string, labels)
	}
	for i := 0; i < int(labels); i++ {
		k, err := util.ReadString(r)
		if err != nil {
			return f, err
		}
		v, err := util.ReadString(r)
		if err != nil {
			return f, err
		}
		f.Labels[k] = v
	}

	var typ uint8
	if err := util.Read(r, &typ); err != nil {
		return f, err
	}
	switch typ {
	case valueString:
		f.Strings = make([]string, rows)
		for i := range f.Strings {
			if f.Strings[i], err = util.ReadString(r); err != nil {
				return f, err
			}
		}
	case valueNumber:
		f.Numbers = make([]float64, rows)
		if err := util.Read(r, f.Numbers); err != nil {
			return f, err
		}
	default:
		return f, fmt.Errorf("field %s: unknown value type %d", name, typ)
	}
	return f, nil
}
