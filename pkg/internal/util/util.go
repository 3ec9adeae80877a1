package util

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
)

// PackStruct writes struct fields to buf in declaration order (BigEndian).
// Fields must be fixed-size values.
func PackStruct(buf io.Writer, data interface{}) error {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("data is invalid (nil or non-pointer)")
	}
	val := rv.Elem()
	for i := 0; i < val.NumField(); i++ {
		if err := binary.Write(buf, binary.BigEndian, val.Field(i).Interface()); err != nil {
			return fmt.Errorf("field %s: %w", val.Type().Field(i).Name, err)
		}
	}
	return nil
}

// Write writes any fixed-size value in BigEndian to buf.
func Write(buf io.Writer, v interface{}) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// WriteString writes s prefixed with its uint16 length.
func WriteString(buf io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes does not fit a uint16 length", len(s))
	}
	if err := Write(buf, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(buf, s)
	return err
}

// ReadString reads a string written by WriteString.
func ReadString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Read reads a fixed-size BigEndian value from r into v.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.BigEndian, v)
}
