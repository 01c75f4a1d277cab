// Package rosmsg implements ROS1 message serialization for the rosserial
// control messages exchanged on the reserved topics.
//
// ROS1 serialization is little-endian. Strings and variable-length arrays are
// prefixed with a uint32 element count. Application message payloads are not
// handled here; they stay opaque byte slices.
package rosmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrShortBuffer   = errors.New("message truncated")
	ErrTrailingBytes = errors.New("unexpected trailing bytes")
)

// Message is a ROS message that can be serialized for rosserial.
type Message interface {
	// MarshalROS appends the serialized message to b.
	MarshalROS(b []byte) []byte
	// UnmarshalROS decodes the message from data.
	UnmarshalROS(data []byte) error
}

// Marshal serializes a message into a new slice.
func Marshal(m Message) []byte {
	return m.MarshalROS(nil)
}

// reader consumes ROS-serialized fields. The first error sticks; subsequent
// reads return zero values.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: reading %s at offset %d", ErrShortBuffer, field, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint8(field string) uint8 {
	b := r.take(1, field)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16(field string) uint16 {
	b := r.take(2, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) uint32(field string) uint32 {
	b := r.take(4, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) int32(field string) int32 {
	return int32(r.uint32(field))
}

func (r *reader) float32(field string) float32 {
	return math.Float32frombits(r.uint32(field))
}

func (r *reader) string(field string) string {
	n := r.uint32(field)
	if n > uint32(len(r.data)) {
		r.fail(field)
		return ""
	}
	return string(r.take(int(n), field))
}

// count reads an array length and checks it against the remaining bytes,
// assuming at least minSize bytes per element.
func (r *reader) count(field string, minSize int) int {
	n := r.uint32(field)
	if r.err != nil {
		return 0
	}
	if uint64(n)*uint64(minSize) > uint64(len(r.data)-r.off) {
		r.fail(field)
		return 0
	}
	return int(n)
}

func (r *reader) fail(field string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: reading %s at offset %d", ErrShortBuffer, field, r.off)
	}
}

// done returns the sticky error, or ErrTrailingBytes if input remains.
func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(r.data)-r.off)
	}
	return nil
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendString(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}
