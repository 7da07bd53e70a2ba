// Package wire implements the length-delimited protobuf encoding primitives
// that the trace writer is built on: varint, zig-zag, field tags, fixed-width
// fields. Write-only on the hot path; the matching Reader lives in reader.go.
package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// Protobuf wire types.
const (
	TypeVarint  = 0
	TypeFixed64 = 1
	TypeLen     = 2
	TypeFixed32 = 5
)

// MaxVarintLen 一个 uint64 varint 至多 10 字节
const MaxVarintLen = 10

// ZigZag maps a signed value onto an unsigned one so that small-magnitude
// negatives stay short after varint encoding.
func ZigZag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// UnZigZag is the exact inverse of ZigZag.
func UnZigZag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// Writer emits wire-format fields onto an io.Writer. It holds no state
// besides the sink: every method is a pure function of (sink, field, value).
type Writer struct {
	w   io.Writer
	buf [MaxVarintLen]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Varint writes v as 7-bit groups, LSB group first, high bit as continuation.
func (e *Writer) Varint(v uint64) error {
	n := 0
	for v >= 0x80 {
		e.buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	e.buf[n] = byte(v)
	_, err := e.w.Write(e.buf[:n+1])
	return err
}

// Tag writes (field << 3) | wireType.
func (e *Writer) Tag(field int, wireType int) error {
	return e.Varint(uint64(field)<<3 | uint64(wireType))
}

func (e *Writer) Uint64Field(field int, v uint64) error {
	if err := e.Tag(field, TypeVarint); err != nil {
		return err
	}
	return e.Varint(v)
}

// Int64Field writes a plain two's-complement int64 varint, the encoding a
// proto3 int64 field uses. Negative values always take 10 bytes.
func (e *Writer) Int64Field(field int, v int64) error {
	return e.Uint64Field(field, uint64(v))
}

// Sint64Field writes a zig-zag encoded int64 (proto3 sint64).
func (e *Writer) Sint64Field(field int, v int64) error {
	return e.Uint64Field(field, ZigZag(v))
}

func (e *Writer) DoubleField(field int, v float64) error {
	return e.Fixed64Field(field, math.Float64bits(v))
}

func (e *Writer) Fixed64Field(field int, v uint64) error {
	if err := e.Tag(field, TypeFixed64); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	_, err := e.w.Write(e.buf[:8])
	return err
}

func (e *Writer) Fixed32Field(field int, v uint32) error {
	if err := e.Tag(field, TypeFixed32); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	_, err := e.w.Write(e.buf[:4])
	return err
}

// BytesField writes a length-delimited field: tag, byte count, raw bytes.
func (e *Writer) BytesField(field int, b []byte) error {
	if err := e.Tag(field, TypeLen); err != nil {
		return err
	}
	if err := e.Varint(uint64(len(b))); err != nil {
		return err
	}
	_, err := e.w.Write(b)
	return err
}

func (e *Writer) StringField(field int, s string) error {
	return e.BytesField(field, []byte(s))
}
