package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader is the exact inverse of Writer. The recorder itself is write-only;
// the Reader backs the dump command and the round-trip tests.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Varint reads a varint-encoded uint64. Returns io.EOF only when the stream
// ends cleanly before the first byte.
func (d *Reader) Varint() (uint64, error) {
	var v uint64
	for shift := 0; shift < MaxVarintLen*7; shift += 7 {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && shift > 0 {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("varint longer than %d bytes", MaxVarintLen)
}

// Tag reads a field tag and splits it into field number and wire type.
func (d *Reader) Tag() (field int, wireType int, err error) {
	v, err := d.Varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

func (d *Reader) Fixed64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (d *Reader) Fixed32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Bytes reads a length-delimited payload (the tag must already be consumed).
func (d *Reader) Bytes() ([]byte, error) {
	n, err := d.Varint()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Skip discards one value of the given wire type.
func (d *Reader) Skip(wireType int) error {
	switch wireType {
	case TypeVarint:
		_, err := d.Varint()
		return err
	case TypeFixed64:
		_, err := d.Fixed64()
		return err
	case TypeLen:
		_, err := d.Bytes()
		return err
	case TypeFixed32:
		_, err := d.Fixed32()
		return err
	default:
		return fmt.Errorf("unknown wire type %d", wireType)
	}
}
