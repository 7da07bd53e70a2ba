package wire

import (
	"bytes"
	"io"
	"math"
	"testing"

	r "github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// protowire 作为编码的参照实现
func TestWriter_Varint_MatchesProtowire(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1<<32 - 1, 1 << 56, math.MaxUint64}

	for _, v := range values {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		r.NoError(t, w.Varint(v))

		want := protowire.AppendVarint(nil, v)
		r.Equal(t, want, buf.Bytes(), "value %d", v)
		r.LessOrEqual(t, buf.Len(), MaxVarintLen)
	}
}

func TestWriter_Tag_MatchesProtowire(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.Tag(60, TypeLen))

	want := protowire.AppendTag(nil, 60, protowire.BytesType)
	r.Equal(t, want, buf.Bytes())
}

func TestZigZag_RoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, -2, 63, -64, 64, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		r.Equal(t, v, UnZigZag(ZigZag(v)), "value %d", v)
	}

	// 交叉验证编码本身
	r.Equal(t, uint64(0), ZigZag(0))
	r.Equal(t, uint64(1), ZigZag(-1))
	r.Equal(t, uint64(2), ZigZag(1))
	r.Equal(t, uint64(protowire.EncodeZigZag(-123456)), ZigZag(-123456))
}

// Small-magnitude signed values must stay one byte after zig-zag, that is
// the whole point of the encoding.
func TestSint64Field_SmallValuesStayShort(t *testing.T) {
	for v := int64(-64); v <= 63; v++ {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		r.NoError(t, w.Sint64Field(1, v))
		// one byte tag, one byte payload
		r.Equal(t, 2, buf.Len(), "value %d", v)
	}
}

// A proto3 int64 field is plain two's complement: -1 takes the maximum
// varint length, not two bytes.
func TestInt64Field_PlainEncoding(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.Int64Field(4, -1))

	want := protowire.AppendTag(nil, 4, protowire.VarintType)
	want = protowire.AppendVarint(want, uint64(0xFFFFFFFFFFFFFFFF))
	r.Equal(t, want, buf.Bytes())
	r.Equal(t, 1+MaxVarintLen, buf.Len())
}

func TestWriter_FixedAndDouble(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.DoubleField(5, 3.25))
	r.NoError(t, w.Fixed32Field(7, 0xCAFE))

	want := protowire.AppendTag(nil, 5, protowire.Fixed64Type)
	want = protowire.AppendFixed64(want, math.Float64bits(3.25))
	want = protowire.AppendTag(want, 7, protowire.Fixed32Type)
	want = protowire.AppendFixed32(want, 0xCAFE)
	r.Equal(t, want, buf.Bytes())
}

func TestWriter_BytesField(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.StringField(2, "initiator"))

	want := protowire.AppendTag(nil, 2, protowire.BytesType)
	want = protowire.AppendString(want, "initiator")
	r.Equal(t, want, buf.Bytes())
}

func TestReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.Uint64Field(8, 12345))
	r.NoError(t, w.BytesField(60, []byte{0xAA, 0xBB}))
	r.NoError(t, w.Fixed64Field(47, 99))

	d := NewReader(&buf)

	field, wt, err := d.Tag()
	r.NoError(t, err)
	r.Equal(t, 8, field)
	r.Equal(t, TypeVarint, wt)
	v, err := d.Varint()
	r.NoError(t, err)
	r.Equal(t, uint64(12345), v)

	field, wt, err = d.Tag()
	r.NoError(t, err)
	r.Equal(t, 60, field)
	r.Equal(t, TypeLen, wt)
	b, err := d.Bytes()
	r.NoError(t, err)
	r.Equal(t, []byte{0xAA, 0xBB}, b)

	field, wt, err = d.Tag()
	r.NoError(t, err)
	r.Equal(t, 47, field)
	r.Equal(t, TypeFixed64, wt)
	f, err := d.Fixed64()
	r.NoError(t, err)
	r.Equal(t, uint64(99), f)

	_, _, err = d.Tag()
	r.Equal(t, io.EOF, err)
}

func TestReader_Skip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r.NoError(t, w.Uint64Field(1, 7))
	r.NoError(t, w.BytesField(2, []byte("skipped")))
	r.NoError(t, w.Fixed32Field(3, 1))
	r.NoError(t, w.Uint64Field(4, 42))

	d := NewReader(&buf)
	for i := 0; i < 3; i++ {
		_, wt, err := d.Tag()
		r.NoError(t, err)
		r.NoError(t, d.Skip(wt))
	}

	field, _, err := d.Tag()
	r.NoError(t, err)
	r.Equal(t, 4, field)
	v, err := d.Varint()
	r.NoError(t, err)
	r.Equal(t, uint64(42), v)
}

func TestReader_TruncatedVarint(t *testing.T) {
	d := NewReader(bytes.NewReader([]byte{0x80}))
	_, err := d.Varint()
	r.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReader_OverlongVarint(t *testing.T) {
	d := NewReader(bytes.NewReader(bytes.Repeat([]byte{0x80}, 11)))
	_, err := d.Varint()
	r.Error(t, err)
	r.NotEqual(t, io.EOF, err)
}
