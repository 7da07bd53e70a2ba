package tracer

import (
	"testing"

	r "github.com/stretchr/testify/require"
)

func TestFormatRadixName(t *testing.T) {
	r.Equal(t, "addr[hex]", formatRadixName("addr", RadixHex))
	r.Equal(t, "mask[bin]", formatRadixName("mask", RadixBin))
	r.Equal(t, "mode[oct]", formatRadixName("mode", RadixOct))
	r.Equal(t, "count[dec]", formatRadixName("count", RadixDec))
	r.Equal(t, "len[u]", formatRadixName("len", RadixUnsigned))
	r.Equal(t, "stamp[time]", formatRadixName("stamp", RadixTime))
	// string 和 real 不加后缀
	r.Equal(t, "resp", formatRadixName("resp", RadixString))
	r.Equal(t, "voltage", formatRadixName("voltage", RadixReal))
}

func TestBitsToString_Hex(t *testing.T) {
	// 24 位向量，LSB 在前的字节序，显示时高字节在前
	bits := []byte{0xAB, 0xCD, 0xEF}
	r.Equal(t, "0xefcdab", bitsToString(bits, 24, RadixHex))

	// hex 也是 bin 以外所有 radix 的缺省渲染
	r.Equal(t, "0xefcdab", bitsToString(bits, 24, RadixDec))

	// 12 位只覆盖两个字节
	r.Equal(t, "0xcdab", bitsToString(bits, 12, RadixHex))

	// numBits 超出提供的字节数时不越界
	r.Equal(t, "0xefcdab", bitsToString(bits, 64, RadixHex))
}

func TestBitsToString_Bin(t *testing.T) {
	r.Equal(t, "0b10100101", bitsToString([]byte{0xA5}, 8, RadixBin))
	r.Equal(t, "0b0000000111111111", bitsToString([]byte{0xFF, 0x01}, 16, RadixBin))
}

func TestBlobToString(t *testing.T) {
	r.Equal(t, "00ff10", blobToString([]byte{0x00, 0xFF, 0x10}))
	r.Equal(t, "", blobToString(nil))
}

func TestTransaction_AddAttributeWidths(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)

	r.NoError(t, x.AddInt8("i8", -5, RadixDec))
	r.NoError(t, x.AddInt16("i16", -500, RadixDec))
	r.NoError(t, x.AddInt32("i32", -50000, RadixDec))
	r.NoError(t, x.AddUint8("u8", 5, RadixHex))
	r.NoError(t, x.AddUint16("u16", 500, RadixHex))
	r.NoError(t, x.AddUint32("u32", 50000, RadixHex))
	r.NoError(t, x.AddFloat32("f32", 1.5))
	r.NoError(t, x.AddTime("stamp", 42))

	attrs := x.Attributes()
	r.Len(t, attrs, 8)

	// 窄整型一律加宽到 64 位
	r.Equal(t, AttrInt64, attrs[0].Type)
	r.Equal(t, int64(-5), attrs[0].I64)
	r.Equal(t, AttrInt64, attrs[2].Type)
	r.Equal(t, int64(-50000), attrs[2].I64)
	r.Equal(t, AttrUint64, attrs[5].Type)
	r.Equal(t, uint64(50000), attrs[5].U64)

	r.Equal(t, AttrDouble, attrs[6].Type)
	r.Equal(t, 1.5, attrs[6].F64)

	r.Equal(t, "stamp[time]", attrs[7].Name)
	r.Equal(t, uint64(42), attrs[7].U64)
}

func TestTransaction_AddBits(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)

	r.NoError(t, x.AddBits("data", []byte{0xAB, 0xCD, 0xEF}, 24, RadixHex))
	attrs := x.Attributes()
	r.Len(t, attrs, 1)
	r.Equal(t, AttrBitstring, attrs[0].Type)
	r.Equal(t, "data[hex]", attrs[0].Name)
	r.Equal(t, "0xefcdab", attrs[0].Str)

	err := x.AddBits("bad", nil, 8, RadixHex)
	r.Error(t, err)
	r.Equal(t, ErrNullPointer, err.(*Error).Code)
	r.Equal(t, ErrNullPointer, tr.LastError())
}

func TestTransaction_AddBlobCopies(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)

	data := []byte{1, 2, 3}
	r.NoError(t, x.AddBlob("payload", data))
	data[0] = 99

	attrs := x.Attributes()
	r.Equal(t, []byte{1, 2, 3}, attrs[0].Blob)

	err := x.AddBlob("bad", nil)
	r.Error(t, err)
	r.Equal(t, ErrNullPointer, err.(*Error).Code)
}

func TestTransaction_AddAttributeGenericDispatch(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)

	r.NoError(t, x.AddAttribute("a", AttrValue{Type: AttrUint64, U64: 7}))
	r.NoError(t, x.AddAttribute("b", AttrValue{Type: AttrInt64, I64: -7}))
	r.NoError(t, x.AddAttribute("c", AttrValue{Type: AttrDouble, F64: 2.5}))
	r.NoError(t, x.AddAttribute("d", AttrValue{Type: AttrString, Str: "ok"}))
	r.Len(t, x.Attributes(), 4)

	// 窄类型标签被丢弃，只在 last error 上留痕
	err := x.AddAttribute("e", AttrValue{Type: AttrUint8, U64: 1})
	r.Error(t, err)
	r.Equal(t, ErrBadAttrType, err.(*Error).Code)
	r.Equal(t, ErrBadAttrType, tr.LastError())
	r.Len(t, x.Attributes(), 4)
}

func TestTransaction_AttributesAfterCloseAcceptedNotEmitted(t *testing.T) {
	tr, buf := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)
	r.NoError(t, x.AddUint64("early", 1, RadixDec))
	r.NoError(t, x.Close(2))

	// 关闭后仍然接受，但不会再上线
	r.NoError(t, x.AddUint64("late", 2, RadixDec))
	r.Len(t, x.Attributes(), 2)

	for _, p := range readAll(t, buf) {
		if p.Kind == KindSliceBegin {
			r.Len(t, p.Annotations, 1)
			r.Equal(t, "early[dec]", p.Annotations[0].Name)
		}
	}
}

func TestTransaction_AttributesRejectedAfterFree(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)
	r.NoError(t, x.Free(2))

	err := x.AddUint64("late", 1, RadixDec)
	r.Error(t, err)
	r.Equal(t, ErrAlreadyEnded, err.(*Error).Code)
}

func TestTransaction_NegativeAttributeOnWire(t *testing.T) {
	// int 注解走 proto3 int64 编码，读回必须还原符号
	tr, buf := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)
	r.NoError(t, x.AddInt64("delta", -42, RadixDec))
	r.NoError(t, x.Close(2))

	for _, p := range readAll(t, buf) {
		if p.Kind == KindSliceBegin {
			r.Len(t, p.Annotations, 1)
			r.Equal(t, AnnInt, p.Annotations[0].Kind)
			r.Equal(t, int64(-42), p.Annotations[0].Int)
		}
	}
}

func TestTransaction_BatchHintIsTransparent(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)

	x.BeginAttributes()
	r.NoError(t, x.AddUint64("a", 1, RadixDec))
	r.NoError(t, x.AddUint64("b", 2, RadixDec))
	x.EndAttributes()

	attrs := x.Attributes()
	r.Len(t, attrs, 2)
	r.Equal(t, "a[dec]", attrs[0].Name)
	r.Equal(t, "b[dec]", attrs[1].Name)
}
