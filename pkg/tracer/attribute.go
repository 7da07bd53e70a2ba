package tracer

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Radix is display metadata only; it never changes the stored value.
type Radix int

const (
	RadixBin Radix = iota
	RadixOct
	RadixDec
	RadixHex
	RadixUnsigned
	RadixString
	RadixTime
	RadixReal
)

// AttrType tags the value union of an attribute.
type AttrType int

const (
	AttrInt8 AttrType = iota
	AttrInt16
	AttrInt32
	AttrInt64
	AttrUint8
	AttrUint16
	AttrUint32
	AttrUint64
	AttrReal
	AttrDouble
	AttrString
	AttrBitstring // bit vectors of arbitrary width, rendered to text
	AttrBlob
)

// AttrValue is the generic typed-value entry point (see AddAttribute).
type AttrValue struct {
	Type AttrType
	I64  int64
	U64  uint64
	F64  float64
	Str  string
	Blob []byte
}

// Attribute is a named, typed value owned by its transaction. Integer widths
// are widened to 64 bits at creation; the radix suffix on the name carries
// the display intent to the viewer.
type Attribute struct {
	Name  string
	Type  AttrType
	Radix Radix
	I64   int64
	U64   uint64
	F64   float64
	Str   string
	Blob  []byte
}

// formatRadixName suffixes the attribute name with a radix marker so viewers
// can infer display intent without a side channel.
func formatRadixName(name string, radix Radix) string {
	switch radix {
	case RadixBin:
		return name + "[bin]"
	case RadixOct:
		return name + "[oct]"
	case RadixDec:
		return name + "[dec]"
	case RadixHex:
		return name + "[hex]"
	case RadixUnsigned:
		return name + "[u]"
	case RadixTime:
		return name + "[time]"
	default:
		return name
	}
}

// bitsToString renders a packed LSB-first bit vector into its display form,
// high-order byte first, covering exactly ceil(numBits/8) bytes.
func bitsToString(bits []byte, numBits int, radix Radix) string {
	numBytes := (numBits + 7) / 8
	if numBytes > len(bits) {
		numBytes = len(bits)
	}
	var sb strings.Builder
	switch radix {
	case RadixBin:
		sb.WriteString("0b")
		for i := numBytes - 1; i >= 0; i-- {
			for bit := 7; bit >= 0; bit-- {
				if bits[i]>>bit&1 == 1 {
					sb.WriteByte('1')
				} else {
					sb.WriteByte('0')
				}
			}
		}
	default:
		// hex 是缺省形式
		sb.WriteString("0x")
		for i := numBytes - 1; i >= 0; i-- {
			fmt.Fprintf(&sb, "%02x", bits[i])
		}
	}
	return sb.String()
}

// blobToString renders a blob verbatim as lowercase hex for display.
func blobToString(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

// AddAttribute dispatches on the explicit type tag. Narrow integer tags and
// single-precision REAL are dropped, matching the observed surface; the drop
// is recorded on the trace's last-error slot for diagnosability.
func (x *Transaction) AddAttribute(name string, value AttrValue) error {
	if x == nil {
		return &Error{Code: ErrNullHandle}
	}
	switch value.Type {
	case AttrInt64:
		return x.AddInt64(name, value.I64, RadixHex)
	case AttrUint64:
		return x.AddUint64(name, value.U64, RadixHex)
	case AttrDouble:
		return x.AddFloat64(name, value.F64)
	case AttrString:
		return x.AddString(name, value.Str)
	case AttrBlob:
		return x.AddBlob(name, value.Blob)
	default:
		logrus.Debugf("DVTT dropped attribute %q with unsupported type tag %d", name, value.Type)
		return x.trace().setErr(newErr(ErrBadAttrType, "attribute %q tag %d", name, value.Type))
	}
}
