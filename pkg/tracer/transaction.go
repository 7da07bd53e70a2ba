package tracer

// LinkType classifies a link request. Only the shared flow identifier
// reaches the wire; the type is accepted for API compatibility.
type LinkType int

const (
	LinkParentChild LinkType = iota
	LinkRelated
	LinkCauseEffect
	LinkCustom
)

// Transaction is a single timed activity on a stream. End time stays 0
// until the transaction is closed; timing is immutable afterwards.
type Transaction struct {
	stream *Stream

	id       uint64
	name     string
	typeName string
	start    uint64
	end      uint64

	state  State
	handle int

	// decided once at open time, immutable afterwards
	trackUUID uint64
	parent    *Transaction

	attrs   []Attribute
	flowIDs []uint64

	// batch hint only; attribute semantics are identical either way
	batching bool

	// begin/end pair already on the wire; later attributes are accepted
	// but not re-emitted
	emitted bool
}

func (x *Transaction) trace() *Trace { return x.stream.trace }

func (x *Transaction) ID() uint64        { return x.id }
func (x *Transaction) Name() string      { return x.name }
func (x *Transaction) TypeName() string  { return x.typeName }
func (x *Transaction) StartTime() uint64 { return x.start }
func (x *Transaction) EndTime() uint64   { return x.end }
func (x *Transaction) State() State      { return x.state }
func (x *Transaction) Stream() *Stream   { return x.stream }
func (x *Transaction) TrackUUID() uint64 { return x.trackUUID }
func (x *Transaction) Parent() *Transaction {
	return x.parent
}

func (x *Transaction) IsOpen() bool   { return x != nil && x.state == StateOpen }
func (x *Transaction) IsClosed() bool { return x != nil && x.state == StateClosed }

// Handle returns the transaction's integer handle, or 0 once freed.
func (x *Transaction) Handle() int {
	if x == nil || x.state == StateFreed {
		return 0
	}
	return x.handle
}

// Attributes returns the attributes attached so far, in attach order.
func (x *Transaction) Attributes() []Attribute {
	out := make([]Attribute, len(x.attrs))
	copy(out, x.attrs)
	return out
}

// Duration returns end-start; requires the transaction to be closed.
func (x *Transaction) Duration() (uint64, error) {
	if x == nil {
		return 0, &Error{Code: ErrNullHandle}
	}
	if x.state == StateOpen {
		return 0, x.trace().setErr(newErr(ErrNotEnded, "transaction %q still open", x.name))
	}
	return x.end - x.start, nil
}

// Close fixes the end time and emits the slice begin/end pair carrying the
// accumulated attributes and flow identifiers. A second close is a no-op
// reported as already-ended, end time unchanged.
func (x *Transaction) Close(endTime uint64) error {
	if x == nil {
		return &Error{Code: ErrNullHandle}
	}
	t := x.trace()
	if x.state != StateOpen {
		return t.setErr(newErr(ErrAlreadyEnded, "transaction %q", x.name))
	}
	x.end = endTime
	x.state = StateClosed

	if err := t.emitSliceBegin(x); err != nil {
		return err
	}
	if err := t.emitSliceEnd(x); err != nil {
		return err
	}
	x.emitted = true

	if t.mirror != nil {
		t.mirror.record(x)
	}

	t.setOK()
	return nil
}

// Free releases the transaction, closing it first at closeTime when still
// open. The handle stops resolving.
func (x *Transaction) Free(closeTime uint64) error {
	if x == nil {
		return &Error{Code: ErrNullHandle}
	}
	t := x.trace()
	if x.state == StateFreed {
		return t.setErr(newErr(ErrAlreadyEnded, "transaction %q already freed", x.name))
	}
	if x.state == StateOpen {
		if err := x.Close(closeTime); err != nil {
			return err
		}
	}
	x.state = StateFreed
	x.attrs = nil
	return nil
}

// attrGuard rejects attribute addition on freed transactions. Attributes on
// a CLOSED transaction are still accepted, they just won't reach the wire.
func (x *Transaction) attrGuard() error {
	if x == nil {
		return &Error{Code: ErrNullHandle}
	}
	if x.state == StateFreed {
		return x.trace().setErr(newErr(ErrAlreadyEnded, "transaction %q already freed", x.name))
	}
	return nil
}

// AddInt64 adds a signed integer attribute; narrower widths widen to 64
// bits while the radix marker preserves display intent.
func (x *Transaction) AddInt64(name string, value int64, radix Radix) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	x.attrs = append(x.attrs, Attribute{
		Name:  formatRadixName(name, radix),
		Type:  AttrInt64,
		Radix: radix,
		I64:   value,
	})
	return nil
}

func (x *Transaction) AddInt32(name string, value int32, radix Radix) error {
	return x.AddInt64(name, int64(value), radix)
}

func (x *Transaction) AddInt16(name string, value int16, radix Radix) error {
	return x.AddInt64(name, int64(value), radix)
}

func (x *Transaction) AddInt8(name string, value int8, radix Radix) error {
	return x.AddInt64(name, int64(value), radix)
}

// AddUint64 adds an unsigned integer attribute.
func (x *Transaction) AddUint64(name string, value uint64, radix Radix) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	x.attrs = append(x.attrs, Attribute{
		Name:  formatRadixName(name, radix),
		Type:  AttrUint64,
		Radix: radix,
		U64:   value,
	})
	return nil
}

func (x *Transaction) AddUint32(name string, value uint32, radix Radix) error {
	return x.AddUint64(name, uint64(value), radix)
}

func (x *Transaction) AddUint16(name string, value uint16, radix Radix) error {
	return x.AddUint64(name, uint64(value), radix)
}

func (x *Transaction) AddUint8(name string, value uint8, radix Radix) error {
	return x.AddUint64(name, uint64(value), radix)
}

// AddFloat32 promotes to double precision for storage.
func (x *Transaction) AddFloat32(name string, value float32) error {
	return x.AddFloat64(name, float64(value))
}

func (x *Transaction) AddFloat64(name string, value float64) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	x.attrs = append(x.attrs, Attribute{
		Name:  name,
		Type:  AttrDouble,
		Radix: RadixReal,
		F64:   value,
	})
	return nil
}

// AddString copies value at attach time; the caller's buffer is not
// retained (Go strings are immutable, so the copy is the assignment).
func (x *Transaction) AddString(name string, value string) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	x.attrs = append(x.attrs, Attribute{
		Name:  name,
		Type:  AttrString,
		Radix: RadixString,
		Str:   value,
	})
	return nil
}

// AddTime adds a simulation-time attribute.
func (x *Transaction) AddTime(name string, value uint64) error {
	return x.AddUint64(name, value, RadixTime)
}

// AddBits adds a bit-vector attribute. bits is packed LSB first; the vector
// is rendered to its radix-prefixed display form at attach time and the raw
// bits are not separately preserved.
func (x *Transaction) AddBits(name string, bits []byte, numBits int, radix Radix) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	if bits == nil {
		return x.trace().setErr(newErr(ErrNullPointer, "nil bits for attribute %q", name))
	}
	x.attrs = append(x.attrs, Attribute{
		Name:  formatRadixName(name, radix),
		Type:  AttrBitstring,
		Radix: radix,
		Str:   bitsToString(bits, numBits, radix),
	})
	return nil
}

// AddBlob adds a binary attribute, copied verbatim, no interpretation.
func (x *Transaction) AddBlob(name string, data []byte) error {
	if err := x.attrGuard(); err != nil {
		return err
	}
	if data == nil {
		return x.trace().setErr(newErr(ErrNullPointer, "nil blob for attribute %q", name))
	}
	blob := make([]byte, len(data))
	copy(blob, data)
	x.attrs = append(x.attrs, Attribute{
		Name:  name,
		Type:  AttrBlob,
		Radix: RadixHex,
		Blob:  blob,
	})
	return nil
}

// BeginAttributes starts a bulk attribute section. Purely a performance
// hint: ordering and content are identical with or without it.
func (x *Transaction) BeginAttributes() {
	if x == nil {
		return
	}
	x.batching = true
}

// EndAttributes closes a bulk attribute section.
func (x *Transaction) EndAttributes() {
	if x == nil {
		return
	}
	x.batching = false
}

// Link connects this transaction to target through a fresh flow identifier
// shared by both endpoints. Neither side owns the link.
func (x *Transaction) Link(target *Transaction, linkType LinkType, relationName string) error {
	if x == nil || target == nil {
		return &Error{Code: ErrNullHandle}
	}
	t := x.trace()
	if x.state == StateFreed || target.state == StateFreed {
		return t.setErr(newErr(ErrAlreadyEnded, "link %q -> %q", x.name, target.name))
	}
	flowID := t.allocFlowID()
	x.flowIDs = append(x.flowIDs, flowID)
	target.flowIDs = append(target.flowIDs, flowID)
	t.setOK()
	return nil
}

// FlowIDs returns the flow identifiers attached to this transaction.
func (x *Transaction) FlowIDs() []uint64 {
	out := make([]uint64, len(x.flowIDs))
	copy(out, x.flowIDs)
	return out
}
