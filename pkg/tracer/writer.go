package tracer

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"github.com/fvutils/dv-transaction-trace/pkg/wire"
)

// Perfetto field numbers. Only the subset the recorder emits; the numbers
// must match perfetto_trace.proto or the viewer drops the packets.
const (
	// Trace
	fTracePacket = 1

	// TracePacket
	fPacketClockSnapshot = 6
	fPacketTimestamp     = 8
	fPacketSequenceID    = 10 // trusted_packet_sequence_id
	fPacketTrackEvent    = 11
	fPacketTrackDesc     = 60

	// ClockSnapshot / ClockSnapshot.Clock
	fSnapshotClocks = 1
	fClockID        = 1
	fClockTimestamp = 2

	// TrackDescriptor
	fDescUUID       = 1
	fDescName       = 2
	fDescParentUUID = 5

	// TrackEvent
	fEventAnnotations = 4
	fEventType        = 9
	fEventTrackUUID   = 11
	fEventCategories  = 22
	fEventName        = 23
	fEventFlowIDs     = 47 // fixed64

	// TrackEvent.Type
	sliceBegin = 1
	sliceEnd   = 2

	// DebugAnnotation
	fAnnUint   = 3
	fAnnInt    = 4
	fAnnDouble = 5
	fAnnString = 6
	fAnnName   = 10
)

// writePacket frames one TracePacket as a length-delimited field of the
// top-level Trace message. A sink failure is fatal: a partial record may be
// on the wire, so the trace is marked dead and refuses further emission.
func (t *Trace) writePacket(body []byte) error {
	if t.dead {
		return t.setErr(newErr(ErrMemory, "trace %s unusable after sink failure", t.name))
	}
	if err := t.w.BytesField(fTracePacket, body); err != nil {
		t.dead = true
		logrus.WithError(err).Errorf("DVTT couldn't write to trace %s sink", t.name)
		return t.setErr(newErr(ErrMemory, "sink write: %v", err))
	}
	return nil
}

// packetHeader writes the fields every packet carries. timestamp 0 is
// omitted, matching proto3 default elision.
func (t *Trace) packetHeader(w *wire.Writer, timestamp uint64) {
	if timestamp != 0 {
		_ = w.Uint64Field(fPacketTimestamp, timestamp)
	}
	_ = w.Uint64Field(fPacketSequenceID, t.seqID)
}

// emitClockSnapshot establishes the clock all subsequent timestamps refer
// to. Emitted once, at trace creation, before any other packet.
func (t *Trace) emitClockSnapshot() error {
	var clock bytes.Buffer
	cw := wire.NewWriter(&clock)
	_ = cw.Uint64Field(fClockID, t.clockID)
	_ = cw.Uint64Field(fClockTimestamp, 0)

	var snap bytes.Buffer
	sw := wire.NewWriter(&snap)
	_ = sw.BytesField(fSnapshotClocks, clock.Bytes())

	var pkt bytes.Buffer
	pw := wire.NewWriter(&pkt)
	t.packetHeader(pw, 0)
	_ = pw.BytesField(fPacketClockSnapshot, snap.Bytes())

	return t.writePacket(pkt.Bytes())
}

// emitStreamDescriptor announces a stream's track before any event on it.
func (t *Trace) emitStreamDescriptor(s *Stream) error {
	var desc bytes.Buffer
	dw := wire.NewWriter(&desc)
	_ = dw.Uint64Field(fDescUUID, s.trackUUID)
	_ = dw.StringField(fDescName, s.name)

	var pkt bytes.Buffer
	pw := wire.NewWriter(&pkt)
	t.packetHeader(pw, 0)
	_ = pw.BytesField(fPacketTrackDesc, desc.Bytes())

	return t.writePacket(pkt.Bytes())
}

// emitChildDescriptor announces a nested transaction's sub-track, parented
// to the parent transaction's track.
func (t *Trace) emitChildDescriptor(x *Transaction) error {
	var desc bytes.Buffer
	dw := wire.NewWriter(&desc)
	_ = dw.Uint64Field(fDescUUID, x.trackUUID)
	_ = dw.StringField(fDescName, x.name)
	_ = dw.Uint64Field(fDescParentUUID, x.parent.trackUUID)

	var pkt bytes.Buffer
	pw := wire.NewWriter(&pkt)
	t.packetHeader(pw, 0)
	_ = pw.BytesField(fPacketTrackDesc, desc.Bytes())

	return t.writePacket(pkt.Bytes())
}

// annotationBytes encodes one attribute as a DebugAnnotation message.
func annotationBytes(a *Attribute) []byte {
	var ann bytes.Buffer
	aw := wire.NewWriter(&ann)
	_ = aw.StringField(fAnnName, a.Name)
	switch a.Type {
	case AttrUint64:
		_ = aw.Uint64Field(fAnnUint, a.U64)
	case AttrInt64:
		// int_value is a proto3 int64: plain two's-complement varint
		_ = aw.Int64Field(fAnnInt, a.I64)
	case AttrDouble:
		_ = aw.DoubleField(fAnnDouble, a.F64)
	case AttrString, AttrBitstring:
		_ = aw.StringField(fAnnString, a.Str)
	case AttrBlob:
		_ = aw.StringField(fAnnString, blobToString(a.Blob))
	}
	return ann.Bytes()
}

// emitSliceBegin writes the TYPE_SLICE_BEGIN event at the transaction's
// start time, carrying name, categories, every attribute, and flow ids, on
// the transaction's own track.
func (t *Trace) emitSliceBegin(x *Transaction) error {
	var ev bytes.Buffer
	ew := wire.NewWriter(&ev)
	_ = ew.Uint64Field(fEventType, sliceBegin)
	_ = ew.Uint64Field(fEventTrackUUID, x.trackUUID)
	_ = ew.StringField(fEventName, x.name)
	if x.typeName != "" {
		_ = ew.StringField(fEventCategories, x.typeName)
	}
	for i := range x.attrs {
		_ = ew.BytesField(fEventAnnotations, annotationBytes(&x.attrs[i]))
	}
	for _, id := range x.flowIDs {
		_ = ew.Fixed64Field(fEventFlowIDs, id)
	}

	var pkt bytes.Buffer
	pw := wire.NewWriter(&pkt)
	t.packetHeader(pw, x.start)
	_ = pw.BytesField(fPacketTrackEvent, ev.Bytes())

	return t.writePacket(pkt.Bytes())
}

// emitSliceEnd writes the TYPE_SLICE_END event at the end time. Flow ids
// ride on both ends so viewers can draw arrows either way.
func (t *Trace) emitSliceEnd(x *Transaction) error {
	var ev bytes.Buffer
	ew := wire.NewWriter(&ev)
	_ = ew.Uint64Field(fEventType, sliceEnd)
	_ = ew.Uint64Field(fEventTrackUUID, x.trackUUID)
	for _, id := range x.flowIDs {
		_ = ew.Fixed64Field(fEventFlowIDs, id)
	}

	var pkt bytes.Buffer
	pw := wire.NewWriter(&pkt)
	t.packetHeader(pw, x.end)
	_ = pw.BytesField(fPacketTrackEvent, ev.Bytes())

	return t.writePacket(pkt.Bytes())
}
