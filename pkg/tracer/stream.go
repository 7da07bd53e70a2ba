package tracer

import (
	"github.com/sirupsen/logrus"
)

// Stream is a named lane of related transactions, rendered as one track.
// Owned by exactly one Trace.
type Stream struct {
	trace    *Trace
	name     string
	scope    string
	typeName string

	trackUUID uint64
	state     State
	handle    int

	txns    []*Transaction
	flowIDs []uint64
}

func (s *Stream) Name() string     { return s.name }
func (s *Stream) Scope() string    { return s.scope }
func (s *Stream) TypeName() string { return s.typeName }
func (s *Stream) State() State     { return s.state }
func (s *Stream) Trace() *Trace    { return s.trace }

// TrackUUID is the track identifier all root transactions of this stream
// share.
func (s *Stream) TrackUUID() uint64 { return s.trackUUID }

func (s *Stream) IsOpen() bool   { return s != nil && s.state == StateOpen }
func (s *Stream) IsClosed() bool { return s != nil && s.state == StateClosed }

// Handle returns the stream's integer handle, or 0 once freed.
func (s *Stream) Handle() int {
	if s == nil || s.state == StateFreed {
		return 0
	}
	return s.handle
}

// Transactions returns the transactions opened on this stream, in open
// order.
func (s *Stream) Transactions() []*Transaction {
	out := make([]*Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

// OpenTransaction opens a transaction at startTime. typeName may be empty;
// parent may be nil for a root transaction. The track identifier is decided
// here, once: root transactions reuse the stream's track, nested ones get a
// fresh sub-track whose descriptor is emitted before any event on it.
func (s *Stream) OpenTransaction(name string, startTime uint64, typeName string, parent *Transaction) (*Transaction, error) {
	if s == nil {
		return nil, &Error{Code: ErrNullHandle}
	}
	t := s.trace
	if s.state != StateOpen {
		return nil, t.setErr(newErr(ErrNotInitialized, "stream %q is not open", s.name))
	}
	if name == "" {
		return nil, t.setErr(newErr(ErrInvalidName, "empty transaction name"))
	}
	if parent != nil && parent.state == StateFreed {
		return nil, t.setErr(newErr(ErrNullHandle, "parent of %q already freed", name))
	}

	x := &Transaction{
		stream:   s,
		id:       t.allocTxnID(),
		name:     name,
		typeName: typeName,
		start:    startTime,
		state:    StateOpen,
		parent:   parent,
	}
	if parent != nil {
		// 子事务拿新的 sub-track，父子关系挂在 track 上
		x.trackUUID = t.allocTrackUUID()
	} else {
		x.trackUUID = s.trackUUID
	}

	x.handle = t.txnHandles.register(x)
	s.txns = append(s.txns, x)

	if parent != nil {
		if err := t.emitChildDescriptor(x); err != nil {
			return nil, err
		}
	}

	t.setOK()
	return x, nil
}

// Close closes the stream. Every still-open transaction is closed with its
// own start time as a best-effort end time. That yields zero-duration
// slices, so each one is logged rather than silently folded.
func (s *Stream) Close() error {
	if s == nil {
		return &Error{Code: ErrNullHandle}
	}
	if s.state != StateOpen {
		return s.trace.setErr(newErr(ErrAlreadyEnded, "stream %q", s.name))
	}
	for _, x := range s.txns {
		if x.state == StateOpen {
			logrus.Warnf("DVTT closed stream %q with open transaction %q, recording zero duration", s.name, x.name)
			if err := x.Close(x.start); err != nil {
				return err
			}
		}
	}
	s.state = StateClosed
	return nil
}

// Free releases the stream, closing it first if still open. The handle no
// longer resolves afterwards. Repeated frees are no-ops reported as
// already-ended.
func (s *Stream) Free() error {
	if s == nil {
		return &Error{Code: ErrNullHandle}
	}
	if s.state == StateFreed {
		return s.trace.setErr(newErr(ErrAlreadyEnded, "stream %q already freed", s.name))
	}
	if s.state == StateOpen {
		if err := s.Close(); err != nil {
			return err
		}
	}
	s.state = StateFreed
	return nil
}

// LinkTransaction associates this stream with a transaction through a fresh
// flow identifier. The id is kept on both endpoints: it rides the wire on
// the transaction's events, and the stream records it so the pairing stays
// queryable (streams themselves emit no events to carry it).
func (s *Stream) LinkTransaction(x *Transaction, linkType LinkType, relationName string) error {
	if s == nil || x == nil {
		return &Error{Code: ErrNullHandle}
	}
	t := s.trace
	if x.state == StateFreed {
		return t.setErr(newErr(ErrAlreadyEnded, "transaction %q already freed", x.name))
	}
	flowID := t.allocFlowID()
	s.flowIDs = append(s.flowIDs, flowID)
	x.flowIDs = append(x.flowIDs, flowID)
	t.setOK()
	return nil
}

// FlowIDs returns the flow identifiers linked to this stream.
func (s *Stream) FlowIDs() []uint64 {
	out := make([]uint64, len(s.flowIDs))
	copy(out, s.flowIDs)
	return out
}
