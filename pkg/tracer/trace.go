package tracer

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fvutils/dv-transaction-trace/pkg/config"
	"github.com/fvutils/dv-transaction-trace/pkg/wire"
)

// Trace is the top-level recording session. It exclusively owns the sink,
// all streams and transactions, and the handle registries; callers hold
// non-owning references or small integer handles.
//
// The model is single-writer and call-ordered: no internal locking besides
// the last-error slot, no buffering, no reordering. Concurrent callers must
// serialize externally.
type Trace struct {
	name      string
	filename  string
	timeUnits string
	unit      TimeUnit

	w      *wire.Writer
	closer io.Closer

	seqID   uint64
	clockID uint64

	streams []*Stream

	// 单调计数器，从 1 开始，trace 存活期内不复用
	nextTrackUUID uint64
	nextTxnID     uint64
	nextFlowID    uint64

	streamHandles *registry[*Stream]
	txnHandles    *registry[*Transaction]

	mirror *otelMirror

	closed bool
	// set after a sink write failure; no coherent output is possible past
	// a partial record, so the trace refuses further emission
	dead bool

	muErr   sync.Mutex
	lastErr Code
}

// New opens a trace over an arbitrary sink. The clock-reference packet is
// emitted immediately, before any stream exists.
func New(w io.Writer, name string, timeUnits string) (*Trace, error) {
	if w == nil {
		return nil, newErr(ErrNullPointer, "nil sink")
	}
	if name == "" {
		return nil, newErr(ErrInvalidName, "empty trace name")
	}

	unit, err := ParseTimeUnit(timeUnits)
	if err != nil {
		logrus.Warnf("DVTT couldn't parse time units %q, falling back to %s", timeUnits, config.DefaultTimeUnits)
		unit, _ = ParseTimeUnit(config.DefaultTimeUnits)
	}

	t := &Trace{
		name:          name,
		timeUnits:     timeUnits,
		unit:          unit,
		w:             wire.NewWriter(w),
		seqID:         config.DefaultSequenceID,
		clockID:       config.DefaultClockID,
		nextTrackUUID: 1,
		nextTxnID:     1,
		nextFlowID:    1,
		streamHandles: newRegistry[*Stream](),
		txnHandles:    newRegistry[*Transaction](),
	}

	if err := t.emitClockSnapshot(); err != nil {
		return nil, err
	}

	t.setOK()
	return t, nil
}

// Create opens a trace writing to a new file.
func Create(filename string, name string, timeUnits string) (*Trace, error) {
	f, err := os.Create(filename)
	if err != nil {
		logrus.WithError(err).Errorf("DVTT couldn't open trace file %s", filename)
		return nil, newErr(ErrMemory, "open %s: %v", filename, err)
	}
	t, terr := New(f, name, timeUnits)
	if terr != nil {
		f.Close()
		return nil, terr
	}
	t.filename = filename
	t.closer = f
	return t, nil
}

func (t *Trace) Name() string      { return t.name }
func (t *Trace) Filename() string  { return t.filename }
func (t *Trace) TimeUnits() string { return t.timeUnits }
func (t *Trace) Unit() TimeUnit    { return t.unit }

// Streams returns the streams owned by this trace, in creation order.
func (t *Trace) Streams() []*Stream {
	out := make([]*Stream, len(t.streams))
	copy(out, t.streams)
	return out
}

// OpenStream creates and opens a stream; its track descriptor is emitted
// before any transaction can be opened on it. scope and typeName may be
// empty.
func (t *Trace) OpenStream(name string, scope string, typeName string) (*Stream, error) {
	if t == nil {
		return nil, &Error{Code: ErrNullHandle}
	}
	if t.closed || t.dead {
		return nil, t.setErr(newErr(ErrNotInitialized, "trace %s is not recording", t.name))
	}
	if name == "" {
		return nil, t.setErr(newErr(ErrInvalidName, "empty stream name"))
	}

	s := &Stream{
		trace:     t,
		name:      name,
		scope:     scope,
		typeName:  typeName,
		trackUUID: t.allocTrackUUID(),
		state:     StateOpen,
	}
	s.handle = t.streamHandles.register(s)
	t.streams = append(t.streams, s)

	if err := t.emitStreamDescriptor(s); err != nil {
		return nil, err
	}

	logrus.Debugf("DVTT opened stream %q track=%d handle=%d", name, s.trackUUID, s.handle)
	t.setOK()
	return s, nil
}

// Close closes the trace: every still-open stream is closed (which cascades
// to its transactions), then the sink is finalized. Idempotent.
func (t *Trace) Close() error {
	if t == nil || t.closed {
		return nil
	}
	for _, s := range t.streams {
		if s.state == StateOpen {
			if err := s.Close(); err != nil {
				logrus.WithError(err).Warnf("DVTT couldn't close stream %q", s.name)
			}
		}
	}
	t.closed = true
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			logrus.WithError(err).Errorf("DVTT couldn't finalize trace %s", t.name)
			return t.setErr(newErr(ErrMemory, "finalize: %v", err))
		}
	}
	return nil
}

// StreamFromHandle resolves a stream handle. Returns nil for handles never
// issued, already freed, or belonging to a different trace.
func (t *Trace) StreamFromHandle(h int) *Stream {
	if t == nil || h == 0 {
		return nil
	}
	s, ok := t.streamHandles.resolve(h)
	if !ok || s.state == StateFreed {
		return nil
	}
	return s
}

// TransactionFromHandle resolves a transaction handle, with the same
// not-found rules as StreamFromHandle.
func (t *Trace) TransactionFromHandle(h int) *Transaction {
	if t == nil || h == 0 {
		return nil
	}
	x, ok := t.txnHandles.resolve(h)
	if !ok || x.state == StateFreed {
		return nil
	}
	return x
}

// LastError is the compatibility shim for handle-based callers; new code
// should use the explicit error returns.
func (t *Trace) LastError() Code {
	t.muErr.Lock()
	defer t.muErr.Unlock()
	return t.lastErr
}

func (t *Trace) setErr(e *Error) error {
	t.muErr.Lock()
	t.lastErr = e.Code
	t.muErr.Unlock()
	return e
}

func (t *Trace) setOK() {
	t.muErr.Lock()
	t.lastErr = OK
	t.muErr.Unlock()
}

// allocators: four independent monotonic counters plus the flow counter,
// each starting at 1 (handles live inside the registries)

func (t *Trace) allocTrackUUID() uint64 {
	v := t.nextTrackUUID
	t.nextTrackUUID++
	return v
}

func (t *Trace) allocTxnID() uint64 {
	v := t.nextTxnID
	t.nextTxnID++
	return v
}

func (t *Trace) allocFlowID() uint64 {
	v := t.nextFlowID
	t.nextFlowID++
	return v
}
