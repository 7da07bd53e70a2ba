package tracer

import (
	"bytes"
	"io"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fvutils/dv-transaction-trace/pkg/config"
	"github.com/fvutils/dv-transaction-trace/pkg/wire"
)

// PacketKind classifies a decoded packet.
type PacketKind int

const (
	KindOther PacketKind = iota
	KindClock
	KindTrackDescriptor
	KindSliceBegin
	KindSliceEnd
)

func (k PacketKind) String() string {
	switch k {
	case KindClock:
		return "clock"
	case KindTrackDescriptor:
		return "track"
	case KindSliceBegin:
		return "begin"
	case KindSliceEnd:
		return "end"
	default:
		return "other"
	}
}

// AnnKind tags which value a decoded annotation carries.
type AnnKind int

const (
	AnnUint AnnKind = iota
	AnnInt
	AnnDouble
	AnnString
)

// Annotation is a decoded debug annotation.
type Annotation struct {
	Name   string
	Kind   AnnKind
	Uint   uint64
	Int    int64
	Double float64
	Str    string
}

// Packet is the flattened view of one decoded TracePacket.
type Packet struct {
	Kind      PacketKind
	Timestamp uint64
	SeqID     uint64

	// clock
	ClockID uint64

	// track descriptor
	UUID       uint64
	ParentUUID uint64
	Name       string

	// track event
	TrackUUID   uint64
	Categories  []string
	Annotations []Annotation
	FlowIDs     []uint64
}

// Reader sequentially decodes a recorded trace. It backs the dump command
// and the end-to-end tests; the recorder itself never reads.
type Reader struct {
	d *wire.Reader

	// track uuid -> display name, bounded so dumping huge traces stays flat
	names *lru.Cache[uint64, string]
}

func NewReader(r io.Reader) *Reader {
	names, _ := lru.New[uint64, string](config.MaxTrackNameCache)
	return &Reader{
		d:     wire.NewReader(r),
		names: names,
	}
}

// TrackName resolves a track uuid to the display name seen in its
// descriptor, if still cached.
func (r *Reader) TrackName(uuid uint64) (string, bool) {
	return r.names.Get(uuid)
}

// Next decodes one packet. Returns io.EOF at a clean end of stream.
func (r *Reader) Next() (*Packet, error) {
	field, wt, err := r.d.Tag()
	if err != nil {
		return nil, err
	}
	if field != fTracePacket || wt != wire.TypeLen {
		return nil, newErr(ErrMemory, "unexpected top-level field %d type %d", field, wt)
	}
	body, err := r.d.Bytes()
	if err != nil {
		return nil, err
	}
	p, err := r.parsePacket(body)
	if err != nil {
		return nil, err
	}
	if p.Kind == KindTrackDescriptor {
		r.names.Add(p.UUID, p.Name)
	}
	return p, nil
}

func (r *Reader) parsePacket(body []byte) (*Packet, error) {
	p := &Packet{}
	d := wire.NewReader(bytes.NewReader(body))
	for {
		field, wt, err := d.Tag()
		if err == io.EOF {
			return p, nil
		}
		if err != nil {
			return nil, err
		}
		switch field {
		case fPacketTimestamp:
			p.Timestamp, err = d.Varint()
		case fPacketSequenceID:
			p.SeqID, err = d.Varint()
		case fPacketClockSnapshot:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				err = parseClockSnapshot(b, p)
			}
		case fPacketTrackDesc:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				err = parseTrackDescriptor(b, p)
			}
		case fPacketTrackEvent:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				err = parseTrackEvent(b, p)
			}
		default:
			err = d.Skip(wt)
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseClockSnapshot(body []byte, p *Packet) error {
	p.Kind = KindClock
	d := wire.NewReader(bytes.NewReader(body))
	for {
		field, wt, err := d.Tag()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if field == fSnapshotClocks && wt == wire.TypeLen {
			clock, err := d.Bytes()
			if err != nil {
				return err
			}
			cd := wire.NewReader(bytes.NewReader(clock))
			for {
				cf, cwt, cerr := cd.Tag()
				if cerr == io.EOF {
					break
				}
				if cerr != nil {
					return cerr
				}
				if cf == fClockID && cwt == wire.TypeVarint {
					if p.ClockID, cerr = cd.Varint(); cerr != nil {
						return cerr
					}
					continue
				}
				if cerr = cd.Skip(cwt); cerr != nil {
					return cerr
				}
			}
			continue
		}
		if err := d.Skip(wt); err != nil {
			return err
		}
	}
}

func parseTrackDescriptor(body []byte, p *Packet) error {
	p.Kind = KindTrackDescriptor
	d := wire.NewReader(bytes.NewReader(body))
	for {
		field, wt, err := d.Tag()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch field {
		case fDescUUID:
			p.UUID, err = d.Varint()
		case fDescName:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				p.Name = string(b)
			}
		case fDescParentUUID:
			p.ParentUUID, err = d.Varint()
		default:
			err = d.Skip(wt)
		}
		if err != nil {
			return err
		}
	}
}

func parseTrackEvent(body []byte, p *Packet) error {
	d := wire.NewReader(bytes.NewReader(body))
	for {
		field, wt, err := d.Tag()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch field {
		case fEventType:
			var v uint64
			if v, err = d.Varint(); err == nil {
				switch v {
				case sliceBegin:
					p.Kind = KindSliceBegin
				case sliceEnd:
					p.Kind = KindSliceEnd
				}
			}
		case fEventTrackUUID:
			p.TrackUUID, err = d.Varint()
		case fEventName:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				p.Name = string(b)
			}
		case fEventCategories:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				p.Categories = append(p.Categories, string(b))
			}
		case fEventAnnotations:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				var ann Annotation
				if ann, err = parseAnnotation(b); err == nil {
					p.Annotations = append(p.Annotations, ann)
				}
			}
		case fEventFlowIDs:
			var v uint64
			if v, err = d.Fixed64(); err == nil {
				p.FlowIDs = append(p.FlowIDs, v)
			}
		default:
			err = d.Skip(wt)
		}
		if err != nil {
			return err
		}
	}
}

func parseAnnotation(body []byte) (Annotation, error) {
	var a Annotation
	d := wire.NewReader(bytes.NewReader(body))
	for {
		field, wt, err := d.Tag()
		if err == io.EOF {
			return a, nil
		}
		if err != nil {
			return a, err
		}
		switch field {
		case fAnnName:
			var b []byte
			if b, err = d.Bytes(); err == nil {
				a.Name = string(b)
			}
		case fAnnUint:
			a.Kind = AnnUint
			a.Uint, err = d.Varint()
		case fAnnInt:
			a.Kind = AnnInt
			var v uint64
			if v, err = d.Varint(); err == nil {
				a.Int = int64(v)
			}
		case fAnnDouble:
			a.Kind = AnnDouble
			var v uint64
			if v, err = d.Fixed64(); err == nil {
				a.Double = math.Float64frombits(v)
			}
		case fAnnString:
			a.Kind = AnnString
			var b []byte
			if b, err = d.Bytes(); err == nil {
				a.Str = string(b)
			}
		default:
			err = d.Skip(wt)
		}
		if err != nil {
			return a, err
		}
	}
}
