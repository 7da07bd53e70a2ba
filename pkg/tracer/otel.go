package tracer

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	attr "go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktr "go.opentelemetry.io/otel/sdk/trace"
	tr "go.opentelemetry.io/otel/trace"
)

// otelMirror re-emits every closed transaction as an OpenTelemetry span.
// Purely additive: the Perfetto byte stream is identical with or without
// it. Simulation timestamps become wall-clock offsets from a fixed epoch
// using the trace's time-unit multiplier.
type otelMirror struct {
	provider *sdktr.TracerProvider
	tracer   tr.Tracer
	traceID  tr.TraceID
	epoch    time.Time
	unit     TimeUnit
}

// InitGRPCExporter mirrors transactions to an OTLP/gRPC collector.
func (t *Trace) InitGRPCExporter(shutdownCtx context.Context) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(shutdownCtx)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC exporter: %w", err)
	}

	provider := sdktr.NewTracerProvider(
		sdktr.WithBatcher(exporter),
		sdktr.WithResource(resource.Empty()))

	t.initMirror(provider)
	return provider.Shutdown, nil
}

// InitStdoutExporter mirrors transactions as pretty-printed JSON spans.
// Pass nil to write to stdout.
func (t *Trace) InitStdoutExporter(w io.Writer) (func(context.Context) error, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}

	provider := sdktr.NewTracerProvider(
		sdktr.WithBatcher(exporter),
		sdktr.WithResource(resource.Empty()))

	t.initMirror(provider)
	return provider.Shutdown, nil
}

// InitDummyExporter only for testing purposes
func (t *Trace) InitDummyExporter() (func(context.Context) error, error) {
	provider := sdktr.NewTracerProvider(
		sdktr.WithResource(resource.NewSchemaless(attr.Bool("debug", true))),
	)
	t.initMirror(provider)
	return provider.Shutdown, nil
}

func (t *Trace) initMirror(provider *sdktr.TracerProvider) {
	h := fnv.New128a()
	h.Write([]byte(t.name))
	var traceID tr.TraceID
	h.Sum(traceID[:0])

	t.mirror = &otelMirror{
		provider: provider,
		tracer:   provider.Tracer(fmt.Sprintf("dvtt/%s", t.name)),
		traceID:  traceID,
		epoch:    time.Now(),
		unit:     t.unit,
	}
}

// spanIDFor derives a stable span id from the transaction's numeric id so
// the parent relation survives close-order inversion (children usually
// close before their parents).
func spanIDFor(id uint64) tr.SpanID {
	var sid tr.SpanID
	binary.BigEndian.PutUint64(sid[:], id)
	return sid
}

// record mirrors one closed transaction. Grafted from the Perfetto path at
// transaction close; failures only log, never disturb the recorder.
func (m *otelMirror) record(x *Transaction) {
	startOpts := []tr.SpanStartOption{
		tr.WithTimestamp(m.epoch.Add(m.unit.Duration(x.start))),
		tr.WithAttributes(mirrorAttrs(x)...),
	}

	// 用确定性 SpanContext 挂 parent，参考离线聚合的做法
	parentSpanID := tr.SpanID{}
	traceFlags := tr.TraceFlags(0x01)
	if x.parent != nil {
		parentSpanID = spanIDFor(x.parent.id)
	} else {
		traceFlags = 0x00
	}

	parentSpanCtx := tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    m.traceID,
		SpanID:     parentSpanID,
		TraceFlags: traceFlags,
	})

	ctx := tr.ContextWithSpanContext(context.Background(), parentSpanCtx)
	_, span := m.tracer.Start(ctx, x.name, startOpts...)
	span.End(tr.WithTimestamp(m.epoch.Add(m.unit.Duration(x.end))))

	logrus.Debugf("DVTT mirrored transaction %q as span %s", x.name, span.SpanContext().SpanID())
}

func mirrorAttrs(x *Transaction) []attr.KeyValue {
	kvs := make([]attr.KeyValue, 0, len(x.attrs)+2)
	kvs = append(kvs, attr.String("stream", x.stream.name))
	if x.typeName != "" {
		kvs = append(kvs, attr.String("type", x.typeName))
	}
	for i := range x.attrs {
		a := &x.attrs[i]
		switch a.Type {
		case AttrUint64:
			if a.U64 > math.MaxInt64 {
				// int64 装不下，保值优先，退化成 hex 文本
				kvs = append(kvs, attr.String(a.Name, "0x"+strconv.FormatUint(a.U64, 16)))
			} else {
				kvs = append(kvs, attr.Int64(a.Name, int64(a.U64)))
			}
		case AttrInt64:
			kvs = append(kvs, attr.Int64(a.Name, a.I64))
		case AttrDouble:
			kvs = append(kvs, attr.Float64(a.Name, a.F64))
		case AttrString, AttrBitstring:
			kvs = append(kvs, attr.String(a.Name, a.Str))
		case AttrBlob:
			kvs = append(kvs, attr.String(a.Name, blobToString(a.Blob)))
		}
	}
	return kvs
}
