package tracer

import (
	"bytes"
	"context"
	"math"
	"testing"

	r "github.com/stretchr/testify/require"
	attr "go.opentelemetry.io/otel/attribute"
)

func TestTrace_StdoutExporterMirrorsSpans(t *testing.T) {
	tr, _ := mockNewTrace(t)

	var spans bytes.Buffer
	shutdown, err := tr.InitStdoutExporter(&spans)
	r.NoError(t, err)

	s, err := tr.OpenStream("bus", "", "bus_if")
	r.NoError(t, err)
	x, err := s.OpenTransaction("READ", 100, "bus_read", nil)
	r.NoError(t, err)
	r.NoError(t, x.AddUint64("addr", 0x40, RadixHex))
	r.NoError(t, x.Close(150))

	r.NoError(t, tr.Close())
	r.NoError(t, shutdown(context.Background()))

	out := spans.String()
	r.Contains(t, out, "READ")
	r.Contains(t, out, "addr[hex]")
	r.Contains(t, out, "bus")
}

func TestTrace_DummyExporter(t *testing.T) {
	tr, buf := mockNewTrace(t)
	shutdown, err := tr.InitDummyExporter()
	r.NoError(t, err)

	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)
	before := buf.Len()
	r.NoError(t, x.Close(2))
	// 镜像不改变 Perfetto 字节流本身
	after := buf.Len()
	r.Greater(t, after, before)

	r.NoError(t, shutdown(context.Background()))
}

func TestMirrorAttrs_LargeUnsignedKeepsValue(t *testing.T) {
	tr, _ := mockNewTrace(t)
	s, _ := tr.OpenStream("s", "", "")
	x, _ := s.OpenTransaction("X", 1, "", nil)
	r.NoError(t, x.AddUint64("big", math.MaxUint64, RadixHex))
	r.NoError(t, x.AddUint64("small", 7, RadixDec))

	kvs := map[attr.Key]attr.Value{}
	for _, kv := range mirrorAttrs(x) {
		kvs[kv.Key] = kv.Value
	}

	// 超出 int64 的值不允许回绕成负数
	r.Equal(t, attr.STRING, kvs["big[hex]"].Type())
	r.Equal(t, "0xffffffffffffffff", kvs["big[hex]"].AsString())
	r.Equal(t, int64(7), kvs["small[dec]"].AsInt64())
}

func TestSpanIDFor_Deterministic(t *testing.T) {
	r.Equal(t, spanIDFor(7), spanIDFor(7))
	r.NotEqual(t, spanIDFor(7), spanIDFor(8))
	r.True(t, spanIDFor(1).IsValid())
}
