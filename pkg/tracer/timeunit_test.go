package tracer

import (
	"testing"
	"time"

	r "github.com/stretchr/testify/require"
)

func TestParseTimeUnit(t *testing.T) {
	u, err := ParseTimeUnit("1ns")
	r.NoError(t, err)
	r.Equal(t, TimeUnit{NsNum: 1, NsDen: 1}, u)

	u, err = ParseTimeUnit("10ps")
	r.NoError(t, err)
	r.Equal(t, TimeUnit{NsNum: 10, NsDen: 1_000}, u)

	u, err = ParseTimeUnit("1us")
	r.NoError(t, err)
	r.Equal(t, TimeUnit{NsNum: 1_000, NsDen: 1}, u)

	u, err = ParseTimeUnit("2ms")
	r.NoError(t, err)
	r.Equal(t, TimeUnit{NsNum: 2_000_000, NsDen: 1}, u)
}

func TestParseTimeUnit_Rejects(t *testing.T) {
	for _, bad := range []string{"", "ns", "10", "0ns", "1sec", "-1ns"} {
		_, err := ParseTimeUnit(bad)
		r.Error(t, err, "input %q", bad)
	}
}

func TestTimeUnit_Duration(t *testing.T) {
	ns, _ := ParseTimeUnit("1ns")
	r.Equal(t, 150*time.Nanosecond, ns.Duration(150))

	// 10ps 的刻度，100 tick = 1ns
	ps, _ := ParseTimeUnit("10ps")
	r.Equal(t, time.Nanosecond, ps.Duration(100))
	r.Equal(t, time.Duration(0), ps.Duration(0))

	us, _ := ParseTimeUnit("1us")
	r.Equal(t, time.Millisecond, us.Duration(1000))
}
