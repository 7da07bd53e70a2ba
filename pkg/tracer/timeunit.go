package tracer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeUnit is the resolution of all timestamps in a trace, kept as a
// rational nanosecond multiplier so sub-ns units ("10ps") stay exact.
type TimeUnit struct {
	// one timestamp tick = NsNum/NsDen nanoseconds
	NsNum uint64
	NsDen uint64
}

var unitScale = map[string]TimeUnit{
	"s":  {1_000_000_000, 1},
	"ms": {1_000_000, 1},
	"us": {1_000, 1},
	"ns": {1, 1},
	"ps": {1, 1_000},
	"fs": {1, 1_000_000},
}

// ParseTimeUnit parses descriptors like "1ns", "10ps", "1us".
func ParseTimeUnit(s string) (TimeUnit, error) {
	t := strings.TrimSpace(s)
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == 0 || i == len(t) {
		return TimeUnit{}, fmt.Errorf("bad time unit %q", s)
	}
	count, err := strconv.ParseUint(t[:i], 10, 64)
	if err != nil || count == 0 {
		return TimeUnit{}, fmt.Errorf("bad time unit %q", s)
	}
	scale, ok := unitScale[t[i:]]
	if !ok {
		return TimeUnit{}, fmt.Errorf("bad time unit %q", s)
	}
	return TimeUnit{NsNum: scale.NsNum * count, NsDen: scale.NsDen}, nil
}

// Duration converts a simulation timestamp to wall-clock duration.
func (u TimeUnit) Duration(ts uint64) time.Duration {
	return time.Duration(ts * u.NsNum / u.NsDen)
}
