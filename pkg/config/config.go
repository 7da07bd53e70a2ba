package config

// for root
var (
	Debug = false
)

// for pkg tracer
var (
	// Perfetto BUILTIN_CLOCK_MONOTONIC
	DefaultClockID = uint64(64)

	// 单 writer 模型，整条 trace 用一个 packet sequence
	DefaultSequenceID = uint64(1)

	// fallback when the time-unit descriptor can't be parsed
	DefaultTimeUnits = "1ns"
)

// for cmd dump
var (
	// track uuid -> name 缓存上限，防止超大 trace 吃内存
	MaxTrackNameCache = 4096
)
