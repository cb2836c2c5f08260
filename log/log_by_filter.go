package log

import (
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// LoggerFilter decides whether a sampled record is written.
type LoggerFilter interface {
	check() bool
}

// EveryN lets one record in N through, starting with the first. A nil or
// zero EveryN passes everything.
// Safe for concurrent use, so several mangling workers can share one sampler.
type EveryN struct {
	N       uint32
	counter uint32
}

func (e *EveryN) check() bool {
	if e == nil || e.N == 0 {
		return true
	}
	c := atomic.AddUint32(&e.counter, 1)
	return (c-1)%e.N == 0
}

// Seen returns how many records were offered to the sampler.
func (e *EveryN) Seen() uint32 {
	return atomic.LoadUint32(&e.counter)
}

var _ LoggerFilter = &EveryN{}

type ifCondition bool

func (i ifCondition) check() bool { return bool(i) }

var _ LoggerFilter = ifCondition(true)

func writeBy(filter LoggerFilter, level slog.Level, msg string, ctx []interface{}) {
	if filter == nil || filter.check() {
		Root().Write(level, msg, ctx...)
	}
}

func TraceBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, LevelTrace, msg, ctx)
}

func DebugBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, slog.LevelDebug, msg, ctx)
}

func InfoBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, slog.LevelInfo, msg, ctx)
}

func DebugIf(condition bool, msg string, ctx ...interface{}) {
	writeBy(ifCondition(condition), slog.LevelDebug, msg, ctx)
}

func WarnIf(condition bool, msg string, ctx ...interface{}) {
	writeBy(ifCondition(condition), slog.LevelWarn, msg, ctx)
}
