package debug

import (
	"context"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"runtime/trace"
	"strings"
	"sync"

	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

// Tracer is the process-wide execution tracer driven by --trace.
var Tracer = new(TraceHandler)

// TraceHandler owns one Go execution trace and the task every region is
// recorded under.
type TraceHandler struct {
	mu        sync.Mutex
	traceW    *os.File
	traceFile string
	ctx       context.Context
	task      *trace.Task
}

// StartGoTrace turns on tracing, writing to the given file.
func (h *TraceHandler) StartGoTrace(file string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.traceW != nil {
		return errors.New("trace already in progress")
	}
	f, err := os.Create(expandHome(file))
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	h.traceW = f
	h.traceFile = file
	h.ctx, h.task = trace.NewTask(context.Background(), "netfuser")
	log.Info("Go tracing started", "dump", h.traceFile)
	return nil
}

// StopGoTrace stops an ongoing trace.
func (h *TraceHandler) StopGoTrace() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.traceW == nil {
		return errors.New("trace not in progress")
	}
	h.task.End()
	h.task = nil
	trace.Stop()
	log.Info("Done writing Go trace", "dump", h.traceFile)
	h.traceW.Close()
	h.traceW = nil
	return nil
}

// Tracing reports whether a trace is being written.
func (h *TraceHandler) Tracing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task != nil
}

// StartRegionAuto opens a trace region and returns the function closing
// it. Without a running trace both are no-ops.
func (h *TraceHandler) StartRegionAuto(msg string) func() {
	h.mu.Lock()
	ctx, task := h.ctx, h.task
	h.mu.Unlock()
	if task == nil {
		return func() {}
	}
	region := trace.StartRegion(ctx, msg)
	return region.End
}

// expandHome expands home directory in file paths.
// ~someuser/tmp will not be expanded.
func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		home := os.Getenv("HOME")
		if home == "" {
			if usr, err := user.Current(); err == nil {
				home = usr.HomeDir
			}
		}
		if home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Clean(p)
}
