// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
)

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details and calls the provided cleanup function
// before exiting with code 1.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// Contain should be deferred inside audio device callbacks. A panic is
// counted and logged once per callback instead of tearing down the stream;
// the host keeps calling on the next period.
//
//	func onFrames(out, in []byte, n uint32) {
//		defer recovery.Contain(&faults, "playback")
//		...
//	}
func Contain(faults *atomic.Uint64, stream string) {
	if r := recover(); r != nil {
		contained(faults, stream, r)
	}
}

// ContainFunc is Contain with a hook run after a panic is recovered, e.g. to
// silence a half-written output buffer.
func ContainFunc(faults *atomic.Uint64, stream string, onPanic func()) {
	if r := recover(); r != nil {
		if onPanic != nil {
			onPanic()
		}
		contained(faults, stream, r)
	}
}

func contained(faults *atomic.Uint64, stream string, r any) {
	n := uint64(1)
	if faults != nil {
		n = faults.Add(1)
	}
	// Only the first fault carries a stack; repeats would flood the log
	if n == 1 {
		slog.Error("audio callback panic", "stream", stream, "panic", r, "stack", string(debug.Stack()))
	}
}
