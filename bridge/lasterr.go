package bridge

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Last-error messages are scoped per goroutine, the Go rendition of the
// boundary convention's per-thread error slot: a caller that sees a failure
// sentinel reads the message from the same goroutine that made the call,
// without racing against other callers. Setting overwrites, reading does
// not clear.
var lastErrors sync.Map // goroutine id -> string

func setLastError(message string) {
	lastErrors.Store(goroutineID(), message)
}

func clearLastError() {
	lastErrors.Delete(goroutineID())
}

// LastError returns the most recent failure message recorded for the
// calling goroutine, or the empty string if none.
func LastError() string {
	if msg, ok := lastErrors.Load(goroutineID()); ok {
		return msg.(string)
	}
	return ""
}

// goroutineID extracts the numeric ID from the first line of the goroutine
// stack header ("goroutine 123 [running]:"). The runtime offers no direct
// accessor; this is the standard fallback and costs one small stack dump.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	idField := header[:strings.IndexByte(header, ' ')]
	id, err := strconv.ParseUint(idField, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
