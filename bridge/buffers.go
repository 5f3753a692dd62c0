package bridge

import "sync"

// Boundary payloads are leased from a pool rather than freshly allocated,
// mirroring the explicit free contract of the calling convention: the layer
// never assumes the foreign caller's memory management reclaims them.

var textPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// leaseText copies src into a pooled buffer and returns it.
func leaseText(src string) []byte {
	bp := textPool.Get().(*[]byte)
	buf := append((*bp)[:0], src...)
	*bp = buf
	return buf
}

// FreeText returns a payload previously handed out by this package to the
// pool. Freeing nil is a no-op. The payload must not be used after the
// call.
func FreeText(payload []byte) {
	if payload == nil {
		return
	}
	buf := payload[:0]
	textPool.Put(&buf)
}
