// Package wire holds helpers shared by the three independent datagram
// protocols (auth, matchmaking, game): fixed-length NUL-padded string
// copying and the packet-size guard every buildPacket enforces.
package wire

import "fmt"

// CopyCString truncates src to fit dst (leaving room for the terminating
// NUL) and always NUL-terminates the result. It never writes past
// len(dst).
func CopyCString(dst []byte, src string) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) == 0 {
		return
	}
	n := len(dst) - 1
	if len(src) < n {
		n = len(src)
	}
	copy(dst[:n], src[:n])
}

// GoString returns the Go string held in a NUL-padded fixed-size buffer.
func GoString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ErrPayloadMismatch is returned by BuildPacket when the caller passes a
// nil payload but a nonzero payload size.
var ErrPayloadMismatch = fmt.Errorf("wire: payloadSize > 0 but payload is nil")
