package types

import "bytes"

// Wire framing constants. Every outbound chat payload is exactly FrameSize
// bytes, zero padded. Inbound lines are clamped to MaxLineBytes so a full
// frame always has room for a terminator.
const (
	FrameSize    = 1024
	MaxLineBytes = FrameSize - 1
)

// PadFrame copies line into a fresh FrameSize buffer, zero padded. Lines
// longer than FrameSize are truncated.
func PadFrame(line []byte) []byte {
	frame := make([]byte, FrameSize)
	copy(frame, line)
	return frame
}

// ClampLine bounds one received buffer to a single logical line: at most
// MaxLineBytes, and nothing past the first NUL byte. Clients that pad their
// sends to full frames and clients that send bare lines both resolve to the
// same logical line.
func ClampLine(b []byte) []byte {
	if len(b) > MaxLineBytes {
		b = b[:MaxLineBytes]
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}
