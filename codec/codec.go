// Package codec wraps stateful decompression engines behind a uniform status
// protocol, so that the streaming pipeline can drive any engine through the
// same four observable states without knowing its byte format.
package codec

import (
	"errors"
	"fmt"
)

// Status is the observable state of a decoder. The set is closed: an engine
// parks in exactly one of these between adapter calls, internal engine steps
// are never visible to the caller.
type Status int

const (
	// NeedsInput means the decoder cannot make progress without more
	// compressed bytes. Feed is the only legal call.
	NeedsInput Status = iota

	// HasOutput means decoded bytes are ready. Drain is the only legal
	// call.
	HasOutput

	// Done means the compressed stream ended cleanly. Terminal.
	Done

	// Failed means the decoder reported corrupt input or an internal
	// failure. Terminal, Err holds the cause.
	Failed
)

func (s Status) String() string {
	switch s {
	case NeedsInput:
		return "needs-input"
	case HasOutput:
		return "has-output"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Decoder is the adapter over one decompression engine instance. A decoder
// serves a single stream, is not safe for concurrent use, and must be closed
// on every exit path.
type Decoder interface {
	// Status returns the state the engine is parked in.
	Status() Status

	// Feed hands compressed bytes to the engine and runs it until it
	// parks at the next observable status. Legal only in NeedsInput.
	// last marks the end of the compressed stream: after a last feed the
	// decoder never returns to NeedsInput, truncated input surfaces as
	// Failed instead. The engine keeps its own copy of p, the caller may
	// reuse or release p as soon as Feed returns.
	Feed(p []byte, last bool) error

	// Drain returns the decoded bytes the engine currently holds and runs
	// it to the next observable status. Legal only in HasOutput.
	Drain() []byte

	// Err returns the terminal error when the status is Failed.
	Err() error

	// Close releases the engine exactly once. It is safe to call in any
	// state, from any exit path, and repeatedly.
	Close() error
}

// Options configure an engine adapter.
type Options struct {
	// BufferSize is the size of the decoded output buffer drained from
	// the engine per step. Values <= 0 select the default of 8192.
	BufferSize int
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return defaultBufferSize
	}

	return o.BufferSize
}

const defaultBufferSize = 8192

// ErrUnsupportedEncoding is returned by ForEncoding for unknown content
// coding tokens.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

var errDecoderClosed = errors.New("decoder closed")

// ErrTruncated reports input that ended before the compressed stream was
// complete.
var ErrTruncated = errors.New("truncated stream")

// CorruptError reports that an engine rejected its input. The decoder is not
// trustworthy afterwards, the stream is torn down without retry.
type CorruptError struct {
	Encoding string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt %s stream: %v", e.Encoding, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// InitError reports that an engine could not be initialized. It surfaces from
// the adapter constructor, before any chunk is pulled.
type InitError struct {
	Encoding string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s decoder: %v", e.Encoding, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ProtocolError reports a call that is illegal in the decoder's current
// status, e.g. feeding a Done decoder. It indicates a bug in the driver, not
// in the input.
type ProtocolError struct {
	Op     string
	Status Status
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("codec protocol violation: %s in status %v", e.Op, e.Status)
}
