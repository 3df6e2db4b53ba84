// Package content implements the chunked pull pipeline: the Chunk unit with
// its ownership rules, the Source contract shared by the blocking and the
// event-driven driving discipline, and the decoder source that drives a codec
// adapter over an upstream source.
package content

import "sync/atomic"

// Chunk is one bounded unit of a byte stream. A chunk is produced once,
// consumed once and released once. Zero-length chunks carry stream control:
// with Last set they mark end of stream, without it they mean "no data
// available yet, try again" so that a pull may legitimately yield nothing
// without ending the stream. A chunk with Err set is terminal.
type Chunk struct {
	Data []byte
	Last bool
	Err  error

	free *releaser
}

// releaser guards the release hook so that releasing twice is a no-op. It is
// shared by all copies of a chunk value.
type releaser struct {
	done atomic.Bool
	f    func()
}

// Bytes returns a chunk over p without a release hook. The producer keeps
// ownership of the backing array.
func Bytes(p []byte, last bool) Chunk {
	return Chunk{Data: p, Last: last}
}

// Own returns a chunk over p whose Release invokes free exactly once,
// typically returning the backing buffer to a pool.
func Own(p []byte, last bool, free func()) Chunk {
	return Chunk{Data: p, Last: last, free: &releaser{f: free}}
}

// EOF returns the end of stream sentinel: no bytes, Last set.
func EOF() Chunk {
	return Chunk{Last: true}
}

// Empty returns the "no data available yet" sentinel: no bytes, stream
// continues.
func Empty() Chunk {
	return Chunk{}
}

// Fail returns a terminal error chunk.
func Fail(err error) Chunk {
	return Chunk{Err: err}
}

// IsEmpty reports whether c is the "try again" sentinel.
func (c Chunk) IsEmpty() bool {
	return len(c.Data) == 0 && !c.Last && c.Err == nil
}

// IsEOF reports whether c marks a clean end of stream without data.
func (c Chunk) IsEOF() bool {
	return len(c.Data) == 0 && c.Last && c.Err == nil
}

// IsTerminal reports whether no further chunks follow c.
func (c Chunk) IsTerminal() bool {
	return c.Last || c.Err != nil
}

// Release returns the backing buffer to its producer. The first call invokes
// the release hook, every further call is a no-op. Chunks without a hook,
// including the sentinels, release to nothing.
func (c Chunk) Release() {
	if c.free == nil {
		return
	}

	if c.free.done.CompareAndSwap(false, true) {
		c.free.f()
	}
}
