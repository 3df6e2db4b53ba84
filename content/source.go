package content

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

const defaultBufferSize = 8192

// ErrCanceled is the terminal error of a stream canceled by its consumer
// without a more specific cause.
var ErrCanceled = errors.New("stream canceled")

// TransportError wraps a failure of the upstream byte producer, e.g. a broken
// request body read. It is fatal for the stream and never retried here.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Source produces a byte stream as a sequence of chunks on demand.
//
// At most one pull may be outstanding per source, there is no speculative
// production, and chunks arrive in the order they were produced. After a
// terminal chunk every further Next returns an equivalent terminal chunk, so
// generic consumers can drain repeatedly without re-entering producer logic.
//
// A source serves a single stream and is not safe for concurrent use. Both
// driving disciplines run over the same contract: a blocking caller simply
// loops over Next, a non-blocking caller treats an Empty chunk as "not ready"
// and parks via Demand.
type Source interface {
	// Next returns the next chunk. An Empty chunk means no data is
	// available yet and the stream continues.
	Next() Chunk

	// Demand registers f to be invoked exactly once when Next may produce
	// a chunk. Sources that never return Empty may invoke f synchronously.
	Demand(f func())

	// Cancel aborts the stream and releases held resources exactly once.
	// Further calls are no-ops, and further Next calls return a terminal
	// error chunk. A nil err cancels with ErrCanceled.
	Cancel(err error)
}

type readerSource struct {
	rc   io.ReadCloser
	pool sync.Pool
	once sync.Once
	term *Chunk
}

// NewReaderSource adapts an io.ReadCloser to the Source contract under the
// blocking discipline: Next blocks in Read until bytes, EOF or an error
// arrive. Read buffers are pooled and returned by chunk Release, so the
// consumer must release every data chunk. bufSize <= 0 selects the default of
// 8192 bytes.
//
// The reader is closed exactly once, on EOF, read error or Cancel, whichever
// comes first.
func NewReaderSource(rc io.ReadCloser, bufSize int) Source {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	s := &readerSource{rc: rc}
	s.pool.New = func() any {
		b := make([]byte, bufSize)
		return &b
	}

	return s
}

func (s *readerSource) Next() Chunk {
	if s.term != nil {
		return *s.term
	}

	bp := s.pool.Get().(*[]byte)
	n, err := s.rc.Read(*bp)
	if err != nil && err != io.EOF {
		s.pool.Put(bp)
		s.close()
		s.term = &Chunk{Err: &TransportError{Err: err}}
		return *s.term
	}

	last := err == io.EOF
	if last {
		s.close()
		s.term = &Chunk{Last: true}
	}

	if n == 0 {
		s.pool.Put(bp)
		if last {
			return *s.term
		}

		return Empty()
	}

	return Own((*bp)[:n], last, func() { s.pool.Put(bp) })
}

// Demand invokes f synchronously: a blocking reader is always ready to be
// pulled.
func (s *readerSource) Demand(f func()) { f() }

func (s *readerSource) Cancel(err error) {
	if s.term != nil {
		return
	}

	if err == nil {
		err = ErrCanceled
	}

	s.close()
	s.term = &Chunk{Err: err}
}

func (s *readerSource) close() {
	s.once.Do(func() { s.rc.Close() })
}
