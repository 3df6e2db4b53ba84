package content

import (
	"github.com/zalando/inflow/codec"
)

// decoderSource drives a codec adapter over an upstream source, yielding
// decoded chunks under the same Source contract. The whole payload is never
// materialized: each pull moves at most one upstream chunk into the codec and
// at most one decoded buffer out of it.
type decoderSource struct {
	up    Source
	dec   codec.Decoder
	upEOF bool
	term  *Chunk
}

// NewDecoderSource composes up with dec. The returned source owns both: the
// codec is released and the upstream canceled exactly once, on completion,
// error or Cancel, whichever comes first.
func NewDecoderSource(up Source, dec codec.Decoder) Source {
	return &decoderSource{up: up, dec: dec}
}

func (s *decoderSource) Next() Chunk {
	if s.term != nil {
		return *s.term
	}

	for {
		switch s.dec.Status() {
		case codec.Done:
			c, done := s.drainTail()
			if done {
				return c
			}

		case codec.HasOutput:
			p := s.dec.Drain()
			if s.dec.Status() == codec.Done && s.upEOF {
				s.finish(EOF())
				return Bytes(p, true)
			}

			return Bytes(p, false)

		case codec.NeedsInput:
			c, done := s.feedOne()
			if done {
				return c
			}

		case codec.Failed:
			return s.fail(s.dec.Err())
		}
	}
}

// drainTail handles pulls after the codec finished: upstream is drained
// without feeding, trailing bytes are discarded. The second return value is
// false when the caller's loop should re-examine the codec, which cannot
// happen here but keeps the shape of the state handlers uniform.
func (s *decoderSource) drainTail() (Chunk, bool) {
	if s.upEOF {
		s.finish(EOF())
		return *s.term, true
	}

	c := s.up.Next()
	if c.Err != nil {
		return s.fail(c.Err), true
	}

	c.Release()
	if c.Last {
		s.upEOF = true
		s.finish(EOF())
		return *s.term, true
	}

	return Empty(), true
}

// feedOne pulls exactly one upstream chunk and feeds it to the codec. It
// returns done=false when the loop should continue with the codec's new
// status.
func (s *decoderSource) feedOne() (Chunk, bool) {
	if s.upEOF {
		// the end of input was already fed and the codec still wants
		// more: truncated stream
		return s.fail(&codec.CorruptError{Encoding: "input", Err: codec.ErrTruncated}), true
	}

	c := s.up.Next()
	if c.Err != nil {
		return s.fail(c.Err), true
	}

	if c.IsEmpty() {
		// propagate "try again" without feeding
		return Empty(), true
	}

	if c.Last {
		s.upEOF = true
	}

	err := s.dec.Feed(c.Data, c.Last)
	c.Release()
	if err != nil {
		return s.fail(err), true
	}

	return Chunk{}, false
}

// finish records the clean terminal chunk and releases codec and upstream.
func (s *decoderSource) finish(term Chunk) {
	s.dec.Close()
	s.up.Cancel(nil)
	s.term = &term
}

// fail records the terminal error chunk, sticky for all further pulls, and
// releases codec and upstream.
func (s *decoderSource) fail(err error) Chunk {
	s.dec.Close()
	s.up.Cancel(err)
	term := Fail(err)
	s.term = &term
	return term
}

func (s *decoderSource) Demand(f func()) {
	if s.term != nil {
		f()
		return
	}

	if s.dec.Status() == codec.HasOutput || s.dec.Status() == codec.Failed {
		f()
		return
	}

	s.up.Demand(f)
}

func (s *decoderSource) Cancel(err error) {
	if s.term != nil {
		return
	}

	if err == nil {
		err = ErrCanceled
	}

	s.fail(err)
}
