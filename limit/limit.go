// Package limit bounds the decoded content stream. Decompression can expand
// wire bytes by orders of magnitude, so the guard observes the stream after
// the transform, counting decoded bytes and parsed fields, and aborts before
// a configured ceiling is exceeded.
package limit

import (
	"fmt"

	"github.com/zalando/inflow/content"
)

// Hardcoded ceilings applied when no other configuration layer provides a
// value.
const (
	DefaultMaxLength = 200000
	DefaultMaxFields = 1000
)

// Kind identifies the ceiling that was breached.
type Kind int

const (
	// KindSize means the cumulative decoded byte ceiling.
	KindSize Kind = iota

	// KindCount means the field count ceiling.
	KindCount
)

func (k Kind) String() string {
	if k == KindCount {
		return "count"
	}

	return "size"
}

// ExceededError reports a breached ceiling. It is fatal for the stream but
// expected at the boundary: callers should map it to a "request too large"
// class response, not treat it as a server failure.
type ExceededError struct {
	Kind  Kind
	Limit int64
}

func (e *ExceededError) Error() string {
	if e.Kind == KindCount {
		return fmt.Sprintf("form with too many keys, max: %d", e.Limit)
	}

	return fmt.Sprintf("content size exceeds max: %d", e.Limit)
}

// Limits are the ceilings of one stream. Zero or negative values mean
// unbounded: a non-positive ceiling is an explicit opt-out, never "reject
// everything".
type Limits struct {
	// MaxLength bounds the cumulative decoded bytes.
	MaxLength int64

	// MaxFields bounds the number of parsed fields or keys.
	MaxFields int
}

// Resolve picks the ceilings for one stream by precedence: explicit per-call
// values over the per-context configuration over the server-wide default. A
// nil layer means "not configured" and falls through; when no layer is
// configured the hardcoded defaults apply.
func Resolve(perCall, perContext, server *Limits) Limits {
	for _, l := range []*Limits{perCall, perContext, server} {
		if l != nil {
			return *l
		}
	}

	return Limits{MaxLength: DefaultMaxLength, MaxFields: DefaultMaxFields}
}

// Guard tracks the cumulative decoded size and field count of one stream
// against its resolved ceilings. Counters never decrease and are checked
// before data is exposed downstream. A guard belongs to a single stream and
// is not safe for concurrent use.
type Guard struct {
	limits Limits
	bytes  int64
	fields int
}

func NewGuard(l Limits) *Guard {
	return &Guard{limits: l}
}

// Bytes returns the decoded bytes observed so far.
func (g *Guard) Bytes() int64 { return g.bytes }

// Fields returns the fields counted so far.
func (g *Guard) Fields() int { return g.fields }

// CountField records one parsed field or key. The layer that recognizes
// fields calls it once per completed key, before acting on the key. It
// returns an ExceededError when the field ceiling is breached.
func (g *Guard) CountField() error {
	g.fields++
	if g.limits.MaxFields > 0 && g.fields > g.limits.MaxFields {
		return &ExceededError{Kind: KindCount, Limit: int64(g.limits.MaxFields)}
	}

	return nil
}

// Wrap decorates src with the byte ceiling. A chunk that would push the
// cumulative decoded size past MaxLength is released unforwarded, the wrapped
// source is canceled so held resources unwind upstream, and the guard yields
// a terminal ExceededError chunk. The consumer therefore never observes more
// than MaxLength bytes in total.
func (g *Guard) Wrap(src content.Source) content.Source {
	return &guardSource{guard: g, src: src}
}

type guardSource struct {
	guard *Guard
	src   content.Source
	term  *content.Chunk
}

func (s *guardSource) Next() content.Chunk {
	if s.term != nil {
		return *s.term
	}

	c := s.src.Next()
	if c.Err != nil {
		s.term = &c
		return c
	}

	g := s.guard
	if n := int64(len(c.Data)); n > 0 {
		if g.limits.MaxLength > 0 && g.bytes+n > g.limits.MaxLength {
			c.Release()
			err := &ExceededError{Kind: KindSize, Limit: g.limits.MaxLength}
			s.src.Cancel(err)
			term := content.Fail(err)
			s.term = &term
			return term
		}

		g.bytes += n
	}

	if c.Last {
		term := content.EOF()
		s.term = &term
	}

	return c
}

func (s *guardSource) Demand(f func()) {
	if s.term != nil {
		f()
		return
	}

	s.src.Demand(f)
}

func (s *guardSource) Cancel(err error) {
	if s.term != nil {
		return
	}

	if err == nil {
		err = content.ErrCanceled
	}

	s.src.Cancel(err)
	term := content.Fail(err)
	s.term = &term
}
