// Package form parses application/x-www-form-urlencoded content from a chunk
// stream, applying decoded size and key count ceilings while the stream is
// consumed. The undecoded payload is never materialized: chunks are parsed
// and released as they arrive.
//
// Parsing semantics follow net/url.ParseQuery: pairs separated by '&', keys
// and values percent-decoded with '+' as space, semicolon separators
// rejected.
package form

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/zalando/inflow/codec"
	"github.com/zalando/inflow/content"
	"github.com/zalando/inflow/limit"
	"github.com/zalando/inflow/logging"
	"github.com/zalando/inflow/metrics"
)

var errSemicolon = errors.New("invalid semicolon separator in query")

// Options configure one parse. The zero value applies the hardcoded default
// ceilings and buffer size.
type Options struct {
	// Limits are explicit per-call ceilings, taking precedence over
	// ContextLimits and ServerLimits.
	Limits *limit.Limits

	// ContextLimits are the ceilings configured for the surrounding
	// context, e.g. a virtual host.
	ContextLimits *limit.Limits

	// ServerLimits are the server-wide default ceilings.
	ServerLimits *limit.Limits

	// BufferSize is the read and codec buffer size in bytes. Values <= 0
	// select the default.
	BufferSize int

	// Metrics receives pipeline measurements. When nil, metrics are
	// discarded.
	Metrics metrics.Metrics

	// Log receives parse failure details at debug level. When nil, the
	// standard logger is used.
	Log logging.Logger
}

func (o Options) metrics() metrics.Metrics {
	if o.Metrics == nil {
		return metrics.Void
	}

	return o.Metrics
}

func (o Options) logger() logging.Logger {
	if o.Log == nil {
		return logging.Default
	}

	return o.Log
}

// parser accumulates key/value pairs from decoded chunks. It is the single
// step machine behind both the blocking and the non-blocking entry point.
type parser struct {
	src     content.Source
	guard   *limit.Guard
	values  url.Values
	pending []byte
}

func newParser(src content.Source, o Options) *parser {
	g := limit.NewGuard(limit.Resolve(o.Limits, o.ContextLimits, o.ServerLimits))
	return &parser{
		src:    g.Wrap(src),
		guard:  g,
		values: url.Values{},
	}
}

// step consumes one chunk. waiting means no data was available yet and the
// caller should park until the source signals demand readiness.
func (p *parser) step() (done, waiting bool, err error) {
	c := p.src.Next()
	if c.Err != nil {
		return false, false, c.Err
	}

	if c.IsEmpty() {
		return false, true, nil
	}

	perr := p.consume(c.Data)
	c.Release()
	if perr != nil {
		p.src.Cancel(perr)
		return false, false, perr
	}

	if c.Last {
		if err := p.flushPair(); err != nil {
			p.src.Cancel(err)
			return false, false, err
		}

		return true, false, nil
	}

	return false, false, nil
}

func (p *parser) consume(data []byte) error {
	for _, b := range data {
		switch b {
		case ';':
			return errSemicolon
		case '&':
			if err := p.flushPair(); err != nil {
				return err
			}
		default:
			p.pending = append(p.pending, b)
		}
	}

	return nil
}

// flushPair decodes and stores the pending pair. The key is counted against
// the field ceiling before the map grows. Empty segments between separators
// are skipped without counting, like in net/url.
func (p *parser) flushPair() error {
	if len(p.pending) == 0 {
		return nil
	}

	pair := string(p.pending)
	p.pending = p.pending[:0]

	if err := p.guard.CountField(); err != nil {
		return err
	}

	key, value, _ := strings.Cut(pair, "=")
	k, err := url.QueryUnescape(key)
	if err != nil {
		return err
	}

	v, err := url.QueryUnescape(value)
	if err != nil {
		return err
	}

	p.values[k] = append(p.values[k], v)
	return nil
}

// Parse drives src to completion under the blocking discipline and returns
// the parsed values. When the source yields no data yet, Parse parks until
// the source signals demand readiness or ctx is done. Canceling ctx cancels
// the stream.
func Parse(ctx context.Context, src content.Source, o Options) (url.Values, error) {
	p := newParser(src, o)
	start := time.Now()

	for {
		done, waiting, err := p.step()
		switch {
		case err != nil:
			return nil, report(o, p, start, err)
		case done:
			return p.values, report(o, p, start, nil)
		case waiting:
			ready := make(chan struct{})
			p.src.Demand(func() { close(ready) })

			select {
			case <-ready:
			case <-ctx.Done():
				p.src.Cancel(ctx.Err())
				return nil, report(o, p, start, ctx.Err())
			}
		}
	}
}

// ParseAsync drives src under the non-blocking discipline: it returns
// immediately and invokes cb exactly once with the same result Parse would
// produce for the same input. The continuation runs on whatever goroutine
// signals the source's demand readiness.
func ParseAsync(src content.Source, o Options, cb func(url.Values, error)) {
	p := newParser(src, o)
	start := time.Now()

	var run func()
	run = func() {
		for {
			done, waiting, err := p.step()
			switch {
			case err != nil:
				cb(nil, report(o, p, start, err))
				return
			case done:
				cb(p.values, report(o, p, start, nil))
				return
			case waiting:
				p.src.Demand(run)
				return
			}
		}
	}

	run()
}

// report records the outcome of one parse and passes err through.
func report(o Options, p *parser, start time.Time, err error) error {
	m := o.metrics()
	m.IncDecodedBytes(p.guard.Bytes())
	m.MeasureParse(start)

	var limitErr *limit.ExceededError
	var corruptErr *codec.CorruptError
	switch {
	case err == nil:
		m.IncFormsParsed()
	case errors.As(err, &limitErr):
		m.IncLimitExceeded(limitErr.Kind.String())
		o.logger().Debugf("form rejected: %v", err)
	case errors.As(err, &corruptErr):
		m.IncCodecError(corruptErr.Encoding)
		o.logger().Debugf("form discarded: %v", err)
	default:
		o.logger().Debugf("form parse failed: %v", err)
	}

	return err
}
