package form

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/zalando/inflow/codec"
	"github.com/zalando/inflow/content"
	"github.com/zalando/inflow/limit"
)

// ParseRequest parses the body of r as a urlencoded form, decoding the
// content codings declared by the Content-Encoding header and applying the
// resolved ceilings to the decoded stream. A declared Content-Length above
// the size ceiling is rejected before the body is read at all.
func ParseRequest(ctx context.Context, r *http.Request, o Options) (url.Values, error) {
	src, err := requestSource(r, o)
	if err != nil {
		return nil, err
	}

	return Parse(ctx, src, o)
}

// ParseRequestAsync is ParseRequest under the non-blocking discipline: cb is
// invoked exactly once with the same result ParseRequest would produce.
func ParseRequestAsync(r *http.Request, o Options, cb func(url.Values, error)) {
	src, err := requestSource(r, o)
	if err != nil {
		cb(nil, err)
		return
	}

	ParseAsync(src, o, cb)
}

// requestSource builds the pipeline for a request body: reader source,
// one decoder source per content coding and, inside Parse, the limit guard.
// Codings apply right to left, the last applied coding is decoded first.
func requestSource(r *http.Request, o Options) (content.Source, error) {
	l := limit.Resolve(o.Limits, o.ContextLimits, o.ServerLimits)
	if l.MaxLength > 0 && r.ContentLength > l.MaxLength {
		return nil, &limit.ExceededError{Kind: limit.KindSize, Limit: l.MaxLength}
	}

	encs := encodings(r.Header.Get("Content-Encoding"))
	src := content.NewReaderSource(r.Body, o.BufferSize)
	for i := len(encs) - 1; i >= 0; i-- {
		if encs[i] == "identity" {
			continue
		}

		dec, err := codec.ForEncoding(encs[i], codec.Options{BufferSize: o.BufferSize})
		if err != nil {
			src.Cancel(err)
			return nil, err
		}

		src = content.NewDecoderSource(src, dec)
	}

	return src, nil
}

func encodings(header string) []string {
	var encs []string
	for _, e := range strings.Split(header, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			encs = append(encs, e)
		}
	}

	return encs
}

// ErrorStatus maps err to the response status an HTTP boundary should send.
// The three failure classes stay distinguishable for callers that need their
// own mapping: limit.ExceededError, codec.CorruptError and
// content.TransportError via errors.As, codec.ErrUnsupportedEncoding via
// errors.Is.
func ErrorStatus(err error) int {
	var limitErr *limit.ExceededError
	var corruptErr *codec.CorruptError
	var transportErr *content.TransportError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &limitErr):
		if limitErr.Kind == limit.KindSize {
			return http.StatusRequestEntityTooLarge
		}

		return http.StatusBadRequest
	case errors.As(err, &corruptErr):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		// the client broke the connection mid-body
		return http.StatusBadRequest
	case errors.Is(err, codec.ErrUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadRequest
	}
}
