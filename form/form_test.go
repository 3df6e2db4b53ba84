package form

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zalando/inflow/codec"
	"github.com/zalando/inflow/content"
	"github.com/zalando/inflow/limit"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func plainSource(body string) content.Source {
	q := content.NewQueue()
	q.Push(content.Bytes([]byte(body), false))
	q.Close()
	return q
}

func gzipSource(t *testing.T, body string) content.Source {
	t.Helper()

	q := content.NewQueue()
	q.Push(content.Bytes(gzipBytes(t, []byte(body)), false))
	q.Close()

	d, err := codec.NewGzip(codec.Options{})
	if err != nil {
		t.Fatal(err)
	}

	return content.NewDecoderSource(q, d)
}

func TestParse(t *testing.T) {
	for _, test := range []struct {
		name   string
		body   string
		expect url.Values
		err    error
	}{{
		name:   "single pair",
		body:   "foo=bar",
		expect: url.Values{"foo": []string{"bar"}},
	}, {
		name:   "multiple pairs",
		body:   "foo=bar&baz=qux&foo=2",
		expect: url.Values{"foo": []string{"bar", "2"}, "baz": []string{"qux"}},
	}, {
		name:   "percent and plus decoding",
		body:   "a+key=1%2B1%3D2&sp%20ace=%C3%BC",
		expect: url.Values{"a key": []string{"1+1=2"}, "sp ace": []string{"ü"}},
	}, {
		name:   "key without value",
		body:   "flag&foo=bar",
		expect: url.Values{"flag": []string{""}, "foo": []string{"bar"}},
	}, {
		name:   "empty segments skipped",
		body:   "&&foo=bar&&",
		expect: url.Values{"foo": []string{"bar"}},
	}, {
		name:   "empty body",
		body:   "",
		expect: url.Values{},
	}, {
		name: "semicolon rejected",
		body: "foo=bar;baz=qux",
		err:  errSemicolon,
	}} {
		t.Run(test.name, func(t *testing.T) {
			values, err := Parse(context.Background(), plainSource(test.body), Options{})
			if test.err != nil {
				if !errors.Is(err, test.err) {
					t.Fatalf("expected %v, got %v", test.err, err)
				}

				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if !cmp.Equal(values, test.expect) {
				t.Error(cmp.Diff(test.expect, values))
			}
		})
	}
}

func TestParseInvalidEscape(t *testing.T) {
	if _, err := Parse(context.Background(), plainSource("foo=%zz"), Options{}); err == nil {
		t.Error("expected error for invalid percent escape")
	}
}

func TestParseAcrossChunkBoundaries(t *testing.T) {
	body := "foo=bar&baz=qux&key=value"
	expect := url.Values{"foo": []string{"bar"}, "baz": []string{"qux"}, "key": []string{"value"}}

	for _, stride := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("stride-%d", stride), func(t *testing.T) {
			q := content.NewQueue()
			for i := 0; i < len(body); i += stride {
				q.Push(content.Bytes([]byte(body[i:min(i+stride, len(body))]), false))
			}
			q.Close()

			values, err := Parse(context.Background(), q, Options{})
			if err != nil {
				t.Fatal(err)
			}

			if !cmp.Equal(values, expect) {
				t.Error(cmp.Diff(expect, values))
			}
		})
	}
}

func TestParseFieldLimit(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 11; i++ {
		if i > 0 {
			body.WriteByte('&')
		}

		fmt.Fprintf(&body, "key%d=%d", i, i)
	}

	t.Run("over the ceiling", func(t *testing.T) {
		_, err := Parse(context.Background(), plainSource(body.String()), Options{
			Limits: &limit.Limits{MaxLength: limit.DefaultMaxLength, MaxFields: 10},
		})

		var lerr *limit.ExceededError
		if !errors.As(err, &lerr) || lerr.Kind != limit.KindCount {
			t.Fatalf("expected count limit violation, got: %v", err)
		}
	})

	t.Run("at the ceiling", func(t *testing.T) {
		values, err := Parse(context.Background(), plainSource(body.String()), Options{
			Limits: &limit.Limits{MaxLength: limit.DefaultMaxLength, MaxFields: 11},
		})
		if err != nil {
			t.Fatal(err)
		}

		if len(values) != 11 {
			t.Errorf("parsed %d keys, expected 11", len(values))
		}
	})
}

func TestParseDecodedSizeLimit(t *testing.T) {
	// a small wire payload expanding over the decoded ceiling, like a
	// decompression bomb would
	body := "key=" + strings.Repeat("v", 100000)

	_, err := Parse(context.Background(), gzipSource(t, body), Options{
		Limits: &limit.Limits{MaxLength: 1000, MaxFields: limit.DefaultMaxFields},
	})

	var lerr *limit.ExceededError
	if !errors.As(err, &lerr) || lerr.Kind != limit.KindSize {
		t.Fatalf("expected size limit violation, got: %v", err)
	}
}

func TestParseHelloWorld(t *testing.T) {
	// the 11 byte payload "hello world", compressed, under two ceilings
	const body = "hello=world"

	t.Run("maxLength 200 succeeds", func(t *testing.T) {
		values, err := Parse(context.Background(), gzipSource(t, body), Options{
			Limits: &limit.Limits{MaxLength: 200, MaxFields: limit.DefaultMaxFields},
		})
		if err != nil {
			t.Fatal(err)
		}

		expect := url.Values{"hello": []string{"world"}}
		if !cmp.Equal(values, expect) {
			t.Error(cmp.Diff(expect, values))
		}
	})

	t.Run("maxLength 5 aborts", func(t *testing.T) {
		_, err := Parse(context.Background(), gzipSource(t, body), Options{
			Limits: &limit.Limits{MaxLength: 5, MaxFields: limit.DefaultMaxFields},
		})

		var lerr *limit.ExceededError
		if !errors.As(err, &lerr) || lerr.Kind != limit.KindSize {
			t.Fatalf("expected size limit violation, got: %v", err)
		}
	})
}

func TestParseCorruptStream(t *testing.T) {
	q := content.NewQueue()
	q.Push(content.Bytes([]byte("junk, not gzip"), false))
	q.Close()

	d, err := codec.NewGzip(codec.Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Parse(context.Background(), content.NewDecoderSource(q, d), Options{})
	var cerr *codec.CorruptError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected corrupt error, got: %v", err)
	}
}

func TestParseContextCanceled(t *testing.T) {
	q := content.NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := Parse(ctx, q, Options{})
		result <- err
	}()

	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("parse did not return on cancellation")
	}

	// the source was canceled with the stream
	if c := q.Next(); c.Err == nil {
		t.Error("source not canceled")
	}
}

func TestParseAsyncMatchesBlocking(t *testing.T) {
	body := "foo=bar&baz=qux&key=value"

	blocking, err := Parse(context.Background(), gzipSource(t, body), Options{})
	if err != nil {
		t.Fatal(err)
	}

	type result struct {
		values url.Values
		err    error
	}

	t.Run("producer ahead", func(t *testing.T) {
		done := make(chan result, 1)
		ParseAsync(gzipSource(t, body), Options{}, func(v url.Values, err error) {
			done <- result{v, err}
		})

		r := <-done
		if r.err != nil {
			t.Fatal(r.err)
		}

		if !cmp.Equal(r.values, blocking) {
			t.Error(cmp.Diff(blocking, r.values))
		}
	})

	t.Run("producer behind", func(t *testing.T) {
		q := content.NewQueue()
		d, err := codec.NewGzip(codec.Options{})
		if err != nil {
			t.Fatal(err)
		}

		done := make(chan result, 1)
		ParseAsync(content.NewDecoderSource(q, d), Options{}, func(v url.Values, err error) {
			done <- result{v, err}
		})

		// the continuation is parked, feed the stream now
		input := gzipBytes(t, []byte(body))
		for len(input) > 0 {
			n := min(7, len(input))
			q.Push(content.Bytes(input[:n], false))
			input = input[n:]
		}
		q.Close()

		select {
		case r := <-done:
			if r.err != nil {
				t.Fatal(r.err)
			}

			if !cmp.Equal(r.values, blocking) {
				t.Error(cmp.Diff(blocking, r.values))
			}
		case <-time.After(5 * time.Second):
			t.Fatal("async parse did not complete")
		}
	})

	t.Run("callback invoked once on failure", func(t *testing.T) {
		var calls int
		ParseAsync(plainSource("foo=bar;baz"), Options{}, func(v url.Values, err error) {
			calls++
			if !errors.Is(err, errSemicolon) {
				t.Errorf("expected semicolon error, got: %v", err)
			}
		})

		if calls != 1 {
			t.Errorf("callback invoked %d times, expected once", calls)
		}
	})
}
