package codec

import (
	"compress/flate"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// nopCloser wraps engines that expose no Close of their own.
type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// NewGzip returns a decoder for the gzip content coding.
func NewGzip(o Options) (Decoder, error) {
	return newBridge("gzip", o.bufferSize(), func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	}, nil), nil
}

// NewDeflate returns a decoder for the deflate content coding (raw DEFLATE,
// as HTTP clients send it).
func NewDeflate(o Options) (Decoder, error) {
	return newBridge("deflate", o.bufferSize(), func(r io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(r), nil
	}, nil), nil
}

// NewBrotli returns a decoder for the br content coding.
func NewBrotli(o Options) (Decoder, error) {
	return newBridge("br", o.bufferSize(), func(r io.Reader) (io.ReadCloser, error) {
		return nopCloser{brotli.NewReader(r)}, nil
	}, nil), nil
}

// NewZstd returns a decoder for the zstd content coding. The engine handle is
// allocated here, so option failures surface as an InitError before any chunk
// is pulled. Decoding runs synchronously in low memory mode, the pipeline
// provides no cross-stream parallelism to exploit.
func NewZstd(o Options) (Decoder, error) {
	d, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return nil, &InitError{Encoding: "zstd", Err: err}
	}

	return newBridge("zstd", o.bufferSize(), func(r io.Reader) (io.ReadCloser, error) {
		if err := d.Reset(r); err != nil {
			return nil, err
		}

		return d.IOReadCloser(), nil
	}, d.Close), nil
}

// NewLZ4 returns a decoder for lz4 frames. Not an HTTP content coding,
// offered for non-HTTP streams.
func NewLZ4(o Options) (Decoder, error) {
	return newBridge("lz4", o.bufferSize(), func(r io.Reader) (io.ReadCloser, error) {
		return nopCloser{lz4.NewReader(r)}, nil
	}, nil), nil
}

// ForEncoding returns a decoder for the given content coding token, or
// ErrUnsupportedEncoding for tokens it does not recognize.
func ForEncoding(name string, o Options) (Decoder, error) {
	switch name {
	case "gzip", "x-gzip":
		return NewGzip(o)
	case "deflate":
		return NewDeflate(o)
	case "br":
		return NewBrotli(o)
	case "zstd":
		return NewZstd(o)
	case "lz4":
		return NewLZ4(o)
	default:
		return nil, ErrUnsupportedEncoding
	}
}
