package codec

import (
	"io"
	"sync"
)

// The mainstream Go decompression engines are io.Reader transformers that
// pull their input themselves, while the pipeline pushes input in chunks.
// bridge inverts the control with a paired goroutine: the engine runs on its
// own goroutine and reads fed bytes from the bridge, parking whenever it
// needs more input or has produced output. Exactly one side runs at a time,
// the resume and yield channels carry the baton, so no state needs locking.
//
// The goroutine owns the engine handle. Its deferred close is the single
// release point reached on every exit: clean end of stream, corrupt input and
// Close alike.
type bridge struct {
	encoding string

	// caller side state, valid while the engine is parked
	status Status
	out    []byte
	err    error

	// engine side state
	in     []byte
	inLast bool

	resume chan struct{}
	yield  chan parkEvent
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

type parkEvent struct {
	status Status
	out    []byte
	err    error
}

// openFunc constructs the engine over the bridge's input stream. It runs on
// the engine goroutine because most constructors read stream headers.
type openFunc func(io.Reader) (io.ReadCloser, error)

// newBridge starts the engine goroutine. discard, when not nil, releases an
// engine handle that was allocated before open ran, for the paths where open
// never completes. After a successful open the engine's own Close takes over.
func newBridge(encoding string, bufSize int, open openFunc, discard func()) *bridge {
	b := &bridge{
		encoding: encoding,
		status:   NeedsInput,
		resume:   make(chan struct{}),
		yield:    make(chan parkEvent),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go b.run(bufSize, open, discard)
	return b
}

// run drives the engine until it ends, fails or the bridge is closed.
func (b *bridge) run(bufSize int, open openFunc, discard func()) {
	defer close(b.done)

	opened := false
	defer func() {
		if !opened && discard != nil {
			discard()
		}
	}()

	// the first resume arrives with the first feed, constructors that
	// read a header would block on input before that
	select {
	case <-b.resume:
	case <-b.quit:
		return
	}

	engine, err := open(b)
	if err != nil {
		b.parkTerminal(Failed, &CorruptError{Encoding: b.encoding, Err: err})
		return
	}

	opened = true
	defer engine.Close()

	buf := make([]byte, bufSize)
	for {
		n, err := engine.Read(buf)
		if n > 0 {
			if !b.park(parkEvent{status: HasOutput, out: buf[:n]}) {
				return
			}
		}

		switch err {
		case nil:
		case io.EOF:
			b.parkTerminal(Done, nil)
			return
		default:
			b.parkTerminal(Failed, &CorruptError{Encoding: b.encoding, Err: err})
			return
		}
	}
}

// Read serves the engine with the bytes fed to the bridge, parking for more
// when they run out. After a last feed it reports EOF, so a stream truncated
// mid-frame surfaces as the engine's own unexpected-EOF error.
func (b *bridge) Read(p []byte) (int, error) {
	for len(b.in) == 0 {
		if b.inLast {
			return 0, io.EOF
		}

		if !b.park(parkEvent{status: NeedsInput}) {
			return 0, errDecoderClosed
		}
	}

	n := copy(p, b.in)
	b.in = b.in[n:]
	return n, nil
}

// park hands the baton to the caller and waits for it back. It returns false
// when the bridge was closed, the engine goroutine must unwind then.
func (b *bridge) park(e parkEvent) bool {
	select {
	case b.yield <- e:
	case <-b.quit:
		return false
	}

	select {
	case <-b.resume:
		return true
	case <-b.quit:
		return false
	}
}

// parkTerminal reports a terminal status without waiting for the baton back.
func (b *bridge) parkTerminal(s Status, err error) {
	select {
	case b.yield <- parkEvent{status: s, err: err}:
	case <-b.quit:
	}
}

// advance hands the baton to the engine and records where it parks next.
func (b *bridge) advance() {
	select {
	case b.resume <- struct{}{}:
	case <-b.quit:
		b.status, b.err = Failed, errDecoderClosed
		return
	}

	select {
	case e := <-b.yield:
		b.status, b.out, b.err = e.status, e.out, e.err
	case <-b.quit:
		b.status, b.err = Failed, errDecoderClosed
	}
}

func (b *bridge) Status() Status { return b.status }

func (b *bridge) Err() error { return b.err }

func (b *bridge) Feed(p []byte, last bool) error {
	if b.status != NeedsInput {
		return &ProtocolError{Op: "feed", Status: b.status}
	}

	// the engine may hold on to unconsumed input across the caller's next
	// chunk release, so it gets its own copy
	b.in = append(b.in[:0], p...)
	b.inLast = b.inLast || last
	b.advance()
	return nil
}

func (b *bridge) Drain() []byte {
	if b.status != HasOutput {
		return nil
	}

	p := make([]byte, len(b.out))
	copy(p, b.out)
	b.advance()
	return p
}

// Close shuts the bridge down and waits for the engine goroutine to release
// the engine handle. Safe from any state and idempotent.
func (b *bridge) Close() error {
	b.once.Do(func() { close(b.quit) })
	<-b.done

	if b.status != Done && b.status != Failed {
		b.status, b.err = Failed, errDecoderClosed
	}

	return nil
}
