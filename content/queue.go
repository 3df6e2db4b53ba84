package content

import "sync"

// Queue is the hand-over point between an external, event-driven producer and
// the pull pipeline: the producer pushes chunks as they arrive, the consumer
// pulls them under the Source contract and parks via Demand while the queue is
// empty. It is the only stage that needs a lock, because producer and consumer
// may run on different goroutines. Within the pipeline each stream is still
// strictly sequential.
type Queue struct {
	mu     sync.Mutex
	chunks []Chunk
	term   *Chunk
	demand func()
}

var _ Source = &Queue{}

// NewQueue returns an empty queue. The producer side uses Push, Close and
// Fail, the consumer side Next, Demand and Cancel.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a data chunk for the consumer and wakes a parked demand. Push
// after Close, Fail or Cancel releases the chunk and drops it.
func (q *Queue) Push(c Chunk) {
	q.mu.Lock()
	if q.term != nil {
		q.mu.Unlock()
		c.Release()
		return
	}

	q.chunks = append(q.chunks, c)
	f := q.takeDemand()
	q.mu.Unlock()

	if f != nil {
		f()
	}
}

// Close marks the normal end of the stream.
func (q *Queue) Close() {
	q.terminate(EOF())
}

// Fail terminates the stream with err, reported to the consumer as a
// transport failure.
func (q *Queue) Fail(err error) {
	q.terminate(Fail(&TransportError{Err: err}))
}

func (q *Queue) terminate(term Chunk) {
	q.mu.Lock()
	if q.term != nil {
		q.mu.Unlock()
		return
	}

	q.term = &term
	f := q.takeDemand()
	q.mu.Unlock()

	if f != nil {
		f()
	}
}

func (q *Queue) Next() Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) > 0 {
		c := q.chunks[0]
		q.chunks = q.chunks[1:]
		return c
	}

	if q.term != nil {
		return *q.term
	}

	return Empty()
}

func (q *Queue) Demand(f func()) {
	q.mu.Lock()
	if len(q.chunks) > 0 || q.term != nil {
		q.mu.Unlock()
		f()
		return
	}

	q.demand = f
	q.mu.Unlock()
}

// Cancel drops and releases all queued chunks and terminates the stream. A
// continuation registered by a pull conceptually in flight is discarded, so
// invoking it later is not possible and pushes arriving after cancellation
// are safely dropped.
func (q *Queue) Cancel(err error) {
	if err == nil {
		err = ErrCanceled
	}

	q.mu.Lock()
	if q.term != nil && len(q.chunks) == 0 {
		q.mu.Unlock()
		return
	}

	dropped := q.chunks
	q.chunks = nil
	term := Fail(err)
	q.term = &term
	q.demand = nil
	q.mu.Unlock()

	for _, c := range dropped {
		c.Release()
	}
}

func (q *Queue) takeDemand() func() {
	f := q.demand
	q.demand = nil
	return f
}
