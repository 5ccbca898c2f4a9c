package shell

import (
	"sync"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// job is one unit of pump work: either a fresh event starting a chain or a
// result for an in-flight request.
type job struct {
	chain string
	seq   uint64

	// event is set for chain starts.
	event []byte

	// resolve fields.
	resolve  bool
	id       wire.RequestID
	entry    *inflight
	payload  []byte
	terminal bool
}

// compactMin is how many consumed slots Next lets accumulate before it
// compacts the queue.
const compactMin = 64

// worklist is an unbounded FIFO of jobs with a blocking Next. Push never
// blocks, so effect tasks and Submit can always hand work to the pump.
type worklist struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []job
	head    int
	nextSeq uint64
	closed  bool
}

func newWorklist() *worklist {
	w := &worklist{nextSeq: 1}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Push appends j and wakes the pump.
func (w *worklist) Push(j job) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	j.seq = w.nextSeq
	w.nextSeq++
	w.jobs = append(w.jobs, j)
	w.cond.Signal()
	return nil
}

// Next blocks until a job is available. After Close it keeps returning queued
// jobs until the list is empty, then ErrClosed.
func (w *worklist) Next() (job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.head == len(w.jobs) && !w.closed {
		w.cond.Wait()
	}
	if w.head == len(w.jobs) {
		return job{}, ErrClosed
	}

	j := w.jobs[w.head]
	w.jobs[w.head] = job{}
	w.head++
	switch {
	case w.head == len(w.jobs):
		w.jobs = w.jobs[:0]
		w.head = 0
	case w.head >= compactMin && w.head*2 >= len(w.jobs):
		// Shift the live tail to the front so a queue that never fully
		// drains reuses its backing array instead of growing it.
		n := copy(w.jobs, w.jobs[w.head:])
		clear(w.jobs[n:])
		w.jobs = w.jobs[:n]
		w.head = 0
	}
	return j, nil
}

func (w *worklist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobs) - w.head
}

func (w *worklist) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.cond.Broadcast()
}
