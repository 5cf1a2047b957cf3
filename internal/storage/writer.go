package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultWriteTimeout = 15 * time.Second

type job struct {
	op string
	fn func(ctx context.Context) error
}

// Writer runs persistence jobs in submission order without blocking the
// submitter. Failures are logged as PersistenceError and never retried.
// The drain goroutine only lives while the queue is non-empty.
type Writer struct {
	mu    sync.Mutex
	queue []job

	// idle is closed when the running drain empties the queue; nil while
	// no drain is running.
	idle chan struct{}

	timeout  time.Duration
	logger   *slog.Logger
	onError  func(*PersistenceError)
	failures int
}

type WriterOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// OnError is called on the drain goroutine after each failed job.
	OnError func(*PersistenceError)
}

func NewWriter(opts WriterOptions) *Writer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Writer{
		timeout: opts.Timeout,
		logger:  opts.Logger,
		onError: opts.OnError,
	}
}

func (w *Writer) Submit(op string, fn func(ctx context.Context) error) {
	w.mu.Lock()
	w.queue = append(w.queue, job{op: op, fn: fn})
	if w.idle == nil {
		w.idle = make(chan struct{})
		go w.drain()
	}
	w.mu.Unlock()
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			close(w.idle)
			w.idle = nil
			w.mu.Unlock()
			return
		}
		j := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.run(j)
	}
}

func (w *Writer) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	err := j.fn(ctx)
	if err == nil {
		return
	}
	perr := &PersistenceError{Op: j.op, Err: err}
	w.mu.Lock()
	w.failures++
	w.mu.Unlock()

	w.logger.Error("persistence failed; keeping in-memory state", "op", j.op, "error", err)
	if w.onError != nil {
		w.onError(perr)
	}
}

// Flush blocks until the queue is empty or ctx is done. A cancelled Flush
// leaves nothing waiting behind it.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns how many jobs have failed since the writer was created.
func (w *Writer) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}
