package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter fans formatted log lines out to one or more buffered sinks
// from a single goroutine so handlers never block on slow disks.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	closed   sync.Once

	mu      sync.Mutex
	sinks   []*bufio.Writer
	lastErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.flushSinks()
				close(w.done)
				return
			}
			if len(line) == 0 {
				continue
			}
			if err := w.writeSinks(line); err != nil {
				w.recordErr(err)
			}
		case ack := <-w.flushReq:
			ack <- w.flushSinks()
		}
	}
}

// Write copies the line and enqueues it. When the queue is full the caller
// blocks rather than dropping the line.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	w.queue <- line
	return nil
}

// Flush blocks until every buffered line has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue, flushes the sinks and reports the first write error.
func (w *asyncWriter) Close() error {
	w.closed.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *asyncWriter) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastErr == nil {
		w.lastErr = err
	}
}
