// Package audit buffers security events in memory and flushes them in batches
// to one or more sinks. Recording never blocks the action being audited, and
// a failed flush re-queues the batch rather than dropping it.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives flushed event batches. Delivery is at-least-once: a sink may
// see the same batch again if another sink in the set failed.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

const (
	defaultMaxBatch      = 64
	defaultFlushInterval = 5 * time.Second
	flushTimeout         = 10 * time.Second
)

// Logger is the buffered audit event writer.
type Logger struct {
	sinks    []Sink
	maxBatch int
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time

	mu     sync.Mutex
	buffer []Event
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// Option tunes the Logger.
type Option func(*Logger)

// WithMaxBatch sets the buffered-event count that triggers a flush.
func WithMaxBatch(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxBatch = n
		}
	}
}

// WithFlushInterval sets the time-based flush trigger.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.interval = d
		}
	}
}

// NewLogger constructs a Logger and starts its flush loop.
func NewLogger(logger *slog.Logger, sinks []Sink, opts ...Option) *Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Logger{
		sinks:    sinks,
		maxBatch: defaultMaxBatch,
		interval: defaultFlushInterval,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Record buffers one event. It assigns the id and timestamp when missing and
// never returns an error: audit failures must not block the audited action.
func (l *Logger) Record(event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn("audit event after close", slog.String("type", string(event.Type)))
		return
	}
	l.buffer = append(l.buffer, event)
	full := len(l.buffer) >= l.maxBatch
	l.mu.Unlock()

	if full {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

func (l *Logger) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		case <-l.wake:
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := l.Flush(ctx); err != nil {
			l.logger.Error("audit flush failed, batch re-queued", slog.Any("error", err))
		}
		cancel()
	}
}

// Flush drains the buffer into every sink. On any sink failure the batch is
// put back at the front of the buffer for the next attempt.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return nil
	}
	batch := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Write(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		l.mu.Lock()
		l.buffer = append(batch, l.buffer...)
		l.mu.Unlock()
		return errors.Join(errs...)
	}
	return nil
}

// ForceFlush drains the buffer deterministically, e.g. before shutdown.
func (l *Logger) ForceFlush(ctx context.Context) error {
	return l.Flush(ctx)
}

// Close stops the flush loop after a final drain.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
	return l.Flush(ctx)
}

// Pending returns the number of buffered events, for tests and health checks.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}
