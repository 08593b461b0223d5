package analytics

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
)

// AsyncConfig sizes the emission queue.
type AsyncConfig struct {
	// QueueSize bounds buffered events; further events are dropped.
	QueueSize int
	// BatchSize triggers an early flush.
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultAsyncConfig returns the queue sizing used by the server.
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		QueueSize:     1024,
		BatchSize:     50,
		FlushInterval: 2 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Async buffers events and writes them to a Sink in batches from a background
// goroutine.
type Async struct {
	sink   Sink
	cfg    AsyncConfig
	logger *slog.Logger

	queue chan Event
	flush chan chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the background writer.
func NewAsync(sink Sink, cfg AsyncConfig, logger *slog.Logger) *Async {
	def := DefaultAsyncConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &Async{
		sink:   sink,
		cfg:    cfg,
		logger: logger.With("component", "analytics"),
		queue:  make(chan Event, cfg.QueueSize),
		flush:  make(chan chan struct{}),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

// Emit enqueues e. It never blocks; when the queue is full or the emitter is
// closed the event is dropped.
func (a *Async) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		observability.RecordAnalyticsDropped()
		return
	}
	select {
	case a.queue <- e:
	default:
		observability.RecordAnalyticsDropped()
		a.logger.Debug("analytics queue full, dropping event", "type", e.Type, "session_id", e.SessionID)
	}
}

// Flush writes everything queued so far and waits for the write.
func (a *Async) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case a.flush <- ack:
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, writes the remainder and closes the sink.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.done)
	a.mu.Unlock()

	a.wg.Wait()
	return a.sink.Close()
}

func (a *Async) loop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, a.cfg.BatchSize)
	write := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
		if err := a.sink.Write(ctx, batch); err != nil {
			for range batch {
				observability.RecordAnalyticsDropped()
			}
			a.logger.Warn("analytics write failed", "events", len(batch), "error", err)
		}
		cancel()
		batch = make([]Event, 0, a.cfg.BatchSize)
	}
	drain := func() {
		for {
			select {
			case e := <-a.queue:
				batch = append(batch, e)
			default:
				return
			}
		}
	}

	for {
		select {
		case e := <-a.queue:
			batch = append(batch, e)
			if len(batch) >= a.cfg.BatchSize {
				write()
			}
		case <-ticker.C:
			write()
		case ack := <-a.flush:
			drain()
			write()
			close(ack)
		case <-a.done:
			drain()
			write()
			return
		}
	}
}
