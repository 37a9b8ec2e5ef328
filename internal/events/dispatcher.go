// Package events delivers task change events from the store outbox to sinks.
package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fentz26/prodtrack/internal/models"
)

// Sink receives dispatched events. Publish must not retain the slice.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []models.Event) error
}

// Outbox is the store side of dispatch.
type Outbox interface {
	UndeliveredEvents(ctx context.Context, limit int) ([]models.Event, error)
	MarkDelivered(ctx context.Context, ids []string, at time.Time) error
}

// Config tunes the dispatcher loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{PollInterval: time.Second, BatchSize: 100}
}

// Dispatcher polls the outbox and fans each batch out to every sink.
type Dispatcher struct {
	outbox Outbox
	sinks  []Sink
	config Config
	logger *slog.Logger

	kick chan struct{}

	mu        sync.Mutex
	delivered int64
	failures  int64
	lastError string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(outbox Outbox, cfg Config, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		outbox: outbox,
		sinks:  sinks,
		config: cfg,
		logger: logger.With("component", "dispatcher"),
		kick:   make(chan struct{}, 1),
	}
}

// Start begins the dispatch loop. It stops when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.loop()
	d.logger.Info("dispatcher started", "poll_interval", d.config.PollInterval, "sinks", len(d.sinks))
}

// Stop cancels the loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Kick schedules a dispatch without waiting for the next tick.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
		for {
			n, err := d.DispatchOnce(d.ctx)
			if err != nil || n < d.config.BatchSize {
				break
			}
		}
	}
}

// DispatchOnce delivers one batch and returns its size. When any sink fails
// the batch stays undelivered and is retried on the next run.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch, err := d.outbox.UndeliveredEvents(ctx, d.config.BatchSize)
	if err != nil {
		d.recordFailure(err)
		d.logger.Error("read outbox", "error", err)
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, batch); err != nil {
			err = fmt.Errorf("sink %s: %w", sink.Name(), err)
			d.recordFailure(err)
			d.logger.Warn("publish failed, batch will be retried", "sink", sink.Name(), "events", len(batch), "error", err)
			return 0, err
		}
	}

	ids := make([]string, len(batch))
	for i, ev := range batch {
		ids[i] = ev.ID
	}
	if err := d.outbox.MarkDelivered(ctx, ids, time.Now().UTC()); err != nil {
		d.recordFailure(err)
		d.logger.Error("mark delivered", "error", err)
		return 0, err
	}

	d.mu.Lock()
	d.delivered += int64(len(batch))
	d.mu.Unlock()
	d.logger.Debug("dispatched events", "count", len(batch))
	return len(batch), nil
}

func (d *Dispatcher) recordFailure(err error) {
	d.mu.Lock()
	d.failures++
	d.lastError = err.Error()
	d.mu.Unlock()
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Delivered int64  `json:"delivered"`
	Failures  int64  `json:"failures"`
	LastError string `json:"last_error,omitempty"`
	Sinks     int    `json:"sinks"`
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Delivered: d.delivered, Failures: d.failures, LastError: d.lastError, Sinks: len(d.sinks)}
}
