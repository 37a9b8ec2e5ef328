package events

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fentz26/prodtrack/internal/models"
)

// Bus is an in-process fan-out sink. Subscribers that fall behind lose events.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan models.Event
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{logger: logger.With("component", "bus"), subs: make(map[int]chan models.Event)}
}

// Name implements Sink.
func (b *Bus) Name() string { return "bus" }

// Subscribe returns a channel of events buffered to size and a cancel func
// that closes it.
func (b *Bus) Subscribe(size int) (<-chan models.Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan models.Event, size)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish implements Sink. It never blocks on a subscriber.
func (b *Bus) Publish(_ context.Context, events []models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				b.logger.Warn("subscriber full, dropping event", "subscriber", id, "event", ev.ID)
			}
		}
	}
	return nil
}
