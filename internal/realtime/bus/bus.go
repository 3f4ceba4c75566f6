package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Wakeup tells workers a student has new unclaimed work. It is only a hint;
// the poll loop finds the work regardless of delivery.
type Wakeup struct {
	StudentID string    `json:"student_id"`
	EventID   uuid.UUID `json:"event_id"`
	At        time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, msg Wakeup) error
	StartForwarder(ctx context.Context, onMsg func(m Wakeup)) error
	Close() error
}

// Noop drops every message.
type Noop struct{}

func (Noop) Publish(context.Context, Wakeup) error                { return nil }
func (Noop) StartForwarder(context.Context, func(m Wakeup)) error { return nil }
func (Noop) Close() error                                         { return nil }

// Memory fans messages out to in-process subscribers. Used when Redis is not
// configured and the HTTP server and workers share a process.
type Memory struct {
	mu   sync.RWMutex
	subs map[int]func(Wakeup)
	next int
}

func NewMemory() *Memory {
	return &Memory{subs: map[int]func(Wakeup){}}
}

func (b *Memory) Publish(_ context.Context, msg Wakeup) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

// StartForwarder registers onMsg until ctx is done. onMsg runs on the
// publisher's goroutine and must not block.
func (b *Memory) StartForwarder(ctx context.Context, onMsg func(m Wakeup)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = onMsg
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *Memory) Close() error {
	b.mu.Lock()
	b.subs = map[int]func(Wakeup){}
	b.mu.Unlock()
	return nil
}
