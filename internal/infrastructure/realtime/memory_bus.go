package realtime

import (
	"context"
	"errors"
	"sync"

	"batchtrack/internal/ports"
)

// MemoryBus delivers changes to listeners in the same process.
type MemoryBus struct {
	mu        sync.Mutex
	listeners map[uint64]*memoryListener
	nextID    uint64
	closed    bool
}

var _ ports.ChangeBus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		listeners: make(map[uint64]*memoryListener),
	}
}

// memoryListener queues changes for one handler. While the handler is busy
// the queue keeps only the latest change of each batch, in first-seen order.
type memoryListener struct {
	mu      sync.Mutex
	pending []ports.BatchChange
	index   map[string]int
	wake    chan struct{}
}

func newMemoryListener() *memoryListener {
	return &memoryListener{
		index: make(map[string]int),
		wake:  make(chan struct{}, 1),
	}
}

func (l *memoryListener) push(change ports.BatchChange) {
	l.mu.Lock()
	if i, ok := l.index[change.BatchID]; ok {
		l.pending[i] = change
	} else {
		l.index[change.BatchID] = len(l.pending)
		l.pending = append(l.pending, change)
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *memoryListener) drain() []ports.BatchChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	clear(l.index)
	return out
}

// Publish never blocks and never loses a batch: a listener that falls behind
// still receives the latest change of every batch touched meanwhile.
func (b *MemoryBus) Publish(ctx context.Context, change ports.BatchChange) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("memory bus closed")
	}
	for _, l := range b.listeners {
		l.push(change)
	}
	return nil
}

func (b *MemoryBus) Listen(ctx context.Context, handler func(ports.BatchChange)) (<-chan error, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("memory bus closed")
	}
	id := b.nextID
	b.nextID++
	l := newMemoryListener()
	b.listeners[id] = l
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer b.remove(id)
		for {
			select {
			case <-ctx.Done():
				done <- nil
				return
			case _, ok := <-l.wake:
				for _, change := range l.drain() {
					handler(change)
				}
				if !ok {
					done <- errors.New("memory bus closed")
					return
				}
			}
		}
	}()
	return done, nil
}

func (b *MemoryBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, l := range b.listeners {
		close(l.wake)
		delete(b.listeners, id)
	}
	return nil
}
