// Package ingest buffers feed messages between concurrent transport
// producers and the single per-instrument apply loop.
package ingest

import (
	"context"
	"sync"

	"github.com/anthonyhuangg/QuantFlow/internal/feed"
)

const (
	DefaultSoftCap = 1000
	DefaultKeep    = 800
)

// Buffer is a FIFO with overflow compaction. Push never blocks and
// never fails: when admitting a message would take the backlog past
// the soft cap, the oldest entries are evicted down to the keep mark
// before the new message is appended, and every evicted message is
// reported through the drop callback. Any number of goroutines may
// Push; exactly one consumer drains via Pop.
type Buffer struct {
	mu      sync.Mutex
	queue   []feed.Message
	notify  chan struct{}
	softCap int
	keep    int
	onDrop  func(n int)
}

// New builds a buffer. Non-positive caps fall back to the defaults;
// keep is clamped below softCap so compaction always frees room.
// onDrop may be nil; it runs outside the buffer lock.
func New(softCap, keep int, onDrop func(n int)) *Buffer {
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	if keep <= 0 || keep >= softCap {
		keep = softCap * 4 / 5
	}
	return &Buffer{
		notify:  make(chan struct{}, 1),
		softCap: softCap,
		keep:    keep,
		onDrop:  onDrop,
	}
}

// Push appends msg, compacting the oldest backlog first when the soft
// cap would be exceeded.
func (b *Buffer) Push(msg feed.Message) {
	var dropped int
	b.mu.Lock()
	if len(b.queue)+1 > b.softCap {
		dropped = len(b.queue) - b.keep
		n := copy(b.queue, b.queue[dropped:])
		for i := n; i < len(b.queue); i++ {
			b.queue[i] = feed.Message{}
		}
		b.queue = b.queue[:n]
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	if dropped > 0 && b.onDrop != nil {
		b.onDrop(dropped)
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest pending message, blocking until one arrives
// or ctx is done.
func (b *Buffer) Pop(ctx context.Context) (feed.Message, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue[0] = feed.Message{}
			b.queue = b.queue[1:]
			if len(b.queue) == 0 {
				b.queue = nil
			}
			b.mu.Unlock()
			return msg, nil
		}
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return feed.Message{}, ctx.Err()
		case <-b.notify:
		}
	}
}

// Len reports the pending message count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
