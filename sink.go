package quill

import (
	"sync"

	"github.com/quillworks-ai/quill/event"
)

// StreamSink receives run events in emission order. Implementations may
// block; the run loop is insulated by a bounded internal buffer and never
// waits on a sink directly.
type StreamSink interface {
	Emit(ev event.Event)
}

// SinkFunc adapts a function to the StreamSink interface.
type SinkFunc func(ev event.Event)

func (f SinkFunc) Emit(ev event.Event) { f(ev) }

// defaultEventBuffer matches the event queue depth used for run channels.
const defaultEventBuffer = 100

// eventBuffer decouples the run loop from event consumers. Pushes never
// block: once the buffer is full, the oldest progress event is dropped to
// make room. Start/finish/terminal events are never dropped; their count
// is bounded by the stage list, so the buffer stays bounded even when
// every progress slot is occupied by control events.
type eventBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []event.Event
	capacity int
	closed   bool
	dropped  int
}

func newEventBuffer(capacity int) *eventBuffer {
	if capacity < 1 {
		capacity = defaultEventBuffer
	}
	b := &eventBuffer{capacity: capacity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *eventBuffer) push(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.queue) >= b.capacity {
		if i := b.oldestProgress(); i >= 0 {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			b.dropped++
		}
	}
	b.queue = append(b.queue, ev)
	b.cond.Signal()
}

// pop blocks until an event is available or the buffer is closed and
// drained.
func (b *eventBuffer) pop() (event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.queue) == 0 {
		return nil, false
	}
	ev := b.queue[0]
	b.queue = b.queue[1:]
	return ev, true
}

func (b *eventBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

func (b *eventBuffer) droppedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *eventBuffer) oldestProgress() int {
	for i, ev := range b.queue {
		if _, ok := ev.(*event.StageProgressEvent); ok {
			return i
		}
	}
	return -1
}
