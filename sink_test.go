package quill

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks-ai/quill/event"
)

func TestEventBufferDropsOldestProgressWhenFull(t *testing.T) {
	b := newEventBuffer(3)

	b.push(&event.StageStartedEvent{RunID: "r", StageID: StageWriter})
	b.push(&event.StageProgressEvent{RunID: "r", StageID: StageWriter, Fragment: "one"})
	b.push(&event.StageProgressEvent{RunID: "r", StageID: StageWriter, Fragment: "two"})
	// full: the oldest progress fragment gives way
	b.push(&event.StageProgressEvent{RunID: "r", StageID: StageWriter, Fragment: "three"})

	assert.Equal(t, 1, b.droppedCount())

	ev, ok := b.pop()
	require.True(t, ok)
	_, isStart := ev.(*event.StageStartedEvent)
	assert.True(t, isStart, "control events survive the drop")

	first, _ := b.pop()
	second, _ := b.pop()
	assert.Equal(t, "two", first.(*event.StageProgressEvent).Fragment)
	assert.Equal(t, "three", second.(*event.StageProgressEvent).Fragment)
}

func TestEventBufferNeverDropsControlEvents(t *testing.T) {
	b := newEventBuffer(2)

	b.push(&event.StageProgressEvent{RunID: "r", StageID: StageWriter, Fragment: "x"})
	b.push(&event.StageProgressEvent{RunID: "r", StageID: StageWriter, Fragment: "y"})
	for i := 0; i < 5; i++ {
		b.push(&event.StageFinishedEvent{RunID: "r", StageID: fmt.Sprintf("s%d", i)})
	}
	b.push(&event.RunCompletedEvent{RunID: "r"})
	b.close()

	var kinds []string
	for {
		ev, ok := b.pop()
		if !ok {
			break
		}
		switch ev.(type) {
		case *event.StageProgressEvent:
			kinds = append(kinds, "progress")
		case *event.StageFinishedEvent:
			kinds = append(kinds, "finished")
		case *event.RunCompletedEvent:
			kinds = append(kinds, "completed")
		}
	}

	// both progress events were sacrificed, every control event survived
	assert.Equal(t, []string{"finished", "finished", "finished", "finished", "finished", "completed"}, kinds)
	assert.Equal(t, 2, b.droppedCount())
}

func TestEventBufferPopAfterClose(t *testing.T) {
	b := newEventBuffer(4)
	b.push(&event.RunCancelledEvent{RunID: "r"})
	b.close()

	ev, ok := b.pop()
	require.True(t, ok, "buffered events drain after close")
	assert.Equal(t, "r", ev.ID())

	_, ok = b.pop()
	assert.False(t, ok)

	// pushes after close are discarded
	b.push(&event.RunCompletedEvent{RunID: "r"})
	_, ok = b.pop()
	assert.False(t, ok)
}

func TestSinkFuncAdapts(t *testing.T) {
	var got event.Event
	sink := SinkFunc(func(ev event.Event) { got = ev })

	want := &event.RunCompletedEvent{RunID: "r"}
	sink.Emit(want)
	assert.Same(t, want, got)
}
