package screenrec

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_FanOut(t *testing.T) {
	h := newEventHub(slog.Default())
	a, cancelA := h.subscribe(4)
	b, cancelB := h.subscribe(4)
	defer cancelB()

	h.publish(Event{Type: EventStateChanged, State: StateRecording})

	assert.Equal(t, StateRecording, (<-a).State)
	assert.Equal(t, StateRecording, (<-b).State)

	cancelA()
	cancelA()
	_, ok := <-a
	assert.False(t, ok, "cancel closes the channel")

	h.publish(Event{Type: EventError})
	assert.Equal(t, EventError, (<-b).Type)
}

func TestEventHub_SlowSubscriberDrops(t *testing.T) {
	h := newEventHub(slog.Default())
	ch, cancel := h.subscribe(1)
	defer cancel()

	h.publish(Event{Type: EventTranscodeProgress, Progress: 10})
	h.publish(Event{Type: EventTranscodeProgress, Progress: 20})

	ev := <-ch
	assert.Equal(t, 10, ev.Progress)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestEventHub_Close(t *testing.T) {
	h := newEventHub(slog.Default())
	ch, cancel := h.subscribe(1)
	h.close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.subscribe(1)
	_, ok = <-late
	require.False(t, ok, "subscribing after close returns a closed channel")
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "artifact_ready", EventArtifactReady.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
