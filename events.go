package screenrec

import (
	"log/slog"
	"sync"
)

// EventType identifies controller notifications.
type EventType int

const (
	EventStateChanged EventType = iota
	EventDevicesChanged
	EventChunk
	EventArtifactReady
	EventTranscodeProgress
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventDevicesChanged:
		return "devices_changed"
	case EventChunk:
		return "chunk"
	case EventArtifactReady:
		return "artifact_ready"
	case EventTranscodeProgress:
		return "transcode_progress"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a Controller.
type Event struct {
	Type      EventType
	State     SessionState
	Progress  int       // Transcode progress, 0-100
	Artifact  *Artifact // Set for EventArtifactReady
	ChunkSize int       // Set for EventChunk
	Err       error
	Kind      ErrorKind // Classification of Err
}

// eventHub fans events out to subscribers. Slow subscribers lose events
// instead of blocking the session.
type eventHub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{logger: logger, subs: make(map[int]chan Event)}
}

func (h *eventHub) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("subscriber too slow, dropping event", "subscriber", id, "event", ev.Type.String())
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
