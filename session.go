package screenrec

import (
	"sync"

	"github.com/google/uuid"
)

// SessionState is the controller's top-level state.
type SessionState int

const (
	StateInactive SessionState = iota
	StateRecording
	StatePaused
	StateProcessing
)

func (s SessionState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// recordingSession owns everything one recording holds: the hardware
// tracks, the compositor loop and the recorder. It is created by Start and
// torn down exactly once by the controller's stop path.
type recordingSession struct {
	id         string
	tracks     *RawTrackSet
	compositor *Compositor
	canvas     *CanvasTrack
	recorder   *Recorder
	stream     *SimpleMediaStream

	// ready is closed once Start has announced the session; the stop path
	// waits for it so its events and preview binding always come last.
	ready    chan struct{}
	stopOnce sync.Once
}

func newRecordingSession() *recordingSession {
	return &recordingSession{id: uuid.NewString(), ready: make(chan struct{})}
}

// release stops the compositor before the tracks it reads from.
func (s *recordingSession) release() {
	if s.compositor != nil {
		s.compositor.Stop()
	}
	if s.tracks != nil {
		s.tracks.Release()
	}
}
