package screenrec

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is active and producing media
	TrackStateEnded                   // Track has ended
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TrackConstraints describes desired track properties (like browser MediaTrackConstraints).
type TrackConstraints struct {
	// Video constraints
	Width     int // Desired width (0 = any)
	Height    int // Desired height (0 = any)
	FrameRate int // Desired framerate (0 = any)

	// Audio constraints
	SampleRate   int // Desired sample rate (0 = any)
	ChannelCount int // Desired channels (0 = any)

	// DeviceID pins a specific device. Empty means any device.
	DeviceID string
}

// MediaStreamTrack represents a single audio or video track.
// This is similar to the browser's MediaStreamTrack interface.
type MediaStreamTrack interface {
	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind (audio or video) - compatible with pion.
	Kind() RTPCodecType

	// Label returns a human-readable label for the track source.
	Label() string

	// State returns the current track state.
	State() TrackState

	// Muted returns whether the track is muted. Muted tracks keep running
	// but deliver silence or nothing.
	Muted() bool
	SetMuted(muted bool)

	Enabled() bool
	SetEnabled(enabled bool)

	// Stop releases the underlying device. It is idempotent and does not
	// fire the ended callback.
	Stop()

	// OnEnded sets a callback for when the source ends the track on its own,
	// for example when the user stops sharing from the system UI.
	OnEnded(callback func())
}

// VideoTrack is a MediaStreamTrack that produces video frames.
type VideoTrack interface {
	MediaStreamTrack

	// ReadFrame blocks until the next video frame and returns a copy.
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// OnFrame adds a frame listener and returns a function removing it.
	OnFrame(callback VideoFrameCallback) (remove func())

	// Settings returns the actual video settings.
	Settings() VideoTrackSettings
}

// VideoTrackSettings describes the actual video track settings.
type VideoTrackSettings struct {
	Width     int
	Height    int
	FrameRate int
	DeviceID  string
}

// AudioTrack is a MediaStreamTrack that produces audio samples.
type AudioTrack interface {
	MediaStreamTrack

	// OnSamples adds a samples listener and returns a function removing it.
	OnSamples(callback AudioSamplesCallback) (remove func())

	// Settings returns the actual audio settings.
	Settings() AudioTrackSettings
}

// AudioTrackSettings describes the actual audio track settings.
type AudioTrackSettings struct {
	SampleRate   int
	ChannelCount int
	DeviceID     string
}

// MediaStream is a collection of tracks (like browser's MediaStream).
type MediaStream interface {
	// ID returns the unique identifier for this stream.
	ID() string

	// Active returns whether any track in the stream is live.
	Active() bool

	GetTracks() []MediaStreamTrack
	GetVideoTracks() []VideoTrack
	GetAudioTracks() []AudioTrack

	AddTrack(track MediaStreamTrack)
	RemoveTrack(track MediaStreamTrack)
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id      string
	label   string
	kind    RTPCodecType
	state   atomic.Int32
	muted   atomic.Bool
	enabled atomic.Bool

	releaseOnce sync.Once
	release     func()
	endedCb     func()
	mu          sync.RWMutex
}

// NewBaseTrack creates a new base track. An empty id is replaced by a random
// UUID.
func NewBaseTrack(id, label string, kind RTPCodecType) *BaseTrack {
	if id == "" {
		id = uuid.NewString()
	}
	t := &BaseTrack{
		id:    id,
		label: label,
		kind:  kind,
	}
	t.state.Store(int32(TrackStateLive))
	t.enabled.Store(true)
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) Kind() RTPCodecType { return t.kind }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

func (t *BaseTrack) Muted() bool       { return t.muted.Load() }
func (t *BaseTrack) SetMuted(m bool)   { t.muted.Store(m) }
func (t *BaseTrack) Enabled() bool     { return t.enabled.Load() }
func (t *BaseTrack) SetEnabled(e bool) { t.enabled.Store(e) }

// SetReleaseFunc sets the hook run exactly once when the track stops or ends.
func (t *BaseTrack) SetReleaseFunc(release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.release = release
}

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// Stop implements MediaStreamTrack.
func (t *BaseTrack) Stop() {
	t.state.Store(int32(TrackStateEnded))
	t.runRelease()
}

// End marks the track as ended by its source. The ended callback fires at
// most once, and only if the track was still live.
func (t *BaseTrack) End() {
	old := TrackState(t.state.Swap(int32(TrackStateEnded)))
	t.runRelease()
	if old == TrackStateEnded {
		return
	}
	t.mu.RLock()
	cb := t.endedCb
	t.mu.RUnlock()
	if cb != nil {
		go cb()
	}
}

func (t *BaseTrack) runRelease() {
	t.releaseOnce.Do(func() {
		t.mu.RLock()
		release := t.release
		t.mu.RUnlock()
		if release != nil {
			release()
		}
	})
}

// listeners is a set of callbacks safe for concurrent add, remove and emit.
type listeners[T any] struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.RLock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (l *listeners[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}

// SimpleMediaStream is a basic MediaStream implementation.
type SimpleMediaStream struct {
	id     string
	tracks []MediaStreamTrack
	mu     sync.RWMutex
}

// NewMediaStream creates a new media stream. An empty id is replaced by a
// random UUID.
func NewMediaStream(id string, tracks ...MediaStreamTrack) *SimpleMediaStream {
	if id == "" {
		id = uuid.NewString()
	}
	s := &SimpleMediaStream{id: id}
	for _, t := range tracks {
		if t != nil {
			s.tracks = append(s.tracks, t)
		}
	}
	return s
}

func (s *SimpleMediaStream) ID() string { return s.id }

func (s *SimpleMediaStream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

func (s *SimpleMediaStream) GetTracks() []MediaStreamTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MediaStreamTrack, len(s.tracks))
	copy(result, s.tracks)
	return result
}

func (s *SimpleMediaStream) GetVideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []VideoTrack
	for _, t := range s.tracks {
		if vt, ok := t.(VideoTrack); ok {
			result = append(result, vt)
		}
	}
	return result
}

func (s *SimpleMediaStream) GetAudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []AudioTrack
	for _, t := range s.tracks {
		if at, ok := t.(AudioTrack); ok {
			result = append(result, at)
		}
	}
	return result
}

func (s *SimpleMediaStream) AddTrack(track MediaStreamTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

func (s *SimpleMediaStream) RemoveTrack(track MediaStreamTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tracks {
		if t.ID() == track.ID() {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			break
		}
	}
}

// Stop stops every track in the stream.
func (s *SimpleMediaStream) Stop() {
	for _, t := range s.GetTracks() {
		t.Stop()
	}
}
