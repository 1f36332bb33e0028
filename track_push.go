package screenrec

import (
	"context"
	"sync"
)

// PushVideoTrack is a VideoTrack fed by WriteFrame. Device providers,
// the compositor canvas and tests all produce frames through it.
type PushVideoTrack struct {
	*BaseTrack

	settings  VideoTrackSettings
	frames    listeners[*VideoFrame]
	settingMu sync.RWMutex
}

// NewPushVideoTrack creates a live video track.
func NewPushVideoTrack(id, label string, settings VideoTrackSettings) *PushVideoTrack {
	return &PushVideoTrack{
		BaseTrack: NewBaseTrack(id, label, RTPCodecTypeVideo),
		settings:  settings,
	}
}

// WriteFrame delivers frame to all listeners. Frames written to an ended or
// disabled track are dropped.
func (t *PushVideoTrack) WriteFrame(frame *VideoFrame) error {
	if t.State() == TrackStateEnded {
		return ErrTrackEnded
	}
	if !t.Enabled() || t.Muted() {
		return nil
	}

	t.settingMu.Lock()
	t.settings.Width, t.settings.Height = frame.Width, frame.Height
	t.settingMu.Unlock()

	t.frames.emit(frame)
	return nil
}

func (t *PushVideoTrack) OnFrame(callback VideoFrameCallback) func() {
	return t.frames.add(callback)
}

func (t *PushVideoTrack) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	if t.State() == TrackStateEnded {
		return nil, ErrTrackEnded
	}
	ch := make(chan *VideoFrame, 1)
	remove := t.frames.add(func(f *VideoFrame) {
		select {
		case ch <- f.Clone():
		default:
		}
	})
	defer remove()

	select {
	case f := <-ch:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *PushVideoTrack) Settings() VideoTrackSettings {
	t.settingMu.RLock()
	defer t.settingMu.RUnlock()
	return t.settings
}

// PushAudioTrack is an AudioTrack fed by WriteSamples.
type PushAudioTrack struct {
	*BaseTrack

	settings AudioTrackSettings
	samples  listeners[*AudioSamples]
}

// NewPushAudioTrack creates a live audio track.
func NewPushAudioTrack(id, label string, settings AudioTrackSettings) *PushAudioTrack {
	return &PushAudioTrack{
		BaseTrack: NewBaseTrack(id, label, RTPCodecTypeAudio),
		settings:  settings,
	}
}

// WriteSamples delivers samples to all listeners. A muted track delivers
// silence of the same length.
func (t *PushAudioTrack) WriteSamples(samples *AudioSamples) error {
	if t.State() == TrackStateEnded {
		return ErrTrackEnded
	}
	if !t.Enabled() {
		return nil
	}
	if t.Muted() {
		silent := *samples
		silent.Data = make([]byte, len(samples.Data))
		samples = &silent
	}
	t.samples.emit(samples)
	return nil
}

func (t *PushAudioTrack) OnSamples(callback AudioSamplesCallback) func() {
	return t.samples.add(callback)
}

func (t *PushAudioTrack) Settings() AudioTrackSettings {
	return t.settings
}

var (
	_ VideoTrack = (*PushVideoTrack)(nil)
	_ AudioTrack = (*PushAudioTrack)(nil)
)
