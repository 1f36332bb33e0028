package screenrec

import (
	"context"
	"fmt"
)

// CaptureKind identifies what a capture source records.
type CaptureKind int

const (
	CaptureKindUnknown CaptureKind = iota
	CaptureKindScreen              // Display or window capture
	CaptureKindCamera              // Camera capture
	CaptureKindAudio               // Microphone capture
)

func (k CaptureKind) String() string {
	switch k {
	case CaptureKindScreen:
		return "Screen"
	case CaptureKindCamera:
		return "Camera"
	case CaptureKindAudio:
		return "Audio"
	default:
		return "Unknown"
	}
}

// SourceConfig describes a video source's capabilities and configuration.
type SourceConfig struct {
	Width  int         // Frame width in pixels
	Height int         // Frame height in pixels
	FPS    int         // Frames per second
	Format PixelFormat // Pixel format
	Kind   CaptureKind // What the source captures
}

// VideoFrameCallback is called when a frame is available (push mode).
// The frame is only valid for the duration of the call.
type VideoFrameCallback func(frame *VideoFrame)

// VideoSource produces raw video frames.
type VideoSource interface {
	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// SetCallback sets push-mode callback for frame delivery.
	SetCallback(cb VideoFrameCallback)

	// Config returns the source configuration.
	Config() SourceConfig
}

// AudioSamplesCallback is called when audio samples are available (push mode).
type AudioSamplesCallback func(samples *AudioSamples)

// AudioSource produces raw audio samples.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	SetCallback(cb AudioSamplesCallback)
	SampleRate() int
	Channels() int
}

// NewSourceVideoTrack starts src and exposes it as a video track. Stopping or
// ending the track stops the source.
func NewSourceVideoTrack(ctx context.Context, src VideoSource, deviceID, label string) (*PushVideoTrack, error) {
	cfg := src.Config()
	track := NewPushVideoTrack("", label, VideoTrackSettings{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FPS,
		DeviceID:  deviceID,
	})
	src.SetCallback(func(frame *VideoFrame) {
		_ = track.WriteFrame(frame)
	})
	track.SetReleaseFunc(func() {
		_ = src.Stop()
	})
	if err := src.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("start %s source: %w", cfg.Kind, err)
	}
	return track, nil
}

// NewSourceAudioTrack starts src and exposes it as an audio track.
func NewSourceAudioTrack(ctx context.Context, src AudioSource, deviceID, label string) (*PushAudioTrack, error) {
	track := NewPushAudioTrack("", label, AudioTrackSettings{
		SampleRate:   src.SampleRate(),
		ChannelCount: src.Channels(),
		DeviceID:     deviceID,
	})
	src.SetCallback(func(samples *AudioSamples) {
		_ = track.WriteSamples(samples)
	})
	track.SetReleaseFunc(func() {
		_ = src.Stop()
	})
	if err := src.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("start audio source: %w", err)
	}
	return track, nil
}
