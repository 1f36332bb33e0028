package screenrec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DeviceKind represents the type of media device.
type DeviceKind int

const (
	DeviceKindVideoInput DeviceKind = iota // Camera
	DeviceKindAudioInput                   // Microphone
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceKindVideoInput:
		return "videoinput"
	case DeviceKindAudioInput:
		return "audioinput"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a media device (like browser's MediaDeviceInfo).
type DeviceInfo struct {
	DeviceID string     // Unique identifier for the device
	GroupID  string     // Group identifier (devices with same groupID belong together)
	Kind     DeviceKind // Device type
	Label    string     // Human-readable device name, empty before a permission grant
}

// DeviceDescriptor is the snapshot handed to the presentation layer. It goes
// stale when devices are plugged or unplugged.
type DeviceDescriptor struct {
	Label string
	ID    string
	Kind  DeviceKind
}

// DisplayName returns the label, or a numbered placeholder such as
// "Camera 2" when the label is empty. index is zero-based.
func (d DeviceDescriptor) DisplayName(index int) string {
	if d.Label != "" {
		return d.Label
	}
	switch d.Kind {
	case DeviceKindVideoInput:
		return fmt.Sprintf("Camera %d", index+1)
	case DeviceKindAudioInput:
		return fmt.Sprintf("Microphone %d", index+1)
	default:
		return fmt.Sprintf("Device %d", index+1)
	}
}

// DefaultAudioDeviceID selects the system default microphone.
const DefaultAudioDeviceID = "default"

// DisplayVideoOptions configures display capture video.
type DisplayVideoOptions struct {
	DisplaySurface string // "monitor", "window", "browser"
	Cursor         string // "always", "motion", "never"
	FrameRate      int    // Requested framerate
}

// DisplayMediaOptions configures getDisplayMedia (screen capture).
type DisplayMediaOptions struct {
	Video DisplayVideoOptions
}

// VideoConstraints for getUserMedia video.
type VideoConstraints struct {
	DeviceID  string // Specific device ID, empty for any
	Width     int    // Requested width
	Height    int    // Requested height
	FrameRate int    // Requested framerate
}

// AudioConstraints for getUserMedia audio.
type AudioConstraints struct {
	DeviceID     string // Specific device ID, empty or "default" for any
	SampleRate   int    // Requested sample rate
	ChannelCount int    // Requested channels
}

// UserMediaOptions configures getUserMedia.
type UserMediaOptions struct {
	Video *VideoConstraints // nil = no video
	Audio *AudioConstraints // nil = no audio
}

// DeviceProvider is implemented by platform-specific device implementations.
// Errors should wrap ErrPermissionDenied, ErrDeviceNotFound or
// ErrUserCancelled where they apply.
type DeviceProvider interface {
	// ListVideoDevices returns available video input devices.
	ListVideoDevices(ctx context.Context) ([]DeviceInfo, error)

	// ListAudioInputDevices returns available audio input devices.
	ListAudioInputDevices(ctx context.Context) ([]DeviceInfo, error)

	// OpenVideoDevice opens a video input device.
	OpenVideoDevice(ctx context.Context, deviceID string, constraints *VideoConstraints) (VideoTrack, error)

	// OpenAudioDevice opens an audio input device.
	OpenAudioDevice(ctx context.Context, deviceID string, constraints *AudioConstraints) (AudioTrack, error)

	// CaptureDisplay prompts the user to pick a screen or window and captures it.
	CaptureDisplay(ctx context.Context, options DisplayVideoOptions) (VideoTrack, error)
}

// DeviceChangeNotifier is implemented by providers that detect hot plugging.
type DeviceChangeNotifier interface {
	OnDeviceChange(callback func())
}

// MediaDevices provides access to media input devices (like navigator.mediaDevices).
type MediaDevices struct {
	provider DeviceProvider
	logger   *slog.Logger

	deviceChangeCb func()
	mu             sync.RWMutex
}

// NewMediaDevices wraps provider. A nil logger uses slog.Default().
func NewMediaDevices(provider DeviceProvider, logger *slog.Logger) *MediaDevices {
	if logger == nil {
		logger = slog.Default()
	}
	d := &MediaDevices{
		provider: provider,
		logger:   logger.With("component", "devices"),
	}
	if n, ok := provider.(DeviceChangeNotifier); ok {
		n.OnDeviceChange(d.NotifyDeviceChange)
	}
	return d
}

// Provider returns the wrapped provider.
func (d *MediaDevices) Provider() DeviceProvider { return d.provider }

// EnumerateDevices returns the current list of input devices. Nothing is
// cached; every call queries the provider.
func (d *MediaDevices) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	videoDevices, err := d.provider.ListVideoDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list video devices: %w", err)
	}
	audioDevices, err := d.provider.ListAudioInputDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	return append(videoDevices, audioDevices...), nil
}

// ListAudioInputs returns the microphones currently present.
func (d *MediaDevices) ListAudioInputs(ctx context.Context) ([]DeviceDescriptor, error) {
	devices, err := d.provider.ListAudioInputDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audio inputs: %w", err)
	}
	return descriptors(devices, DeviceKindAudioInput), nil
}

// ListVideoInputs returns the cameras currently present.
func (d *MediaDevices) ListVideoInputs(ctx context.Context) ([]DeviceDescriptor, error) {
	devices, err := d.provider.ListVideoDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list video inputs: %w", err)
	}
	return descriptors(devices, DeviceKindVideoInput), nil
}

func descriptors(devices []DeviceInfo, kind DeviceKind) []DeviceDescriptor {
	out := make([]DeviceDescriptor, 0, len(devices))
	for _, dev := range devices {
		if dev.Kind != kind {
			continue
		}
		out = append(out, DeviceDescriptor{Label: dev.Label, ID: dev.DeviceID, Kind: kind})
	}
	return out
}

// GetUserMedia opens the requested camera and/or microphone. If any device
// fails to open, the ones already opened are stopped before returning.
func (d *MediaDevices) GetUserMedia(ctx context.Context, options UserMediaOptions) (*SimpleMediaStream, error) {
	stream := NewMediaStream("")

	if options.Video != nil {
		videoTrack, err := d.provider.OpenVideoDevice(ctx, options.Video.DeviceID, options.Video)
		if err != nil {
			return nil, fmt.Errorf("open video device: %w", err)
		}
		stream.AddTrack(videoTrack)
	}

	if options.Audio != nil {
		deviceID := options.Audio.DeviceID
		if deviceID == DefaultAudioDeviceID {
			deviceID = ""
		}
		audioTrack, err := d.provider.OpenAudioDevice(ctx, deviceID, options.Audio)
		if err != nil {
			stream.Stop()
			return nil, fmt.Errorf("open audio device: %w", err)
		}
		stream.AddTrack(audioTrack)
	}

	d.logger.Debug("user media opened",
		"stream", stream.ID(),
		"video", len(stream.GetVideoTracks()),
		"audio", len(stream.GetAudioTracks()))
	return stream, nil
}

// GetDisplayMedia prompts for a screen or window and returns its video track
// in a stream.
func (d *MediaDevices) GetDisplayMedia(ctx context.Context, options DisplayMediaOptions) (*SimpleMediaStream, error) {
	videoTrack, err := d.provider.CaptureDisplay(ctx, options.Video)
	if err != nil {
		return nil, fmt.Errorf("capture display: %w", err)
	}
	stream := NewMediaStream("", videoTrack)
	d.logger.Debug("display media opened", "stream", stream.ID(), "track", videoTrack.Label())
	return stream, nil
}

// OnDeviceChange sets a callback for device connection/disconnection events.
func (d *MediaDevices) OnDeviceChange(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deviceChangeCb = callback
}

// NotifyDeviceChange should be called by DeviceProvider when devices change.
func (d *MediaDevices) NotifyDeviceChange() {
	d.mu.RLock()
	cb := d.deviceChangeCb
	d.mu.RUnlock()

	if cb != nil {
		go cb()
	}
}
