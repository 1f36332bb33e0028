package screenrec

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"k8s.io/utils/clock"
)

// VirtualDevice is a device exposed by VirtualDeviceProvider.
type VirtualDevice struct {
	ID    string
	Label string
}

// VirtualDeviceConfig configures a VirtualDeviceProvider.
type VirtualDeviceConfig struct {
	ScreenWidth   int
	ScreenHeight  int
	ScreenFPS     int
	ScreenPattern PatternType

	CameraWidth  int
	CameraHeight int
	CameraFPS    int

	Cameras     []VirtualDevice
	Microphones []VirtualDevice

	// Clock drives every synthetic source. Defaults to the real clock.
	Clock clock.WithTicker
}

// DefaultVirtualDeviceConfig returns a 1920x1080 screen, one camera and one
// microphone.
func DefaultVirtualDeviceConfig() VirtualDeviceConfig {
	return VirtualDeviceConfig{
		ScreenWidth:   1920,
		ScreenHeight:  1080,
		ScreenFPS:     30,
		ScreenPattern: PatternMovingBox,
		CameraWidth:   640,
		CameraHeight:  480,
		CameraFPS:     30,
		Cameras:       []VirtualDevice{{ID: "virtual-camera-0", Label: "Virtual Camera"}},
		Microphones:   []VirtualDevice{{ID: "virtual-mic-0", Label: "Virtual Microphone"}},
	}
}

// VirtualDeviceProvider is a DeviceProvider backed by synthetic pattern and
// tone sources. Its knobs reproduce what real hardware and browsers do to a
// recorder: denied permissions, dismissed share prompts, hidden labels, hot
// plugging and the user ending a screen share from outside the application.
type VirtualDeviceProvider struct {
	cfg VirtualDeviceConfig

	mu            sync.Mutex
	cameras       []VirtualDevice
	microphones   []VirtualDevice
	denied        map[CaptureKind]bool
	cancelDisplay bool
	hideLabels    bool
	live          map[string]MediaStreamTrack
	displays      []*PushVideoTrack
	onChange      func()
}

// NewVirtualDeviceProvider creates a provider. Zero config fields take the
// DefaultVirtualDeviceConfig values, except the device lists which are used
// as given.
func NewVirtualDeviceProvider(cfg VirtualDeviceConfig) *VirtualDeviceProvider {
	def := DefaultVirtualDeviceConfig()
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		cfg.ScreenWidth, cfg.ScreenHeight = def.ScreenWidth, def.ScreenHeight
	}
	if cfg.ScreenFPS <= 0 {
		cfg.ScreenFPS = def.ScreenFPS
	}
	if cfg.CameraWidth <= 0 || cfg.CameraHeight <= 0 {
		cfg.CameraWidth, cfg.CameraHeight = def.CameraWidth, def.CameraHeight
	}
	if cfg.CameraFPS <= 0 {
		cfg.CameraFPS = def.CameraFPS
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	return &VirtualDeviceProvider{
		cfg:         cfg,
		cameras:     slices.Clone(cfg.Cameras),
		microphones: slices.Clone(cfg.Microphones),
		denied:      make(map[CaptureKind]bool),
		live:        make(map[string]MediaStreamTrack),
	}
}

// DenyPermission makes opening devices of kind fail with ErrPermissionDenied.
func (p *VirtualDeviceProvider) DenyPermission(kind CaptureKind, deny bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied[kind] = deny
}

// CancelDisplayPrompt makes CaptureDisplay fail with ErrUserCancelled, as if
// the user dismissed the share chooser.
func (p *VirtualDeviceProvider) CancelDisplayPrompt(cancel bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelDisplay = cancel
}

// HideLabels reports empty device labels, as browsers do before any
// permission grant.
func (p *VirtualDeviceProvider) HideLabels(hide bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hideLabels = hide
}

// OnDeviceChange sets the callback run after Plug and Unplug.
func (p *VirtualDeviceProvider) OnDeviceChange(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = cb
}

// Plug adds a device.
func (p *VirtualDeviceProvider) Plug(kind DeviceKind, dev VirtualDevice) {
	p.mu.Lock()
	if kind == DeviceKindVideoInput {
		p.cameras = append(p.cameras, dev)
	} else {
		p.microphones = append(p.microphones, dev)
	}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Unplug removes a device. Tracks already open on it keep running.
func (p *VirtualDeviceProvider) Unplug(kind DeviceKind, id string) {
	p.mu.Lock()
	match := func(d VirtualDevice) bool { return d.ID == id }
	if kind == DeviceKindVideoInput {
		p.cameras = slices.DeleteFunc(p.cameras, match)
	} else {
		p.microphones = slices.DeleteFunc(p.microphones, match)
	}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// EndDisplayCapture ends every open display track as if the user pressed the
// system "stop sharing" control. It returns the number of tracks ended.
func (p *VirtualDeviceProvider) EndDisplayCapture() int {
	p.mu.Lock()
	displays := p.displays
	p.displays = nil
	p.mu.Unlock()

	n := 0
	for _, t := range displays {
		if t.State() == TrackStateLive {
			n++
		}
		t.End()
	}
	return n
}

// LiveTracks returns the tracks that still hold a device.
func (p *VirtualDeviceProvider) LiveTracks() []MediaStreamTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MediaStreamTrack, 0, len(p.live))
	for _, t := range p.live {
		out = append(out, t)
	}
	return out
}

func (p *VirtualDeviceProvider) list(devs []VirtualDevice, kind DeviceKind) []DeviceInfo {
	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		label := d.Label
		if p.hideLabels {
			label = ""
		}
		out = append(out, DeviceInfo{DeviceID: d.ID, GroupID: d.ID, Kind: kind, Label: label})
	}
	return out
}

func (p *VirtualDeviceProvider) ListVideoDevices(ctx context.Context) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list(p.cameras, DeviceKindVideoInput), nil
}

func (p *VirtualDeviceProvider) ListAudioInputDevices(ctx context.Context) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list(p.microphones, DeviceKindAudioInput), nil
}

func (p *VirtualDeviceProvider) lookup(devs []VirtualDevice, id string) (VirtualDevice, error) {
	if len(devs) == 0 {
		return VirtualDevice{}, fmt.Errorf("%w: none connected", ErrDeviceNotFound)
	}
	if id == "" {
		return devs[0], nil
	}
	for _, d := range devs {
		if d.ID == id {
			return d, nil
		}
	}
	return VirtualDevice{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
}

func (p *VirtualDeviceProvider) OpenVideoDevice(ctx context.Context, deviceID string, constraints *VideoConstraints) (VideoTrack, error) {
	p.mu.Lock()
	denied := p.denied[CaptureKindCamera]
	dev, err := p.lookup(p.cameras, deviceID)
	p.mu.Unlock()
	if denied {
		return nil, fmt.Errorf("camera: %w", ErrPermissionDenied)
	}
	if err != nil {
		return nil, err
	}

	cfg := TestPatternConfig{
		Width:   p.cfg.CameraWidth,
		Height:  p.cfg.CameraHeight,
		FPS:     p.cfg.CameraFPS,
		Pattern: PatternCheckerboard,
		Kind:    CaptureKindCamera,
		Clock:   p.cfg.Clock,
	}
	if constraints != nil {
		if constraints.Width > 0 && constraints.Height > 0 {
			cfg.Width, cfg.Height = constraints.Width, constraints.Height
		}
		if constraints.FrameRate > 0 {
			cfg.FPS = constraints.FrameRate
		}
	}
	return p.openVideo(ctx, NewTestPatternSource(cfg), dev.ID, dev.Label)
}

func (p *VirtualDeviceProvider) OpenAudioDevice(ctx context.Context, deviceID string, constraints *AudioConstraints) (AudioTrack, error) {
	p.mu.Lock()
	denied := p.denied[CaptureKindAudio]
	dev, err := p.lookup(p.microphones, deviceID)
	p.mu.Unlock()
	if denied {
		return nil, fmt.Errorf("microphone: %w", ErrPermissionDenied)
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultToneConfig()
	cfg.Clock = p.cfg.Clock
	if constraints != nil {
		if constraints.SampleRate > 0 {
			cfg.SampleRate = constraints.SampleRate
			cfg.FrameSize = constraints.SampleRate / 50
		}
		if constraints.ChannelCount > 0 {
			cfg.Channels = constraints.ChannelCount
		}
	}
	src := NewToneSource(cfg)
	track, err := NewSourceAudioTrack(ctx, src, dev.ID, dev.Label)
	if err != nil {
		return nil, err
	}
	p.hold(track, func() { _ = src.Stop() })
	return track, nil
}

func (p *VirtualDeviceProvider) CaptureDisplay(ctx context.Context, options DisplayVideoOptions) (VideoTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCancelled, err)
	}
	p.mu.Lock()
	denied, cancelled := p.denied[CaptureKindScreen], p.cancelDisplay
	p.mu.Unlock()
	if denied {
		return nil, fmt.Errorf("display: %w", ErrPermissionDenied)
	}
	if cancelled {
		return nil, ErrUserCancelled
	}

	fps := p.cfg.ScreenFPS
	if options.FrameRate > 0 {
		fps = options.FrameRate
	}
	src := NewTestPatternSource(TestPatternConfig{
		Width:   p.cfg.ScreenWidth,
		Height:  p.cfg.ScreenHeight,
		FPS:     fps,
		Pattern: p.cfg.ScreenPattern,
		Kind:    CaptureKindScreen,
		Clock:   p.cfg.Clock,
	})
	track, err := p.openVideo(ctx, src, "screen:0", "Entire Screen")
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.displays = append(p.displays, track)
	p.mu.Unlock()
	return track, nil
}

func (p *VirtualDeviceProvider) openVideo(ctx context.Context, src *TestPatternSource, deviceID, label string) (*PushVideoTrack, error) {
	track, err := NewSourceVideoTrack(ctx, src, deviceID, label)
	if err != nil {
		return nil, err
	}
	p.hold(track, func() { _ = src.Stop() })
	return track, nil
}

// hold records track as live until it is released.
func (p *VirtualDeviceProvider) hold(track interface {
	MediaStreamTrack
	SetReleaseFunc(func())
}, stop func()) {
	p.mu.Lock()
	p.live[track.ID()] = track
	p.mu.Unlock()

	track.SetReleaseFunc(func() {
		stop()
		p.mu.Lock()
		delete(p.live, track.ID())
		p.mu.Unlock()
	})
}

var _ DeviceProvider = (*VirtualDeviceProvider)(nil)
