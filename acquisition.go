package screenrec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// MediaSourceSelection is the desired source configuration for the next
// session.
type MediaSourceSelection struct {
	IncludeAudio  bool
	IncludeCamera bool
	AudioDeviceID string // DefaultAudioDeviceID selects the system default
	VideoDeviceID string // Empty selects any camera
	CameraCorner  Corner
}

// DefaultSelection returns a screen-only selection with the default
// microphone preselected and the camera in the top left corner.
func DefaultSelection() MediaSourceSelection {
	return MediaSourceSelection{
		AudioDeviceID: DefaultAudioDeviceID,
		CameraCorner:  CornerTopLeft,
	}
}

// RawTrackSet holds the hardware tracks of one session. Release stops each
// of them exactly once.
type RawTrackSet struct {
	Screen VideoTrack
	Camera VideoTrack // nil when the camera is not selected
	Audio  []AudioTrack

	releaseOnce sync.Once
}

// Tracks returns every track in the set.
func (s *RawTrackSet) Tracks() []MediaStreamTrack {
	var out []MediaStreamTrack
	if s.Screen != nil {
		out = append(out, s.Screen)
	}
	if s.Camera != nil {
		out = append(out, s.Camera)
	}
	for _, a := range s.Audio {
		out = append(out, a)
	}
	return out
}

// Release stops all tracks. Repeated calls are no-ops.
func (s *RawTrackSet) Release() {
	s.releaseOnce.Do(func() {
		for _, t := range s.Tracks() {
			t.Stop()
		}
	})
}

// Acquirer opens the screen, camera and microphone for a session.
type Acquirer struct {
	devices *MediaDevices
	logger  *slog.Logger
}

// NewAcquirer creates an acquirer on top of devices.
func NewAcquirer(devices *MediaDevices, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{devices: devices, logger: logger.With("component", "acquirer")}
}

// Acquire prompts for the screen and then opens the selected camera and
// microphone in one request. onScreenEnded runs when the screen track is
// ended from outside, for example from the system's sharing indicator. On
// failure every track opened so far is stopped.
func (a *Acquirer) Acquire(ctx context.Context, sel MediaSourceSelection, onScreenEnded func()) (*RawTrackSet, error) {
	display, err := a.devices.GetDisplayMedia(ctx, DisplayMediaOptions{
		Video: DisplayVideoOptions{DisplaySurface: "monitor", Cursor: "always"},
	})
	if err != nil {
		return nil, err
	}
	screens := display.GetVideoTracks()
	if len(screens) == 0 {
		display.Stop()
		return nil, fmt.Errorf("capture display: %w", ErrDeviceNotFound)
	}
	set := &RawTrackSet{Screen: screens[0]}

	if sel.IncludeAudio || sel.IncludeCamera {
		opts := UserMediaOptions{}
		if sel.IncludeCamera {
			opts.Video = &VideoConstraints{DeviceID: sel.VideoDeviceID}
		}
		if sel.IncludeAudio {
			opts.Audio = &AudioConstraints{DeviceID: sel.AudioDeviceID}
		}
		user, err := a.devices.GetUserMedia(ctx, opts)
		if err != nil {
			set.Release()
			a.logger.Warn("user media failed, screen released", "error", err)
			return nil, err
		}
		if cams := user.GetVideoTracks(); len(cams) > 0 {
			set.Camera = cams[0]
		}
		set.Audio = user.GetAudioTracks()
	}

	if onScreenEnded != nil {
		set.Screen.OnEnded(onScreenEnded)
	}

	a.logger.Info("sources acquired",
		"screen", set.Screen.Label(),
		"camera", set.Camera != nil,
		"audio_tracks", len(set.Audio))
	return set, nil
}

// acquisitionError reports whether err came from the device layer and so
// maps to one of the device error kinds.
func acquisitionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrUserCancelled)
}
