package screenrec

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"k8s.io/utils/clock"
)

// Options configures a Controller.
type Options struct {
	MimeType  string        // Recording format, "" picks DefaultMimeType()
	Timeslice time.Duration // Chunk interval

	DrawRate       int // Compositor redraws per second
	CaptureRate    int // Composite track frames per second
	OverlayWidth   int
	OverlayHeight  int
	OverlayPadding int

	VideoBitrateBps int
	AudioBitrateBps int

	// Selection is the initial source selection.
	Selection MediaSourceSelection

	// Transcoder post-processes finished recordings. nil skips the step.
	Transcoder       Transcoder
	TranscodeTimeout time.Duration

	EventBuffer int // Per-subscriber event buffer

	Clock   clock.WithTicker
	Logger  *slog.Logger
	Metrics *Metrics
}

// DefaultOptions returns the default controller options.
func DefaultOptions() Options {
	return Options{
		Timeslice:        time.Second,
		DrawRate:         60,
		CaptureRate:      30,
		OverlayWidth:     DefaultOverlayWidth,
		OverlayHeight:    DefaultOverlayHeight,
		OverlayPadding:   DefaultOverlayPadding,
		Selection:        DefaultSelection(),
		TranscodeTimeout: 10 * time.Minute,
		EventBuffer:      64,
	}
}

// LoadOptions reads options from a config file (yaml, toml or json) and
// SCREENREC_* environment variables on top of DefaultOptions. An empty path
// loads the environment only. Logger, Clock and Metrics are left unset.
func LoadOptions(path string) (Options, error) {
	def := DefaultOptions()

	v := viper.New()
	v.SetDefault("mime_type", "")
	v.SetDefault("timeslice", def.Timeslice)
	v.SetDefault("compositor.draw_rate", def.DrawRate)
	v.SetDefault("compositor.capture_rate", def.CaptureRate)
	v.SetDefault("overlay.width", def.OverlayWidth)
	v.SetDefault("overlay.height", def.OverlayHeight)
	v.SetDefault("overlay.padding", def.OverlayPadding)
	v.SetDefault("bitrate.video", 0)
	v.SetDefault("bitrate.audio", 0)
	v.SetDefault("selection.include_audio", def.Selection.IncludeAudio)
	v.SetDefault("selection.include_camera", def.Selection.IncludeCamera)
	v.SetDefault("selection.audio_device", def.Selection.AudioDeviceID)
	v.SetDefault("selection.video_device", def.Selection.VideoDeviceID)
	v.SetDefault("selection.camera_corner", def.Selection.CameraCorner.String())
	v.SetDefault("transcode.kind", "fmp4")
	v.SetDefault("transcode.ffmpeg_path", "")
	v.SetDefault("transcode.timeout", def.TranscodeTimeout)
	v.SetDefault("events.buffer", def.EventBuffer)

	v.SetEnvPrefix("SCREENREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Options{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	opts := def
	opts.MimeType = v.GetString("mime_type")
	opts.Timeslice = v.GetDuration("timeslice")
	opts.DrawRate = v.GetInt("compositor.draw_rate")
	opts.CaptureRate = v.GetInt("compositor.capture_rate")
	opts.OverlayWidth = v.GetInt("overlay.width")
	opts.OverlayHeight = v.GetInt("overlay.height")
	opts.OverlayPadding = v.GetInt("overlay.padding")
	opts.VideoBitrateBps = v.GetInt("bitrate.video")
	opts.AudioBitrateBps = v.GetInt("bitrate.audio")
	opts.TranscodeTimeout = v.GetDuration("transcode.timeout")
	opts.EventBuffer = v.GetInt("events.buffer")

	opts.Selection = MediaSourceSelection{
		IncludeAudio:  v.GetBool("selection.include_audio"),
		IncludeCamera: v.GetBool("selection.include_camera"),
		AudioDeviceID: v.GetString("selection.audio_device"),
		VideoDeviceID: v.GetString("selection.video_device"),
	}
	corner, ok := ParseCorner(v.GetString("selection.camera_corner"))
	if !ok {
		return Options{}, fmt.Errorf("invalid camera corner %q", v.GetString("selection.camera_corner"))
	}
	opts.Selection.CameraCorner = corner

	if opts.MimeType != "" {
		if _, err := ParseMimeType(opts.MimeType); err != nil {
			return Options{}, err
		}
	}

	switch kind := v.GetString("transcode.kind"); kind {
	case "fmp4":
		opts.Transcoder = NewFMP4Transcoder(nil)
	case "ffmpeg":
		t := NewFFmpegTranscoder(nil)
		t.Path = v.GetString("transcode.ffmpeg_path")
		opts.Transcoder = t
	case "none", "":
		opts.Transcoder = nil
	default:
		return Options{}, fmt.Errorf("unknown transcoder %q", kind)
	}
	return opts, nil
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.Timeslice <= 0 {
		o.Timeslice = def.Timeslice
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = def.EventBuffer
	}
	if o.TranscodeTimeout <= 0 {
		o.TranscodeTimeout = def.TranscodeTimeout
	}
	if o.Selection.AudioDeviceID == "" {
		o.Selection.AudioDeviceID = DefaultAudioDeviceID
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}
