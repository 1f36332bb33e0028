package screenrec

import (
	"fmt"
	"mime"
	"strings"
)

// Container identifies the recording container.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerWebM
	ContainerMatroska
)

func (c Container) String() string {
	switch c {
	case ContainerWebM:
		return "webm"
	case ContainerMatroska:
		return "matroska"
	default:
		return "unknown"
	}
}

// MediaType returns the container MIME type without parameters.
func (c Container) MediaType() string {
	switch c {
	case ContainerWebM:
		return "video/webm"
	case ContainerMatroska:
		return "video/x-matroska"
	default:
		return ""
	}
}

// Extension returns the file extension without the dot.
func (c Container) Extension() string {
	switch c {
	case ContainerWebM:
		return "webm"
	case ContainerMatroska:
		return "mkv"
	default:
		return "bin"
	}
}

// RecordingFormat is a container plus codec combination.
type RecordingFormat struct {
	Container Container
	Video     VideoCodec
	Audio     AudioCodec
}

// Built-in recording formats, in order of preference.
var (
	FormatWebMVP8Opus      = RecordingFormat{ContainerWebM, VideoCodecVP8, AudioCodecOpus}
	FormatMatroskaMJPEGPCM = RecordingFormat{ContainerMatroska, VideoCodecMJPEG, AudioCodecPCM}
)

var preferredFormats = []RecordingFormat{FormatWebMVP8Opus, FormatMatroskaMJPEGPCM}

// MimeType returns the full MIME type, e.g. "video/webm;codecs=vp8,opus".
func (f RecordingFormat) MimeType() string {
	return fmt.Sprintf("%s;codecs=%s,%s", f.Container.MediaType(), f.Video.codecsParam(), f.Audio.codecsParam())
}

func (f RecordingFormat) String() string { return f.MimeType() }

// validate checks that the container can carry the codecs.
func (f RecordingFormat) validate() error {
	switch f.Container {
	case ContainerWebM:
		if f.Video != VideoCodecVP8 || f.Audio != AudioCodecOpus {
			return fmt.Errorf("%w: webm carries only vp8 and opus", ErrUnsupportedFormat)
		}
	case ContainerMatroska:
		if f.Video == VideoCodecUnknown || f.Audio == AudioCodecUnknown {
			return fmt.Errorf("%w: unknown codec", ErrUnsupportedFormat)
		}
	default:
		return fmt.Errorf("%w: unknown container", ErrUnsupportedFormat)
	}
	return nil
}

// Available reports whether f can be recorded on this platform. Audio
// encoders are only required when withAudio is set.
func (f RecordingFormat) Available(withAudio bool) error {
	if err := f.validate(); err != nil {
		return err
	}
	if !VideoEncoderAvailable(f.Video) {
		return fmt.Errorf("%w: no %s encoder available", ErrUnsupportedFormat, f.Video)
	}
	if withAudio && !AudioEncoderAvailable(f.Audio) {
		return fmt.Errorf("%w: no %s encoder available", ErrUnsupportedFormat, f.Audio)
	}
	return nil
}

// ParseMimeType parses a recording MIME type. Without a codecs parameter the
// container's default codecs are used.
func ParseMimeType(s string) (RecordingFormat, error) {
	mediaType, params, err := mime.ParseMediaType(s)
	if err != nil {
		return RecordingFormat{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedFormat, s, err)
	}

	var f RecordingFormat
	switch mediaType {
	case "video/webm":
		f = FormatWebMVP8Opus
	case "video/x-matroska", "video/matroska":
		f = FormatMatroskaMJPEGPCM
	default:
		return RecordingFormat{}, fmt.Errorf("%w: container %q", ErrUnsupportedFormat, mediaType)
	}

	if codecs, ok := params["codecs"]; ok {
		f.Video, f.Audio = VideoCodecUnknown, AudioCodecUnknown
		for _, name := range strings.Split(codecs, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "vp8":
				f.Video = VideoCodecVP8
			case "mjpeg":
				f.Video = VideoCodecMJPEG
			case "opus":
				f.Audio = AudioCodecOpus
			case "pcm":
				f.Audio = AudioCodecPCM
			default:
				return RecordingFormat{}, fmt.Errorf("%w: codec %q", ErrUnsupportedFormat, name)
			}
		}
		if f.Audio == AudioCodecUnknown {
			f.Audio = preferredAudio(f.Container)
		}
	}

	if err := f.validate(); err != nil {
		return RecordingFormat{}, err
	}
	return f, nil
}

func preferredAudio(c Container) AudioCodec {
	if c == ContainerWebM {
		return AudioCodecOpus
	}
	return AudioCodecPCM
}

// IsTypeSupported reports whether mimeType can be recorded with audio on
// this platform, like MediaRecorder.isTypeSupported.
func IsTypeSupported(mimeType string) bool {
	f, err := ParseMimeType(mimeType)
	if err != nil {
		return false
	}
	return f.Available(true) == nil
}

// DefaultMimeType returns the most preferred recordable MIME type, or "" if
// none is available.
func DefaultMimeType() string {
	for _, f := range preferredFormats {
		if f.Available(true) == nil {
			return f.MimeType()
		}
	}
	return ""
}
