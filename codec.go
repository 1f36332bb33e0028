package screenrec

import (
	"github.com/pion/webrtc/v4"
)

// VideoCodec identifies the video codec type.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecVP8
	VideoCodecMJPEG
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecMJPEG:
		return "MJPEG"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecVP8:
		return webrtc.MimeTypeVP8
	case VideoCodecMJPEG:
		return "video/MJPEG"
	default:
		return ""
	}
}

// MatroskaCodecID returns the Matroska CodecID element value.
func (c VideoCodec) MatroskaCodecID() string {
	switch c {
	case VideoCodecVP8:
		return "V_VP8"
	case VideoCodecMJPEG:
		return "V_MJPEG"
	default:
		return ""
	}
}

// codecsParam returns the name used in a container codecs= parameter.
func (c VideoCodec) codecsParam() string {
	switch c {
	case VideoCodecVP8:
		return "vp8"
	case VideoCodecMJPEG:
		return "mjpeg"
	default:
		return ""
	}
}

// AudioCodec identifies the audio codec type.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
	AudioCodecPCM // Signed 16-bit little-endian
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "Opus"
	case AudioCodecPCM:
		return "PCM"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecOpus:
		return webrtc.MimeTypeOpus
	case AudioCodecPCM:
		return "audio/L16"
	default:
		return ""
	}
}

// MatroskaCodecID returns the Matroska CodecID element value.
func (c AudioCodec) MatroskaCodecID() string {
	switch c {
	case AudioCodecOpus:
		return "A_OPUS"
	case AudioCodecPCM:
		return "A_PCM/INT/LIT"
	default:
		return ""
	}
}

func (c AudioCodec) codecsParam() string {
	switch c {
	case AudioCodecOpus:
		return "opus"
	case AudioCodecPCM:
		return "pcm"
	default:
		return ""
	}
}

// ClockRate returns the sample rate the codec runs at.
func (c AudioCodec) ClockRate() int {
	return 48000
}

// RateControlMode defines the encoder rate control mode.
type RateControlMode int

const (
	RateControlVBR RateControlMode = iota // Variable bitrate
	RateControlCBR                        // Constant bitrate
)

func (r RateControlMode) String() string {
	switch r {
	case RateControlVBR:
		return "VBR"
	case RateControlCBR:
		return "CBR"
	default:
		return "Unknown"
	}
}
