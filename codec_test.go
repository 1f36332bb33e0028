package screenrec

import (
	"errors"
	"testing"
)

func TestVideoCodec_String(t *testing.T) {
	tests := []struct {
		codec VideoCodec
		want  string
	}{
		{VideoCodecVP8, "VP8"},
		{VideoCodecMJPEG, "MJPEG"},
		{VideoCodecUnknown, "Unknown"},
		{VideoCodec(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.codec.String(); got != tt.want {
				t.Errorf("VideoCodec.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodec_MatroskaCodecID(t *testing.T) {
	if got := VideoCodecVP8.MatroskaCodecID(); got != "V_VP8" {
		t.Errorf("VP8 codec ID = %q", got)
	}
	if got := VideoCodecMJPEG.MatroskaCodecID(); got != "V_MJPEG" {
		t.Errorf("MJPEG codec ID = %q", got)
	}
	if got := AudioCodecOpus.MatroskaCodecID(); got != "A_OPUS" {
		t.Errorf("Opus codec ID = %q", got)
	}
	if got := AudioCodecPCM.MatroskaCodecID(); got != "A_PCM/INT/LIT" {
		t.Errorf("PCM codec ID = %q", got)
	}
	if got := AudioCodecUnknown.MatroskaCodecID(); got != "" {
		t.Errorf("unknown codec ID = %q, want empty", got)
	}
}

func TestAudioCodec_MimeType(t *testing.T) {
	tests := []struct {
		codec AudioCodec
		want  string
	}{
		{AudioCodecOpus, "audio/opus"},
		{AudioCodecPCM, "audio/L16"},
		{AudioCodecUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			if got := tt.codec.MimeType(); got != tt.want {
				t.Errorf("AudioCodec.MimeType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordingFormat_MimeType(t *testing.T) {
	if got := FormatWebMVP8Opus.MimeType(); got != "video/webm;codecs=vp8,opus" {
		t.Errorf("webm MIME type = %q", got)
	}
	if got := FormatMatroskaMJPEGPCM.MimeType(); got != "video/x-matroska;codecs=mjpeg,pcm" {
		t.Errorf("matroska MIME type = %q", got)
	}
}

func TestParseMimeType(t *testing.T) {
	tests := []struct {
		in      string
		want    RecordingFormat
		wantErr bool
	}{
		{"video/webm", FormatWebMVP8Opus, false},
		{"video/webm;codecs=vp8,opus", FormatWebMVP8Opus, false},
		{"video/webm; codecs=\"vp8, opus\"", FormatWebMVP8Opus, false},
		{"video/webm;codecs=vp8", FormatWebMVP8Opus, false},
		{"video/x-matroska", FormatMatroskaMJPEGPCM, false},
		{"video/matroska;codecs=mjpeg,pcm", FormatMatroskaMJPEGPCM, false},
		{"video/x-matroska;codecs=vp8,opus", RecordingFormat{ContainerMatroska, VideoCodecVP8, AudioCodecOpus}, false},
		{"video/webm;codecs=mjpeg", RecordingFormat{}, true},
		{"video/webm;codecs=h264", RecordingFormat{}, true},
		{"video/mp4", RecordingFormat{}, true},
		{"not a mime type", RecordingFormat{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMimeType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("ParseMimeType(%q) error = %v, want ErrUnsupportedFormat", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMimeType(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMimeType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatroskaFormatAlwaysAvailable(t *testing.T) {
	// The Go MJPEG and PCM encoders need no system libraries.
	if err := FormatMatroskaMJPEGPCM.Available(true); err != nil {
		t.Fatalf("matroska format unavailable: %v", err)
	}
	if !IsTypeSupported("video/x-matroska;codecs=mjpeg,pcm") {
		t.Error("IsTypeSupported(matroska) = false")
	}
	if IsTypeSupported("video/mp4") {
		t.Error("IsTypeSupported(mp4) = true")
	}
	if DefaultMimeType() == "" {
		t.Error("DefaultMimeType() is empty")
	}
}

func TestContainer_Extension(t *testing.T) {
	tests := []struct {
		c    Container
		want string
	}{
		{ContainerWebM, "webm"},
		{ContainerMatroska, "mkv"},
		{ContainerUnknown, "bin"},
	}
	for _, tt := range tests {
		if got := tt.c.Extension(); got != tt.want {
			t.Errorf("%v.Extension() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestRateControlMode_String(t *testing.T) {
	if RateControlVBR.String() != "VBR" || RateControlCBR.String() != "CBR" {
		t.Error("unexpected rate control names")
	}
	if RateControlMode(9).String() != "Unknown" {
		t.Error("out of range mode should be Unknown")
	}
}
