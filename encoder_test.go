package screenrec

import (
	"bytes"
	"errors"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestMJPEGEncoder(t *testing.T) {
	enc, err := NewVideoEncoder(DefaultVideoEncoderConfig(VideoCodecMJPEG, 64, 48))
	if err != nil {
		t.Fatalf("NewVideoEncoder failed: %v", err)
	}
	defer enc.Close()

	if enc.Provider() != ProviderGo {
		t.Errorf("Provider() = %s, want go", enc.Provider())
	}

	frame := solidFrame(64, 48, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	frame.Timestamp = 42
	out, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !out.IsKeyframe() {
		t.Error("MJPEG frames should all be keyframes")
	}
	if out.Timestamp != 42 {
		t.Errorf("Timestamp = %d, want 42", out.Timestamp)
	}

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded size = %dx%d, want 64x48", b.Dx(), b.Dy())
	}

	if s := enc.Stats(); s.FramesEncoded != 1 || s.KeyframesEncoded != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMJPEGEncoder_I420Input(t *testing.T) {
	enc, err := NewMJPEGEncoder(DefaultVideoEncoderConfig(VideoCodecMJPEG, 4, 2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Encode(solidFrame(4, 2, color.RGBA{R: 255, A: 255}).ToI420()); err != nil {
		t.Errorf("Encode(I420) failed: %v", err)
	}
}

func TestNewMJPEGEncoder_InvalidSize(t *testing.T) {
	if _, err := NewMJPEGEncoder(VideoEncoderConfig{Width: 0, Height: 10}); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestPCMEncoder(t *testing.T) {
	cfg := DefaultAudioEncoderConfig(AudioCodecPCM)
	cfg.Channels = 1
	enc, err := NewAudioEncoder(cfg)
	if err != nil {
		t.Fatalf("NewAudioEncoder failed: %v", err)
	}
	defer enc.Close()

	samples := &AudioSamples{
		Data:        make([]byte, cfg.FrameSamples()*2),
		SampleRate:  48000,
		Channels:    1,
		SampleCount: cfg.FrameSamples(),
		Format:      AudioFormatS16,
	}
	samples.Data[0] = 0x7f

	out, err := enc.Encode(samples)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out.Data, samples.Data) {
		t.Error("PCM output should equal S16 input")
	}
	samples.Data[0] = 0
	if out.Data[0] != 0x7f {
		t.Error("PCM output must not alias the input")
	}
	if out.Duration != 20_000_000 {
		t.Errorf("Duration = %d, want 20ms", out.Duration)
	}

	if _, err := enc.Encode(&AudioSamples{Format: AudioFormatS16}); err == nil {
		t.Error("expected error for empty samples")
	}
}

func TestEncoderRegistry_Unavailable(t *testing.T) {
	cfg := DefaultVideoEncoderConfig(VideoCodecMJPEG, 16, 16)
	cfg.Provider = ProviderLibvpx
	if _, err := NewVideoEncoder(cfg); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("err = %v, want ErrProviderNotFound", err)
	}

	if !VideoEncoderAvailable(VideoCodecMJPEG) || !AudioEncoderAvailable(AudioCodecPCM) {
		t.Error("pure Go encoders must always be available")
	}
}

func TestVP8Encoder(t *testing.T) {
	if !VideoEncoderAvailable(VideoCodecVP8) {
		t.Skip("libmedia_vpx not available")
	}
	enc, err := NewVideoEncoder(DefaultVideoEncoderConfig(VideoCodecVP8, 64, 48))
	if err != nil {
		t.Fatalf("NewVideoEncoder failed: %v", err)
	}
	defer enc.Close()

	out, err := enc.Encode(solidFrame(64, 48, color.RGBA{B: 255, A: 255}).ToI420())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if out == nil || !out.IsKeyframe() {
		t.Error("first VP8 frame should be a keyframe")
	}
}

func TestOpusEncoder(t *testing.T) {
	if !AudioEncoderAvailable(AudioCodecOpus) {
		t.Skip("libstream_opus not available")
	}
	cfg := DefaultAudioEncoderConfig(AudioCodecOpus)
	enc, err := NewAudioEncoder(cfg)
	if err != nil {
		t.Fatalf("NewAudioEncoder failed: %v", err)
	}
	defer enc.Close()

	out, err := enc.Encode(&AudioSamples{
		Data:        make([]byte, cfg.FrameSamples()*cfg.Channels*2),
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		SampleCount: cfg.FrameSamples(),
		Format:      AudioFormatS16,
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if out == nil || len(out.Data) == 0 {
		t.Error("expected an Opus packet")
	}
}
