package screenrec

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
)

// MJPEGEncoder implements VideoEncoder by compressing every frame as a
// standalone JPEG. Every output frame is a keyframe.
type MJPEGEncoder struct {
	config VideoEncoderConfig
	buf    bytes.Buffer

	stats EncoderStats
	mu    sync.Mutex
}

// NewMJPEGEncoder creates a Motion JPEG encoder.
func NewMJPEGEncoder(config VideoEncoderConfig) (*MJPEGEncoder, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", config.Width, config.Height)
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 80
	}
	return &MJPEGEncoder{config: config}, nil
}

// Encode implements VideoEncoder.
func (e *MJPEGEncoder) Encode(frame *VideoFrame) (*EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img := frame.Image()
	if img == nil {
		return nil, fmt.Errorf("unsupported pixel format %s", frame.Format)
	}

	e.buf.Reset()
	if err := imaging.Encode(&e.buf, img, imaging.JPEG, imaging.JPEGQuality(e.config.Quality)); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	e.stats.FramesEncoded++
	e.stats.KeyframesEncoded++
	e.stats.BytesEncoded += uint64(e.buf.Len())

	return &EncodedFrame{
		Data:      e.buf.Bytes(),
		FrameType: FrameTypeKey,
		Timestamp: frame.Timestamp,
	}, nil
}

// RequestKeyframe implements VideoEncoder. Every JPEG frame is a keyframe.
func (e *MJPEGEncoder) RequestKeyframe() {}

func (e *MJPEGEncoder) Provider() Provider         { return ProviderGo }
func (e *MJPEGEncoder) Config() VideoEncoderConfig { return e.config }
func (e *MJPEGEncoder) Codec() VideoCodec          { return VideoCodecMJPEG }

func (e *MJPEGEncoder) Stats() EncoderStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *MJPEGEncoder) Close() error { return nil }

// PCMEncoder implements AudioEncoder by passing S16LE samples through.
type PCMEncoder struct {
	config AudioEncoderConfig

	stats AudioEncoderStats
	mu    sync.Mutex
}

// NewPCMEncoder creates a passthrough PCM encoder.
func NewPCMEncoder(config AudioEncoderConfig) (*PCMEncoder, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.FrameSizeMs <= 0 {
		config.FrameSizeMs = 20
	}
	return &PCMEncoder{config: config}, nil
}

// Encode implements AudioEncoder.
func (e *PCMEncoder) Encode(samples *AudioSamples) (*EncodedAudio, error) {
	pcm := samples.S16()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty audio samples")
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)

	frameSize := len(pcm) / 2 / e.config.Channels

	e.mu.Lock()
	e.stats.FramesEncoded++
	e.stats.BytesEncoded += uint64(len(data))
	e.stats.SamplesEncoded += uint64(frameSize)
	e.mu.Unlock()

	return &EncodedAudio{
		Data:      data,
		Timestamp: samples.Timestamp,
		Duration:  int64(frameSize) * 1e9 / int64(e.config.SampleRate),
	}, nil
}

func (e *PCMEncoder) Provider() Provider         { return ProviderGo }
func (e *PCMEncoder) Config() AudioEncoderConfig { return e.config }
func (e *PCMEncoder) Codec() AudioCodec          { return AudioCodecPCM }

func (e *PCMEncoder) Stats() AudioEncoderStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *PCMEncoder) Close() error { return nil }

func init() {
	registerVideoEncoder(VideoCodecMJPEG, ProviderGo, func(config VideoEncoderConfig) (VideoEncoder, error) {
		return NewMJPEGEncoder(config)
	})
	registerAudioEncoder(AudioCodecPCM, ProviderGo, func(config AudioEncoderConfig) (AudioEncoder, error) {
		return NewPCMEncoder(config)
	})
}
