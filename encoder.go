package screenrec

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrProviderNotFound  = errors.New("provider not available")
	ErrCodecNotSupported = errors.New("codec not supported by provider")
)

// VideoEncoderConfig configures a video encoder.
type VideoEncoderConfig struct {
	Codec    VideoCodec // Codec type (VP8, MJPEG)
	Provider Provider   // Provider to use (ProviderAuto = library chooses)

	Width      int // Frame width
	Height     int // Frame height
	FPS        int // Target framerate
	BitrateBps int // Target bitrate in bits per second

	KeyframeInterval int             // Frames between forced keyframes (0 = encoder default)
	RateControlMode  RateControlMode // Rate control mode
	Threads          int             // Encoder threads (0 = auto)
	Quality          int             // Codec-specific quality (JPEG 1-100, VP8 0-63)
}

// DefaultVideoEncoderConfig returns a default encoder configuration.
func DefaultVideoEncoderConfig(codec VideoCodec, width, height int) VideoEncoderConfig {
	cfg := VideoEncoderConfig{
		Codec:            codec,
		Provider:         ProviderAuto,
		Width:            width,
		Height:           height,
		FPS:              30,
		BitrateBps:       2500000,
		KeyframeInterval: 60,
		RateControlMode:  RateControlVBR,
		Quality:          32,
	}
	if codec == VideoCodecMJPEG {
		cfg.Quality = 80
	}
	return cfg
}

// EncoderStats provides encoding metrics.
type EncoderStats struct {
	FramesEncoded    uint64 // Total frames encoded
	KeyframesEncoded uint64 // Total keyframes encoded
	BytesEncoded     uint64 // Total bytes of encoded data
}

// VideoEncoder encodes raw video frames to compressed bitstream.
type VideoEncoder interface {
	io.Closer

	// Encode encodes a video frame.
	// Returns nil if the encoder is buffering and no output is ready.
	// The returned EncodedFrame data is valid until the next Encode() call.
	Encode(frame *VideoFrame) (*EncodedFrame, error)

	// RequestKeyframe forces the next frame to be a keyframe.
	RequestKeyframe()

	Provider() Provider
	Config() VideoEncoderConfig
	Codec() VideoCodec
	Stats() EncoderStats
}

// AudioEncoderConfig configures an audio encoder.
type AudioEncoderConfig struct {
	Codec    AudioCodec // Codec type (Opus, PCM)
	Provider Provider   // Provider to use (ProviderAuto = library chooses)

	SampleRate  int // Sample rate (e.g., 48000)
	Channels    int // Number of channels (1 or 2)
	BitrateBps  int // Target bitrate in bps
	FrameSizeMs int // Frame size in milliseconds

	// Opus-specific options
	Application int // Opus application (0=VOIP, 1=Audio, 2=LowDelay)
	Complexity  int // Opus complexity (0-10)
}

// DefaultAudioEncoderConfig returns a default audio encoder configuration.
func DefaultAudioEncoderConfig(codec AudioCodec) AudioEncoderConfig {
	return AudioEncoderConfig{
		Codec:       codec,
		Provider:    ProviderAuto,
		SampleRate:  48000,
		Channels:    2,
		BitrateBps:  128000,
		FrameSizeMs: 20,
		Application: 1,
		Complexity:  10,
	}
}

// FrameSamples returns the number of samples per channel in one frame.
func (c AudioEncoderConfig) FrameSamples() int {
	return c.SampleRate * c.FrameSizeMs / 1000
}

// AudioEncoderStats provides audio encoding metrics.
type AudioEncoderStats struct {
	FramesEncoded  uint64
	BytesEncoded   uint64
	SamplesEncoded uint64
}

// AudioEncoder encodes raw audio samples to compressed bitstream. Encode
// expects exactly Config().FrameSamples() samples per channel in S16 format.
type AudioEncoder interface {
	io.Closer
	Encode(samples *AudioSamples) (*EncodedAudio, error)
	Provider() Provider
	Config() AudioEncoderConfig
	Codec() AudioCodec
	Stats() AudioEncoderStats
}

// --- Registry ---

type videoEncoderFactory func(VideoEncoderConfig) (VideoEncoder, error)
type audioEncoderFactory func(AudioEncoderConfig) (AudioEncoder, error)

type encoderRegistry struct {
	mu sync.RWMutex

	// codec -> provider -> factory
	videoProviders map[VideoCodec]map[Provider]videoEncoderFactory
	audioProviders map[AudioCodec]map[Provider]audioEncoderFactory

	videoDefaults map[VideoCodec]Provider
	audioDefaults map[AudioCodec]Provider
}

var globalEncoderRegistry = &encoderRegistry{
	videoProviders: make(map[VideoCodec]map[Provider]videoEncoderFactory),
	audioProviders: make(map[AudioCodec]map[Provider]audioEncoderFactory),
	videoDefaults:  make(map[VideoCodec]Provider),
	audioDefaults:  make(map[AudioCodec]Provider),
}

// registerVideoEncoder registers a video encoder factory for a codec+provider.
func registerVideoEncoder(codec VideoCodec, provider Provider, factory videoEncoderFactory) {
	globalEncoderRegistry.mu.Lock()
	defer globalEncoderRegistry.mu.Unlock()

	if globalEncoderRegistry.videoProviders[codec] == nil {
		globalEncoderRegistry.videoProviders[codec] = make(map[Provider]videoEncoderFactory)
	}
	globalEncoderRegistry.videoProviders[codec][provider] = factory

	if _, exists := globalEncoderRegistry.videoDefaults[codec]; !exists {
		globalEncoderRegistry.videoDefaults[codec] = provider
	}
}

// registerAudioEncoder registers an audio encoder factory for a codec+provider.
func registerAudioEncoder(codec AudioCodec, provider Provider, factory audioEncoderFactory) {
	globalEncoderRegistry.mu.Lock()
	defer globalEncoderRegistry.mu.Unlock()

	if globalEncoderRegistry.audioProviders[codec] == nil {
		globalEncoderRegistry.audioProviders[codec] = make(map[Provider]audioEncoderFactory)
	}
	globalEncoderRegistry.audioProviders[codec][provider] = factory

	if _, exists := globalEncoderRegistry.audioDefaults[codec]; !exists {
		globalEncoderRegistry.audioDefaults[codec] = provider
	}
}

// NewVideoEncoder creates a video encoder.
func NewVideoEncoder(config VideoEncoderConfig) (VideoEncoder, error) {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	providers := globalEncoderRegistry.videoProviders[config.Codec]
	if providers == nil {
		return nil, fmt.Errorf("%w: no providers for %s", ErrCodecNotSupported, config.Codec)
	}

	p := config.Provider
	if p == ProviderAuto {
		p = globalEncoderRegistry.videoDefaults[config.Codec]
	}

	factory, ok := providers[p]
	if !ok || !p.Available() {
		return nil, fmt.Errorf("%w: %s for %s", ErrProviderNotFound, p, config.Codec)
	}

	return factory(config)
}

// NewAudioEncoder creates an audio encoder.
func NewAudioEncoder(config AudioEncoderConfig) (AudioEncoder, error) {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	providers := globalEncoderRegistry.audioProviders[config.Codec]
	if providers == nil {
		return nil, fmt.Errorf("%w: no providers for %s", ErrCodecNotSupported, config.Codec)
	}

	p := config.Provider
	if p == ProviderAuto {
		p = globalEncoderRegistry.audioDefaults[config.Codec]
	}

	factory, ok := providers[p]
	if !ok || !p.Available() {
		return nil, fmt.Errorf("%w: %s for %s", ErrProviderNotFound, p, config.Codec)
	}

	return factory(config)
}

// VideoEncoderAvailable reports whether any available provider encodes codec.
func VideoEncoderAvailable(codec VideoCodec) bool {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	for p := range globalEncoderRegistry.videoProviders[codec] {
		if p.Available() {
			return true
		}
	}
	return false
}

// AudioEncoderAvailable reports whether any available provider encodes codec.
func AudioEncoderAvailable(codec AudioCodec) bool {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	for p := range globalEncoderRegistry.audioProviders[codec] {
		if p.Available() {
			return true
		}
	}
	return false
}
