//go:build (darwin || linux) && !noopus

// Opus encoding via libstream_opus loaded at runtime with purego.

package screenrec

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	streamOpusOnce    sync.Once
	streamOpusInitErr error
)

// libstream_opus function pointers
var (
	streamOpusEncoderCreate        func(sampleRate, channels, application int32) uint64
	streamOpusEncoderEncode        func(encoder uint64, pcm uintptr, frameSize int32, outData uintptr, outCapacity int32) int32
	streamOpusEncoderSetBitrate    func(encoder uint64, bitrate int32) int32
	streamOpusEncoderSetComplexity func(encoder uint64, complexity int32) int32
	streamOpusEncoderDestroy       func(encoder uint64)

	streamOpusGetError   func() uintptr
	streamOpusGetVersion func() uintptr
)

const (
	streamOpusApplicationVOIP     = 2048
	streamOpusApplicationAudio    = 2049
	streamOpusApplicationLowDelay = 2051

	opusMaxPacket = 4000
)

func loadStreamOpus() error {
	streamOpusOnce.Do(func() {
		_, streamOpusInitErr = dlopenFirst("libstream_opus", nativeLibPaths("stream_opus", "STREAM_OPUS_LIB_PATH"), func(h uintptr) error {
			purego.RegisterLibFunc(&streamOpusEncoderCreate, h, "stream_opus_encoder_create")
			purego.RegisterLibFunc(&streamOpusEncoderEncode, h, "stream_opus_encoder_encode")
			purego.RegisterLibFunc(&streamOpusEncoderSetBitrate, h, "stream_opus_encoder_set_bitrate")
			purego.RegisterLibFunc(&streamOpusEncoderSetComplexity, h, "stream_opus_encoder_set_complexity")
			purego.RegisterLibFunc(&streamOpusEncoderDestroy, h, "stream_opus_encoder_destroy")
			purego.RegisterLibFunc(&streamOpusGetError, h, "stream_opus_get_error")
			purego.RegisterLibFunc(&streamOpusGetVersion, h, "stream_opus_get_version")
			return nil
		})
	})
	return streamOpusInitErr
}

// IsOpusAvailable checks if libstream_opus can be loaded.
func IsOpusAvailable() bool {
	return loadStreamOpus() == nil
}

// GetOpusVersion returns the libopus version string.
func GetOpusVersion() string {
	if !IsOpusAvailable() {
		return ""
	}
	return goStringFromPtr(streamOpusGetVersion())
}

func getOpusError() string {
	ptr := streamOpusGetError()
	if ptr == 0 {
		return "unknown error"
	}
	return goStringFromPtr(ptr)
}

// OpusEncoder implements AudioEncoder for Opus.
type OpusEncoder struct {
	config AudioEncoderConfig

	handle    uint64
	outputBuf []byte
	pcmBuf    []int16

	stats   AudioEncoderStats
	statsMu sync.Mutex
	mu      sync.Mutex
}

// NewOpusEncoder creates a new Opus encoder.
func NewOpusEncoder(config AudioEncoderConfig) (*OpusEncoder, error) {
	if err := loadStreamOpus(); err != nil {
		return nil, fmt.Errorf("Opus encoder not available: %w", err)
	}

	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.Channels > 2 {
		return nil, fmt.Errorf("Opus supports max 2 channels, got %d", config.Channels)
	}
	if config.FrameSizeMs <= 0 {
		config.FrameSizeMs = 20
	}

	application := int32(streamOpusApplicationAudio)
	switch config.Application {
	case 0:
		application = streamOpusApplicationVOIP
	case 2:
		application = streamOpusApplicationLowDelay
	}

	handle := streamOpusEncoderCreate(int32(config.SampleRate), int32(config.Channels), application)
	if handle == 0 {
		return nil, fmt.Errorf("failed to create Opus encoder: %s", getOpusError())
	}
	if config.BitrateBps > 0 {
		streamOpusEncoderSetBitrate(handle, int32(config.BitrateBps))
	}
	if config.Complexity > 0 {
		streamOpusEncoderSetComplexity(handle, int32(config.Complexity))
	}

	return &OpusEncoder{
		config:    config,
		handle:    handle,
		outputBuf: make([]byte, opusMaxPacket),
	}, nil
}

// Encode encodes one frame of S16 samples to an Opus packet.
func (e *OpusEncoder) Encode(samples *AudioSamples) (*EncodedAudio, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == 0 {
		return nil, fmt.Errorf("encoder not initialized")
	}

	pcm := samples.S16()
	numSamples := len(pcm) / 2
	if numSamples == 0 {
		return nil, fmt.Errorf("empty audio samples")
	}
	if cap(e.pcmBuf) < numSamples {
		e.pcmBuf = make([]int16, numSamples)
	}
	e.pcmBuf = e.pcmBuf[:numSamples]
	for i := 0; i < numSamples; i++ {
		e.pcmBuf[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	frameSize := numSamples / e.config.Channels
	result := streamOpusEncoderEncode(
		e.handle,
		uintptr(unsafe.Pointer(&e.pcmBuf[0])),
		int32(frameSize),
		uintptr(unsafe.Pointer(&e.outputBuf[0])),
		int32(len(e.outputBuf)),
	)
	if result < 0 {
		return nil, fmt.Errorf("encode failed: %s", getOpusError())
	}

	data := make([]byte, result)
	copy(data, e.outputBuf[:result])

	e.statsMu.Lock()
	e.stats.FramesEncoded++
	e.stats.BytesEncoded += uint64(result)
	e.stats.SamplesEncoded += uint64(frameSize)
	e.statsMu.Unlock()

	return &EncodedAudio{
		Data:      data,
		Timestamp: samples.Timestamp,
		Duration:  int64(frameSize) * 1e9 / int64(e.config.SampleRate),
	}, nil
}

// Provider implements AudioEncoder.
func (e *OpusEncoder) Provider() Provider { return ProviderLibopus }

// Config implements AudioEncoder.
func (e *OpusEncoder) Config() AudioEncoderConfig { return e.config }

// Codec implements AudioEncoder.
func (e *OpusEncoder) Codec() AudioCodec { return AudioCodecOpus }

// Stats implements AudioEncoder.
func (e *OpusEncoder) Stats() AudioEncoderStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Close implements AudioEncoder.
func (e *OpusEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != 0 {
		streamOpusEncoderDestroy(e.handle)
		e.handle = 0
	}
	return nil
}

func init() {
	if !IsOpusAvailable() {
		return
	}
	setProviderAvailable(ProviderLibopus)
	registerAudioEncoder(AudioCodecOpus, ProviderLibopus, func(config AudioEncoderConfig) (AudioEncoder, error) {
		return NewOpusEncoder(config)
	})
}
