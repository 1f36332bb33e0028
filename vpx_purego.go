//go:build (darwin || linux) && !novpx

// VP8 encoding via libmedia_vpx, a thin primitive-only wrapper around libvpx,
// loaded at runtime with purego.
//
// Library locations checked (in order):
//   - MEDIA_VPX_LIB_PATH environment variable
//   - MEDIA_SDK_LIB_PATH / STREAM_SDK_LIB_PATH directories
//   - build/ffi under the module root (development)
//   - System library paths

package screenrec

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	mediaVPXOnce    sync.Once
	mediaVPXInitErr error
)

// libmedia_vpx function pointers
var (
	mediaVPXEncoderCreate        func(codec, width, height, fps, bitrateKbps, threads int32) uint64
	mediaVPXEncoderEncode        func(encoder uint64, yPlane, uPlane, vPlane uintptr, yStride, uvStride, forceKeyframe int32, outData uintptr, outCapacity int32, outFrameType, outPts uintptr) int32
	mediaVPXEncoderMaxOutputSize func(encoder uint64) int32
	mediaVPXEncoderRequestKF     func(encoder uint64)
	mediaVPXEncoderDestroy       func(encoder uint64)

	mediaVPXGetError       func() uintptr
	mediaVPXCodecAvailable func(codec int32) int32
)

// Constants from media_vpx.h
const (
	mediaVPXCodecVP8 = 0

	mediaVPXFrameKey = 0
)

func loadMediaVPX() error {
	mediaVPXOnce.Do(func() {
		_, mediaVPXInitErr = dlopenFirst("libmedia_vpx", nativeLibPaths("media_vpx", "MEDIA_VPX_LIB_PATH"), func(h uintptr) error {
			purego.RegisterLibFunc(&mediaVPXEncoderCreate, h, "media_vpx_encoder_create")
			purego.RegisterLibFunc(&mediaVPXEncoderEncode, h, "media_vpx_encoder_encode")
			purego.RegisterLibFunc(&mediaVPXEncoderMaxOutputSize, h, "media_vpx_encoder_max_output_size")
			purego.RegisterLibFunc(&mediaVPXEncoderRequestKF, h, "media_vpx_encoder_request_keyframe")
			purego.RegisterLibFunc(&mediaVPXEncoderDestroy, h, "media_vpx_encoder_destroy")
			purego.RegisterLibFunc(&mediaVPXGetError, h, "media_vpx_get_error")
			purego.RegisterLibFunc(&mediaVPXCodecAvailable, h, "media_vpx_codec_available")
			return nil
		})
	})
	return mediaVPXInitErr
}

// IsVP8Available checks if the VP8 encoder can be loaded.
func IsVP8Available() bool {
	if loadMediaVPX() != nil {
		return false
	}
	return mediaVPXCodecAvailable(mediaVPXCodecVP8) != 0
}

func getVPXError() string {
	ptr := mediaVPXGetError()
	if ptr == 0 {
		return "unknown error"
	}
	return goStringFromPtr(ptr)
}

// VPXEncoder implements VideoEncoder for VP8 using libmedia_vpx.
type VPXEncoder struct {
	config VideoEncoderConfig

	handle    uint64
	outputBuf []byte
	frames    int

	stats   EncoderStats
	statsMu sync.Mutex

	keyframeReq atomic.Bool
	mu          sync.Mutex
}

// NewVP8Encoder creates a new VP8 encoder.
func NewVP8Encoder(config VideoEncoderConfig) (*VPXEncoder, error) {
	if err := loadMediaVPX(); err != nil {
		return nil, fmt.Errorf("VP8 encoder not available: %w", err)
	}

	threads := config.Threads
	if threads <= 0 {
		threads = 4
	}
	bitrateKbps := config.BitrateBps / 1000
	if bitrateKbps <= 0 {
		bitrateKbps = 1000
	}
	fps := config.FPS
	if fps <= 0 {
		fps = 30
	}

	handle := mediaVPXEncoderCreate(mediaVPXCodecVP8, int32(config.Width), int32(config.Height),
		int32(fps), int32(bitrateKbps), int32(threads))
	if handle == 0 {
		return nil, fmt.Errorf("failed to create VP8 encoder: %s", getVPXError())
	}

	maxOutput := mediaVPXEncoderMaxOutputSize(handle)
	if maxOutput <= 0 {
		maxOutput = int32(config.Width * config.Height * 3 / 2)
	}

	enc := &VPXEncoder{
		config:    config,
		handle:    handle,
		outputBuf: make([]byte, maxOutput),
	}
	enc.keyframeReq.Store(true)
	return enc, nil
}

// Encode implements VideoEncoder. Non-I420 frames are converted first.
func (e *VPXEncoder) Encode(frame *VideoFrame) (*EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == 0 {
		return nil, fmt.Errorf("encoder not initialized")
	}
	if frame.Format != PixelFormatI420 {
		frame = frame.ToI420()
	}

	forceKeyframe := int32(0)
	if e.keyframeReq.Swap(false) || (e.config.KeyframeInterval > 0 && e.frames%e.config.KeyframeInterval == 0) {
		forceKeyframe = 1
	}
	e.frames++

	var frameType int32
	var pts int64
	result := mediaVPXEncoderEncode(
		e.handle,
		uintptr(unsafe.Pointer(&frame.Data[0][0])),
		uintptr(unsafe.Pointer(&frame.Data[1][0])),
		uintptr(unsafe.Pointer(&frame.Data[2][0])),
		int32(frame.Stride[0]),
		int32(frame.Stride[1]),
		forceKeyframe,
		uintptr(unsafe.Pointer(&e.outputBuf[0])),
		int32(len(e.outputBuf)),
		uintptr(unsafe.Pointer(&frameType)),
		uintptr(unsafe.Pointer(&pts)),
	)
	if result < 0 {
		return nil, fmt.Errorf("encode failed: %s", getVPXError())
	}
	if result == 0 {
		return nil, nil
	}

	ft := FrameTypeDelta
	if frameType == mediaVPXFrameKey {
		ft = FrameTypeKey
	}

	e.statsMu.Lock()
	e.stats.FramesEncoded++
	if ft == FrameTypeKey {
		e.stats.KeyframesEncoded++
	}
	e.stats.BytesEncoded += uint64(result)
	e.statsMu.Unlock()

	return &EncodedFrame{
		Data:      e.outputBuf[:result],
		FrameType: ft,
		Timestamp: frame.Timestamp,
	}, nil
}

// Provider implements VideoEncoder.
func (e *VPXEncoder) Provider() Provider {
	return ProviderLibvpx
}

// RequestKeyframe implements VideoEncoder.
func (e *VPXEncoder) RequestKeyframe() {
	e.keyframeReq.Store(true)
	if e.handle != 0 {
		mediaVPXEncoderRequestKF(e.handle)
	}
}

// Config implements VideoEncoder.
func (e *VPXEncoder) Config() VideoEncoderConfig {
	return e.config
}

// Codec implements VideoEncoder.
func (e *VPXEncoder) Codec() VideoCodec {
	return VideoCodecVP8
}

// Stats implements VideoEncoder.
func (e *VPXEncoder) Stats() EncoderStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Close implements VideoEncoder.
func (e *VPXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != 0 {
		mediaVPXEncoderDestroy(e.handle)
		e.handle = 0
	}
	return nil
}

func init() {
	if !IsVP8Available() {
		return
	}
	setProviderAvailable(ProviderLibvpx)
	registerVideoEncoder(VideoCodecVP8, ProviderLibvpx, func(config VideoEncoderConfig) (VideoEncoder, error) {
		return NewVP8Encoder(config)
	})
}
