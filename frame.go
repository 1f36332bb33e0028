// Core frame and sample types used across the recorder.
package screenrec

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
)

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420   PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatRGBA32                    // Packed RGBA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatRGBA32:
		return "RGBA32"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatRGBA32:
		return 1
	default:
		return 0
	}
}

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit little-endian PCM
	AudioFormatF32                    // 32-bit float
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// VideoFrame represents a raw video frame.
type VideoFrame struct {
	Data      [][]byte    // Plane data
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Timestamp int64       // Capture timestamp in nanoseconds
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// Image returns an image.Image view over the frame planes. The returned image
// shares memory with the frame.
func (f *VideoFrame) Image() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixelFormatI420:
		if len(f.Data) < 3 {
			return nil
		}
		return &image.YCbCr{
			Y:              f.Data[0],
			Cb:             f.Data[1],
			Cr:             f.Data[2],
			YStride:        f.Stride[0],
			CStride:        f.Stride[1],
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}
	case PixelFormatRGBA32:
		if len(f.Data) < 1 {
			return nil
		}
		return &image.RGBA{Pix: f.Data[0], Stride: f.Stride[0], Rect: rect}
	default:
		return nil
	}
}

// NewRGBAFrame wraps img as an RGBA32 frame without copying.
func NewRGBAFrame(img *image.RGBA, timestamp int64) *VideoFrame {
	b := img.Bounds()
	return &VideoFrame{
		Data:      [][]byte{img.Pix},
		Stride:    []int{img.Stride},
		Width:     b.Dx(),
		Height:    b.Dy(),
		Format:    PixelFormatRGBA32,
		Timestamp: timestamp,
	}
}

// ToI420 converts the frame to a newly allocated I420 frame. I420 input is
// cloned.
func (f *VideoFrame) ToI420() *VideoFrame {
	if f.Format == PixelFormatI420 {
		return f.Clone()
	}
	img := f.Image()
	if img == nil {
		return nil
	}

	w, h := f.Width, f.Height
	cw, ch := (w+1)/2, (h+1)/2
	out := &VideoFrame{
		Data:      [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)},
		Stride:    []int{w, cw, cw},
		Width:     w,
		Height:    h,
		Format:    PixelFormatI420,
		Timestamp: f.Timestamp,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			out.Data[0][y*w+x] = yy
			if x%2 == 0 && y%2 == 0 {
				out.Data[1][(y/2)*cw+x/2] = cb
				out.Data[2][(y/2)*cw+x/2] = cr
			}
		}
	}
	return out
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}

// AudioSamples represents raw audio samples.
type AudioSamples struct {
	Data        []byte      // Interleaved sample data
	SampleRate  int         // Sample rate (e.g., 48000)
	Channels    int         // Number of channels (1 = mono, 2 = stereo)
	SampleCount int         // Number of samples (per channel)
	Format      AudioFormat // Sample format
	Timestamp   int64       // Capture timestamp in nanoseconds
}

// Clone creates a deep copy of the audio samples.
func (s *AudioSamples) Clone() *AudioSamples {
	clone := &AudioSamples{
		SampleRate:  s.SampleRate,
		Channels:    s.Channels,
		SampleCount: s.SampleCount,
		Format:      s.Format,
		Timestamp:   s.Timestamp,
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return clone
}

// S16 returns the samples as signed 16-bit little-endian PCM. S16 input is
// returned as is.
func (s *AudioSamples) S16() []byte {
	if s.Format == AudioFormatS16 {
		return s.Data
	}
	n := len(s.Data) / 4
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(s.Data[i*4:]))
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}

// FrameType indicates whether a frame is a keyframe or delta frame.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // Decodable on its own
	FrameTypeDelta             // Requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// EncodedFrame holds encoded video data.
// The Data slice is owned by the encoder and valid until the next Encode() call.
type EncodedFrame struct {
	Data      []byte    // Encoded bitstream data
	FrameType FrameType // Key or delta frame
	Timestamp int64     // Media time in nanoseconds
}

// IsKeyframe returns true if this is a keyframe.
func (f *EncodedFrame) IsKeyframe() bool {
	return f.FrameType == FrameTypeKey
}

// EncodedAudio holds encoded audio data.
type EncodedAudio struct {
	Data      []byte // Encoded packet
	Timestamp int64  // Media time in nanoseconds
	Duration  int64  // Packet duration in nanoseconds
}
