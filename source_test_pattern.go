package screenrec

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternSolidColor                      // Solid color
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternSolidColor:
		return "SolidColor"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// TestPatternConfig configures a test pattern source.
type TestPatternConfig struct {
	Width   int         // Frame width (default: 1280)
	Height  int         // Frame height (default: 720)
	FPS     int         // Frames per second (default: 30)
	Pattern PatternType // Pattern type (default: ColorBars)
	Kind    CaptureKind // Reported capture kind (default: Screen)

	// For SolidColor pattern
	SolidR, SolidG, SolidB uint8

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)

	// Clock drives frame timing. Defaults to the real clock.
	Clock clock.WithTicker
}

// DefaultTestPatternConfig returns a default test pattern configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{
		Width:       1280,
		Height:      720,
		FPS:         30,
		Pattern:     PatternColorBars,
		Kind:        CaptureKindScreen,
		CheckerSize: 32,
	}
}

// TestPatternSource generates synthetic I420 video frames. It stands in for
// a display or camera in the virtual device provider.
type TestPatternSource struct {
	config TestPatternConfig

	// Pre-allocated frame buffer (I420 format)
	yPlane []byte
	uPlane []byte
	vPlane []byte

	frameDuration time.Duration
	frameCount    uint64

	running  atomic.Bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	callback VideoFrameCallback

	mu sync.RWMutex
}

// NewTestPatternSource creates a new test pattern video source.
func NewTestPatternSource(config TestPatternConfig) *TestPatternSource {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	if config.Kind == CaptureKindUnknown {
		config.Kind = CaptureKindScreen
	}
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	ySize := config.Width * config.Height
	uvSize := (config.Width / 2) * (config.Height / 2)
	frameData := make([]byte, ySize+uvSize*2)

	s := &TestPatternSource{
		config:        config,
		yPlane:        frameData[:ySize],
		uPlane:        frameData[ySize : ySize+uvSize],
		vPlane:        frameData[ySize+uvSize:],
		frameDuration: time.Second / time.Duration(config.FPS),
	}
	s.generatePattern(0)
	return s
}

// Start begins generating frames.
func (s *TestPatternSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("source already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.frameCount = 0

	go s.generateLoop(ctx)
	return nil
}

// Stop stops generating frames and waits for the goroutine to exit.
func (s *TestPatternSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	<-s.doneCh
	return nil
}

// SetCallback sets the push-mode callback.
func (s *TestPatternSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Config returns the source configuration.
func (s *TestPatternSource) Config() SourceConfig {
	return SourceConfig{
		Width:  s.config.Width,
		Height: s.config.Height,
		FPS:    s.config.FPS,
		Format: PixelFormatI420,
		Kind:   s.config.Kind,
	}
}

func (s *TestPatternSource) generateLoop(ctx context.Context) {
	defer close(s.doneCh)

	start := s.config.Clock.Now()
	ticker := s.config.Clock.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.frameCount++
			if s.config.Pattern == PatternMovingBox {
				s.generatePattern(s.frameCount)
			}

			frame := &VideoFrame{
				Data:      [][]byte{s.yPlane, s.uPlane, s.vPlane},
				Stride:    []int{s.config.Width, s.config.Width / 2, s.config.Width / 2},
				Width:     s.config.Width,
				Height:    s.config.Height,
				Format:    PixelFormatI420,
				Timestamp: s.config.Clock.Since(start).Nanoseconds(),
			}

			s.mu.RLock()
			cb := s.callback
			s.mu.RUnlock()
			if cb != nil {
				cb(frame)
			}
		}
	}
}

func (s *TestPatternSource) generatePattern(frameNum uint64) {
	switch s.config.Pattern {
	case PatternGradient:
		s.generateGradient()
	case PatternCheckerboard:
		s.generateCheckerboard()
	case PatternSolidColor:
		s.generateSolidColor(s.config.SolidR, s.config.SolidG, s.config.SolidB)
	case PatternMovingBox:
		s.generateMovingBox(frameNum)
	default:
		s.generateColorBars()
	}
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

func (s *TestPatternSource) setPixel(x, y int, yVal, u, v uint8) {
	w := s.config.Width
	s.yPlane[y*w+x] = yVal
	if x%2 == 0 && y%2 == 0 {
		uvIdx := (y/2)*(w/2) + (x / 2)
		if uvIdx < len(s.uPlane) {
			s.uPlane[uvIdx] = u
			s.vPlane[uvIdx] = v
		}
	}
}

func (s *TestPatternSource) generateColorBars() {
	w, h := s.config.Width, s.config.Height
	barWidth := max(w/8, 1)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			barIdx := min(x/barWidth, 7)
			rgb := colorBarsRGB[barIdx]
			yVal, u, v := rgbToYUV(rgb[0], rgb[1], rgb[2])
			s.setPixel(x, y, yVal, u, v)
		}
	}
}

func (s *TestPatternSource) generateGradient() {
	w, h := s.config.Width, s.config.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.setPixel(x, y, uint8((x*255)/w), 128, 128)
		}
	}
}

func (s *TestPatternSource) generateCheckerboard() {
	w, h := s.config.Width, s.config.Height
	size := s.config.CheckerSize

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			yVal := uint8(16)
			if ((x/size)+(y/size))%2 == 0 {
				yVal = 235
			}
			s.setPixel(x, y, yVal, 128, 128)
		}
	}
}

func (s *TestPatternSource) generateSolidColor(r, g, b uint8) {
	yVal, u, v := rgbToYUV(r, g, b)
	for i := range s.yPlane {
		s.yPlane[i] = yVal
	}
	for i := range s.uPlane {
		s.uPlane[i] = u
		s.vPlane[i] = v
	}
}

func (s *TestPatternSource) generateMovingBox(frameNum uint64) {
	w, h := s.config.Width, s.config.Height

	for i := range s.yPlane {
		s.yPlane[i] = 16
	}
	for i := range s.uPlane {
		s.uPlane[i] = 128
		s.vPlane[i] = 128
	}

	// Box moves in a circle
	boxSize := max(min(w, h)/8, 2)
	radius := float64(min(w, h)) / 4
	angle := float64(frameNum) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	for y := max(boxY, 0); y < boxY+boxSize && y < h; y++ {
		for x := max(boxX, 0); x < boxX+boxSize && x < w; x++ {
			s.setPixel(x, y, 235, 128, 128)
		}
	}
}

// rgbToYUV converts RGB to YUV (BT.601)
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(clamp(yf, 16, 235))
	u = uint8(clamp(uf, 16, 240))
	v = uint8(clamp(vf, 16, 240))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
