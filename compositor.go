package screenrec

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"k8s.io/utils/clock"
)

// Camera overlay geometry, in canvas pixels.
const (
	DefaultOverlayWidth   = 300
	DefaultOverlayHeight  = 225
	DefaultOverlayPadding = 50
)

// Corner selects where the camera overlay sits on the canvas.
type Corner int

const (
	CornerTopLeft Corner = iota
	CornerTopRight
	CornerBottomLeft
	CornerBottomRight
)

func (c Corner) String() string {
	switch c {
	case CornerTopLeft:
		return "top_left"
	case CornerTopRight:
		return "top_right"
	case CornerBottomLeft:
		return "bottom_left"
	case CornerBottomRight:
		return "bottom_right"
	default:
		return "unknown"
	}
}

// Valid reports whether c names one of the four corners.
func (c Corner) Valid() bool {
	return c >= CornerTopLeft && c <= CornerBottomRight
}

// ParseCorner parses names such as "top_left" or "bottom-right".
func ParseCorner(s string) (Corner, bool) {
	switch s {
	case "top_left", "top-left", "topleft":
		return CornerTopLeft, true
	case "top_right", "top-right", "topright":
		return CornerTopRight, true
	case "bottom_left", "bottom-left", "bottomleft":
		return CornerBottomLeft, true
	case "bottom_right", "bottom-right", "bottomright":
		return CornerBottomRight, true
	}
	return 0, false
}

// OverlayPosition returns the top-left point of a w x h overlay inset by pad
// from corner on a W x H canvas. The result is not clamped: an overlay wider
// than W-2*pad lands partly outside the canvas. ok is false for an
// unrecognized corner.
func OverlayPosition(corner Corner, W, H, w, h, pad int) (pt image.Point, ok bool) {
	switch corner {
	case CornerTopLeft:
		return image.Pt(pad, pad), true
	case CornerTopRight:
		return image.Pt(W-w-pad, pad), true
	case CornerBottomLeft:
		return image.Pt(pad, H-h-pad), true
	case CornerBottomRight:
		return image.Pt(W-w-pad, H-h-pad), true
	default:
		return image.Point{}, false
	}
}

// CompositorConfig configures the compositor.
type CompositorConfig struct {
	DrawRate    int // Canvas redraws per second (default: 60)
	CaptureRate int // Canvas samples per second on the output track (default: 30)

	OverlayWidth   int
	OverlayHeight  int
	OverlayPadding int

	Clock   clock.WithTicker
	Logger  *slog.Logger
	Metrics *Metrics
}

// DefaultCompositorConfig returns a default compositor configuration.
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		DrawRate:       60,
		CaptureRate:    30,
		OverlayWidth:   DefaultOverlayWidth,
		OverlayHeight:  DefaultOverlayHeight,
		OverlayPadding: DefaultOverlayPadding,
	}
}

var (
	errCompositorStarted = errors.New("compositor already started")
	errCompositorStopped = errors.New("compositor stopped")
)

// Compositor draws the latest screen frame, scaled to fill the canvas, and
// the latest camera frame at the overlay position on top of it. The canvas
// size is fixed by the first screen frame.
type Compositor struct {
	cfg    CompositorConfig
	logger *slog.Logger

	mu        sync.Mutex
	started   bool
	screen    *VideoFrame
	camera    *VideoFrame
	hasCamera bool
	canvas    *image.RGBA
	corner    Corner
	overlay   image.Point
	out       *CanvasTrack
	unsubs    []func()

	stopOnce sync.Once
	done     chan struct{}
	loopDone chan struct{}
}

// NewCompositor creates an idle compositor.
func NewCompositor(cfg CompositorConfig) *Compositor {
	def := DefaultCompositorConfig()
	if cfg.DrawRate <= 0 {
		cfg.DrawRate = def.DrawRate
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = def.CaptureRate
	}
	if cfg.OverlayWidth <= 0 || cfg.OverlayHeight <= 0 {
		cfg.OverlayWidth, cfg.OverlayHeight = def.OverlayWidth, def.OverlayHeight
	}
	if cfg.OverlayPadding < 0 {
		cfg.OverlayPadding = def.OverlayPadding
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Compositor{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "compositor"),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start subscribes to the screen and optional camera tracks, starts the draw
// loop and returns the composite track. A compositor starts once.
func (c *Compositor) Start(screen, camera VideoTrack, corner Corner) (*CanvasTrack, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, errCompositorStarted
	}
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, errCompositorStopped
	default:
	}
	c.started = true
	c.corner = corner
	c.hasCamera = camera != nil
	c.out = newCanvasTrack(c.cfg.CaptureRate)
	out := c.out
	c.unsubs = append(c.unsubs, screen.OnFrame(c.onScreenFrame))
	if camera != nil {
		c.unsubs = append(c.unsubs, camera.OnFrame(c.onCameraFrame))
	}
	c.mu.Unlock()

	go c.drawLoop()

	c.logger.Debug("compositor started",
		"screen", screen.Label(),
		"camera", camera != nil,
		"corner", corner.String())
	return out, nil
}

// SetCorner moves the overlay to corner. An unrecognized corner leaves the
// current position unchanged.
func (c *Compositor) SetCorner(corner Corner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !corner.Valid() {
		return
	}
	c.corner = corner
	if c.canvas != nil {
		c.placeOverlayLocked()
	}
}

// placeOverlayLocked recomputes the overlay position against the canvas.
func (c *Compositor) placeOverlayLocked() {
	b := c.canvas.Bounds()
	pt, ok := OverlayPosition(c.corner, b.Dx(), b.Dy(), c.cfg.OverlayWidth, c.cfg.OverlayHeight, c.cfg.OverlayPadding)
	if ok {
		c.overlay = pt
	}
}

// OverlayRect returns the overlay rectangle in canvas coordinates. ok is
// false until the canvas exists or when no camera is composited.
func (c *Compositor) OverlayRect() (r image.Rectangle, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas == nil || !c.hasCamera {
		return image.Rectangle{}, false
	}
	return image.Rectangle{
		Min: c.overlay,
		Max: c.overlay.Add(image.Pt(c.cfg.OverlayWidth, c.cfg.OverlayHeight)),
	}, true
}

// CanvasSize returns the canvas dimensions, or zero before the first screen
// frame.
func (c *Compositor) CanvasSize() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas == nil {
		return 0, 0
	}
	return c.canvas.Bounds().Dx(), c.canvas.Bounds().Dy()
}

// Snapshot returns a copy of the canvas, or nil before the first screen frame.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas == nil {
		return nil
	}
	cp := image.NewRGBA(c.canvas.Bounds())
	copy(cp.Pix, c.canvas.Pix)
	return cp
}

// Done is closed once the draw loop has exited.
func (c *Compositor) Done() <-chan struct{} {
	return c.loopDone
}

// Stop halts the draw loop, detaches from the input tracks and ends the
// composite track. It is safe to call more than once. Input tracks are not
// stopped; they belong to the acquisition.
func (c *Compositor) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		started := c.started
		out := c.out
		unsubs := c.unsubs
		c.unsubs = nil
		c.mu.Unlock()

		for _, unsub := range unsubs {
			unsub()
		}
		if !started {
			close(c.loopDone)
			return
		}
		<-c.loopDone
		out.Stop()
		c.logger.Debug("compositor stopped")
	})
}

func (c *Compositor) onScreenFrame(frame *VideoFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.screen = copyFrame(c.screen, frame)
	if c.canvas == nil {
		c.canvas = image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
		c.placeOverlayLocked()
		c.out.setSize(frame.Width, frame.Height)
		c.logger.Debug("canvas sized", "width", frame.Width, "height", frame.Height)
	}
}

func (c *Compositor) onCameraFrame(frame *VideoFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = copyFrame(c.camera, frame)
}

func (c *Compositor) drawLoop() {
	defer close(c.loopDone)

	start := c.cfg.Clock.Now()
	drawTicker := c.cfg.Clock.NewTicker(time.Second / time.Duration(c.cfg.DrawRate))
	defer drawTicker.Stop()
	captureTicker := c.cfg.Clock.NewTicker(time.Second / time.Duration(c.cfg.CaptureRate))
	defer captureTicker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-drawTicker.C():
			c.drawFrame()
		case <-captureTicker.C():
			c.captureFrame(c.cfg.Clock.Since(start))
		}
	}
}

// drawFrame paints one canvas frame from the latest inputs.
func (c *Compositor) drawFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.canvas == nil || c.screen == nil {
		return
	}
	if src := c.screen.Image(); src != nil {
		draw.ApproxBiLinear.Scale(c.canvas, c.canvas.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	if c.hasCamera && c.camera != nil {
		if src := c.camera.Image(); src != nil {
			dr := image.Rectangle{
				Min: c.overlay,
				Max: c.overlay.Add(image.Pt(c.cfg.OverlayWidth, c.cfg.OverlayHeight)),
			}
			draw.ApproxBiLinear.Scale(c.canvas, dr, src, src.Bounds(), draw.Over, nil)
		}
	}
	c.cfg.Metrics.frameDrawn()
}

// captureFrame samples the canvas onto the composite track.
func (c *Compositor) captureFrame(ts time.Duration) {
	c.mu.Lock()
	if c.canvas == nil {
		c.mu.Unlock()
		return
	}
	frame := c.out.snapshot(c.canvas, ts.Nanoseconds())
	out := c.out
	c.mu.Unlock()

	if err := out.WriteFrame(frame); err != nil {
		c.cfg.Metrics.frameDropped()
		return
	}
	c.cfg.Metrics.frameCaptured()
}

// copyFrame copies src into dst, reusing dst's planes when the layout
// matches.
func copyFrame(dst, src *VideoFrame) *VideoFrame {
	if dst == nil || dst.Format != src.Format || len(dst.Data) != len(src.Data) {
		return src.Clone()
	}
	for i, plane := range src.Data {
		if len(dst.Data[i]) != len(plane) {
			return src.Clone()
		}
	}
	for i, plane := range src.Data {
		copy(dst.Data[i], plane)
	}
	copy(dst.Stride, src.Stride)
	dst.Width, dst.Height, dst.Timestamp = src.Width, src.Height, src.Timestamp
	return dst
}
