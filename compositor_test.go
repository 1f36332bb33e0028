package screenrec

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestOverlayPosition_Corners(t *testing.T) {
	tests := []struct {
		corner Corner
		want   image.Point
	}{
		{CornerTopLeft, image.Pt(50, 50)},
		{CornerTopRight, image.Pt(1570, 50)},
		{CornerBottomLeft, image.Pt(50, 805)},
		{CornerBottomRight, image.Pt(1570, 805)},
	}
	for _, tt := range tests {
		t.Run(tt.corner.String(), func(t *testing.T) {
			pt, ok := OverlayPosition(tt.corner, 1920, 1080, 300, 225, 50)
			require.True(t, ok)
			assert.Equal(t, tt.want, pt)
		})
	}
}

func TestOverlayPosition_UnknownCorner(t *testing.T) {
	_, ok := OverlayPosition(Corner(42), 1920, 1080, 300, 225, 50)
	assert.False(t, ok)
}

func TestOverlayPosition_NotClamped(t *testing.T) {
	pt, ok := OverlayPosition(CornerBottomRight, 200, 100, 300, 225, 50)
	require.True(t, ok)
	assert.Equal(t, image.Pt(-150, -175), pt)
}

func TestParseCorner(t *testing.T) {
	for _, c := range []Corner{CornerTopLeft, CornerTopRight, CornerBottomLeft, CornerBottomRight} {
		got, ok := ParseCorner(c.String())
		require.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}
	got, ok := ParseCorner("bottom-right")
	assert.True(t, ok)
	assert.Equal(t, CornerBottomRight, got)

	_, ok = ParseCorner("middle")
	assert.False(t, ok)
}

func solidFrame(w, h int, c color.RGBA) *VideoFrame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return NewRGBAFrame(img, 0)
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func newTestCompositor(clk *clocktesting.FakeClock) *Compositor {
	return NewCompositor(CompositorConfig{
		DrawRate:       60,
		CaptureRate:    30,
		OverlayWidth:   40,
		OverlayHeight:  30,
		OverlayPadding: 10,
		Clock:          clk,
	})
}

func TestCompositor_DrawsOverlayInCorner(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	screen := NewPushVideoTrack("", "screen", VideoTrackSettings{})
	camera := NewPushVideoTrack("", "camera", VideoTrackSettings{})

	c := newTestCompositor(clk)
	canvas, err := c.Start(screen, camera, CornerBottomRight)
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, screen.WriteFrame(solidFrame(160, 90, red)))
	require.NoError(t, camera.WriteFrame(solidFrame(8, 6, blue)))

	w, h := c.CanvasSize()
	assert.Equal(t, 160, w)
	assert.Equal(t, 90, h)
	assert.Equal(t, 160, canvas.Settings().Width)

	r, ok := c.OverlayRect()
	require.True(t, ok)
	assert.Equal(t, image.Rect(110, 50, 150, 80), r)

	assert.Eventually(t, func() bool {
		clk.Step(time.Second / 60)
		snap := c.Snapshot()
		return snap != nil && snap.RGBAAt(130, 65) == blue && snap.RGBAAt(5, 5) == red
	}, 2*time.Second, time.Millisecond)
}

func TestCompositor_SetCornerMovesOverlay(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	screen := NewPushVideoTrack("", "screen", VideoTrackSettings{})
	camera := NewPushVideoTrack("", "camera", VideoTrackSettings{})

	c := newTestCompositor(clk)
	_, err := c.Start(screen, camera, CornerTopLeft)
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, screen.WriteFrame(solidFrame(160, 90, red)))
	r, ok := c.OverlayRect()
	require.True(t, ok)
	assert.Equal(t, image.Pt(10, 10), r.Min)

	c.SetCorner(CornerTopRight)
	r, _ = c.OverlayRect()
	assert.Equal(t, image.Pt(110, 10), r.Min)

	c.SetCorner(Corner(9))
	r, _ = c.OverlayRect()
	assert.Equal(t, image.Pt(110, 10), r.Min)
}

func TestCompositor_NoCamera(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	screen := NewPushVideoTrack("", "screen", VideoTrackSettings{})

	c := newTestCompositor(clk)
	_, err := c.Start(screen, nil, CornerTopLeft)
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, screen.WriteFrame(solidFrame(64, 64, red)))
	_, ok := c.OverlayRect()
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		clk.Step(time.Second / 60)
		snap := c.Snapshot()
		return snap != nil && snap.RGBAAt(15, 15) == red
	}, 2*time.Second, time.Millisecond)
}

func TestCompositor_CaptureFeedsCanvasTrack(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	screen := NewPushVideoTrack("", "screen", VideoTrackSettings{})

	c := newTestCompositor(clk)
	canvas, err := c.Start(screen, nil, CornerTopLeft)
	require.NoError(t, err)
	defer c.Stop()

	frames := make(chan *VideoFrame, 16)
	canvas.OnFrame(func(f *VideoFrame) {
		select {
		case frames <- f.Clone():
		default:
		}
	})
	require.NoError(t, screen.WriteFrame(solidFrame(32, 32, red)))

	var got *VideoFrame
	assert.Eventually(t, func() bool {
		clk.Step(time.Second / 30)
		select {
		case got = <-frames:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	require.NotNil(t, got)
	assert.Equal(t, PixelFormatRGBA32, got.Format)
	assert.Equal(t, 32, got.Width)
}

func TestCompositor_StopEndsCanvasAndIsIdempotent(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	screen := NewPushVideoTrack("", "screen", VideoTrackSettings{})

	c := newTestCompositor(clk)
	canvas, err := c.Start(screen, nil, CornerTopLeft)
	require.NoError(t, err)

	c.Stop()
	c.Stop()
	assert.Equal(t, TrackStateEnded, canvas.State())
	assert.Equal(t, TrackStateLive, screen.State(), "input tracks belong to the acquisition")

	_, err = c.Start(screen, nil, CornerTopLeft)
	assert.Error(t, err)

	select {
	case <-c.Done():
	default:
		t.Fatal("draw loop still running")
	}
}

func TestCompositor_StopBeforeStart(t *testing.T) {
	c := newTestCompositor(clocktesting.NewFakeClock(time.Now()))
	c.Stop()
	<-c.Done()
}
