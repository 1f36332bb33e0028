package screenrec

import (
	"image"
)

// CanvasTrack is the composite video track produced by a Compositor. Frames
// are RGBA snapshots of the canvas taken at the capture rate, independent of
// the draw rate.
type CanvasTrack struct {
	*PushVideoTrack

	buf *image.RGBA
}

func newCanvasTrack(fps int) *CanvasTrack {
	return &CanvasTrack{
		PushVideoTrack: NewPushVideoTrack("", "canvas", VideoTrackSettings{FrameRate: fps}),
	}
}

func (t *CanvasTrack) setSize(width, height int) {
	t.settingMu.Lock()
	defer t.settingMu.Unlock()
	t.settings.Width, t.settings.Height = width, height
}

// snapshot copies canvas into the track's frame buffer. The buffer is reused
// across frames; listeners must copy what they keep.
func (t *CanvasTrack) snapshot(canvas *image.RGBA, ts int64) *VideoFrame {
	if t.buf == nil || t.buf.Bounds() != canvas.Bounds() {
		t.buf = image.NewRGBA(canvas.Bounds())
	}
	copy(t.buf.Pix, canvas.Pix)
	return NewRGBAFrame(t.buf, ts)
}
