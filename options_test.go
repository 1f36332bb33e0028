package screenrec

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOptions_Defaults(t *testing.T) {
	opts, err := LoadOptions("")
	require.NoError(t, err)

	def := DefaultOptions()
	assert.Equal(t, def.Timeslice, opts.Timeslice)
	assert.Equal(t, def.OverlayWidth, opts.OverlayWidth)
	assert.Equal(t, def.Selection, opts.Selection)
	assert.IsType(t, &FMP4Transcoder{}, opts.Transcoder)
}

func TestLoadOptions_FileAndEnv(t *testing.T) {
	path := writeConfig(t, "screenrec.yaml", `
mime_type: video/x-matroska
timeslice: 250ms
overlay:
  width: 200
  height: 150
selection:
  include_camera: true
  camera_corner: bottom-right
transcode:
  kind: ffmpeg
  ffmpeg_path: /opt/ffmpeg
`)
	t.Setenv("SCREENREC_OVERLAY_PADDING", "12")
	t.Setenv("SCREENREC_SELECTION_INCLUDE_AUDIO", "true")

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	assert.Equal(t, "video/x-matroska", opts.MimeType)
	assert.Equal(t, 250*time.Millisecond, opts.Timeslice)
	assert.Equal(t, 200, opts.OverlayWidth)
	assert.Equal(t, 150, opts.OverlayHeight)
	assert.Equal(t, 12, opts.OverlayPadding)
	assert.True(t, opts.Selection.IncludeCamera)
	assert.True(t, opts.Selection.IncludeAudio)
	assert.Equal(t, CornerBottomRight, opts.Selection.CameraCorner)

	ff, ok := opts.Transcoder.(*FFmpegTranscoder)
	require.True(t, ok)
	assert.Equal(t, "/opt/ffmpeg", ff.Path)
}

func TestLoadOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"corner", "selection:\n  camera_corner: middle\n"},
		{"mime", "mime_type: video/quicktime\n"},
		{"transcoder", "transcode:\n  kind: handbrake\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadOptions(writeConfig(t, "bad.yaml", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadOptions(writeConfig(t, "broken.yaml", "overlay: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoadOptions_NoTranscoder(t *testing.T) {
	t.Setenv("SCREENREC_TRANSCODE_KIND", "none")
	opts, err := LoadOptions("")
	require.NoError(t, err)
	assert.Nil(t, opts.Transcoder)
}
