package screenrec

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSample(t *testing.T, frames int) *Blob {
	t.Helper()
	h := newRecorderHarness(t, true)
	for i := 0; i < frames; i++ {
		h.writeFrame(t)
		h.clk.Step(20 * time.Millisecond)
	}
	blob, err := h.rec.Stop()
	require.NoError(t, err)
	require.NotZero(t, blob.Size())
	return blob
}

func TestFMP4Transcoder_RemuxesMJPEGAndPCM(t *testing.T) {
	blob := recordSample(t, 10)

	var progress []int
	out, mimeType, err := NewFMP4Transcoder(nil).Transcode(context.Background(), blob.Data, blob.MimeType, func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", mimeType)
	require.Greater(t, len(out), 8)
	assert.Equal(t, "ftyp", string(out[4:8]))

	assert.True(t, bytes.Contains(out, []byte("moov")))
	assert.True(t, bytes.Contains(out, []byte("moof")))

	require.NotEmpty(t, progress)
	assert.Equal(t, 5, progress[0])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.LessOrEqual(t, progress[len(progress)-1], 99)
}

func TestFMP4Transcoder_RejectsVP8(t *testing.T) {
	_, _, err := NewFMP4Transcoder(nil).Transcode(context.Background(), []byte{0x1A}, FormatWebMVP8Opus.MimeType(), nil)
	assert.ErrorIs(t, err, ErrTranscode)
}

func TestFMP4Transcoder_RejectsGarbage(t *testing.T) {
	_, _, err := NewFMP4Transcoder(nil).Transcode(context.Background(), []byte("not a recording"), FormatMatroskaMJPEGPCM.MimeType(), nil)
	assert.ErrorIs(t, err, ErrTranscode)

	_, _, err = NewFMP4Transcoder(nil).Transcode(context.Background(), nil, "text/plain", nil)
	assert.ErrorIs(t, err, ErrTranscode)
}

func TestFMP4Transcoder_Cancelled(t *testing.T) {
	blob := recordSample(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewFMP4Transcoder(nil).Transcode(ctx, blob.Data, blob.MimeType, nil)
	assert.ErrorIs(t, err, ErrTranscode)
}

func TestRecordingDuration(t *testing.T) {
	blob := recordSample(t, 5)
	// Last video block sits at 80ms; audio is the same length.
	assert.Equal(t, 80*time.Millisecond, recordingDuration(blob.Data))
	assert.Zero(t, recordingDuration([]byte("junk")))
}
