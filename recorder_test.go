package screenrec

import (
	"bytes"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

type recorderHarness struct {
	clk   *clocktesting.FakeClock
	rec   *Recorder
	video *PushVideoTrack
	audio *PushAudioTrack

	mu     sync.Mutex
	chunks [][]byte
	stops  atomic.Int32
}

func newRecorderHarness(t *testing.T, withAudio bool) *recorderHarness {
	t.Helper()
	h := &recorderHarness{
		clk:   clocktesting.NewFakeClock(time.Unix(1700000000, 0)),
		video: NewPushVideoTrack("", "canvas", VideoTrackSettings{}),
	}
	cfg := DefaultRecorderConfig(FormatMatroskaMJPEGPCM)
	cfg.Clock = h.clk
	cfg.VideoQueue = 64
	h.rec = NewRecorder(cfg)
	h.rec.OnDataAvailable(func(chunk []byte) {
		h.mu.Lock()
		h.chunks = append(h.chunks, chunk)
		h.mu.Unlock()
	})
	h.rec.OnStop(func(*Blob) { h.stops.Add(1) })

	var audio []AudioTrack
	if withAudio {
		h.audio = NewPushAudioTrack("", "mic", AudioTrackSettings{SampleRate: 48000, ChannelCount: 1})
		audio = append(audio, h.audio)
	}
	require.NoError(t, h.rec.Start(h.video, audio...))
	return h
}

func (h *recorderHarness) writeFrame(t *testing.T) {
	t.Helper()
	require.NoError(t, h.video.WriteFrame(solidFrame(64, 48, color.RGBA{G: 200, A: 255})))
	if h.audio != nil {
		// 20ms of mono S16 silence
		require.NoError(t, h.audio.WriteSamples(&AudioSamples{
			Data:        make([]byte, 960*2),
			SampleRate:  48000,
			Channels:    1,
			SampleCount: 960,
			Format:      AudioFormatS16,
		}))
	}
}

func (h *recorderHarness) allChunks() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.chunks...)
}

func TestRecorder_StopProducesMatroska(t *testing.T) {
	h := newRecorderHarness(t, true)
	assert.Equal(t, RecorderRecording, h.rec.State())

	for i := 0; i < 5; i++ {
		h.writeFrame(t)
		h.clk.Step(100 * time.Millisecond)
	}

	blob, err := h.rec.Stop()
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, RecorderStopped, h.rec.State())
	assert.Equal(t, FormatMatroskaMJPEGPCM.MimeType(), blob.MimeType)
	assert.Equal(t, 500*time.Millisecond, blob.Duration)
	require.True(t, bytes.HasPrefix(blob.Data, ebmlMagic), "blob must start with an EBML header")

	var file mkvFile
	_ = ebml.Unmarshal(bytes.NewReader(blob.Data), &file)
	assert.Equal(t, "matroska", file.Header.DocType)
	require.Len(t, file.Segment.Tracks.TrackEntry, 2)
	assert.Equal(t, "V_MJPEG", file.Segment.Tracks.TrackEntry[0].CodecID)
	assert.Equal(t, "A_PCM/INT/LIT", file.Segment.Tracks.TrackEntry[1].CodecID)

	videoBlocks := 0
	for _, c := range file.Segment.Cluster {
		for _, b := range c.SimpleBlock {
			if b.TrackNumber == videoTrackNumber {
				videoBlocks++
			}
		}
	}
	assert.Equal(t, 5, videoBlocks)
}

func TestRecorder_ChunksConcatenateToBlob(t *testing.T) {
	h := newRecorderHarness(t, false)

	h.writeFrame(t)
	require.NoError(t, h.rec.Pause())
	require.NoError(t, h.rec.Resume())
	h.writeFrame(t)

	blob, err := h.rec.Stop()
	require.NoError(t, err)

	chunks := h.allChunks()
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.NotEmpty(t, c, "chunk %d", i)
	}
	assert.Equal(t, blob.Data, joinChunks(chunks))
	assert.Equal(t, len(chunks), blob.Chunks)
}

func TestRecorder_PauseExcludesTime(t *testing.T) {
	h := newRecorderHarness(t, false)

	h.writeFrame(t)
	h.clk.Step(time.Second)

	require.NoError(t, h.rec.Pause())
	assert.Equal(t, RecorderPaused, h.rec.State())
	assert.ErrorIs(t, h.rec.Pause(), ErrInvalidState)
	h.clk.Step(5 * time.Second)
	h.writeFrame(t) // dropped while paused

	require.NoError(t, h.rec.Resume())
	assert.ErrorIs(t, h.rec.Resume(), ErrInvalidState)
	h.clk.Step(time.Second)
	h.writeFrame(t)

	blob, err := h.rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, blob.Duration)

	var file mkvFile
	_ = ebml.Unmarshal(bytes.NewReader(blob.Data), &file)
	var stamps []int64
	for _, c := range file.Segment.Cluster {
		for _, b := range c.SimpleBlock {
			if b.TrackNumber == videoTrackNumber {
				stamps = append(stamps, int64(c.Timecode)+int64(b.Timecode))
			}
		}
	}
	assert.Equal(t, []int64{0, 2000}, stamps)
}

func TestRecorder_StopIsIdempotent(t *testing.T) {
	h := newRecorderHarness(t, false)
	h.writeFrame(t)

	var wg sync.WaitGroup
	blobs := make([]*Blob, 3)
	for i := range blobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := h.rec.Stop()
			assert.NoError(t, err)
			blobs[i] = b
		}(i)
	}
	wg.Wait()

	assert.Same(t, blobs[0], blobs[1])
	assert.Same(t, blobs[0], blobs[2])
	assert.Eventually(t, func() bool { return h.stops.Load() == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), h.stops.Load(), "OnStop fires exactly once")
}

func TestRecorder_StopWithoutFrames(t *testing.T) {
	h := newRecorderHarness(t, true)
	blob, err := h.rec.Stop()
	require.NoError(t, err)
	assert.Zero(t, blob.Size())
	assert.Empty(t, h.allChunks())
	<-h.rec.Done()
	assert.Eventually(t, func() bool { return h.stops.Load() == 1 }, 2*time.Second, time.Millisecond)
}

func TestRecorder_InvalidTransitions(t *testing.T) {
	rec := NewRecorder(DefaultRecorderConfig(FormatMatroskaMJPEGPCM))
	_, err := rec.Stop()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, rec.Pause(), ErrInvalidState)
	assert.ErrorIs(t, rec.Start(nil), ErrInvalidState)

	bad := NewRecorder(DefaultRecorderConfig(RecordingFormat{ContainerWebM, VideoCodecMJPEG, AudioCodecPCM}))
	err = bad.Start(NewPushVideoTrack("", "v", VideoTrackSettings{}))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, RecorderInactive, bad.State())
}

func TestRecorder_SingleUse(t *testing.T) {
	h := newRecorderHarness(t, false)
	_, err := h.rec.Stop()
	require.NoError(t, err)
	assert.ErrorIs(t, h.rec.Start(h.video), ErrInvalidState)
}

func TestRecorder_TimesliceFlushes(t *testing.T) {
	h := newRecorderHarness(t, false)
	h.writeFrame(t)

	assert.Eventually(t, func() bool {
		h.clk.Step(time.Second)
		return len(h.allChunks()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	_, err := h.rec.Stop()
	require.NoError(t, err)
}

func TestWaitDone_UsesInjectedClock(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))

	closed := make(chan struct{})
	close(closed)
	assert.True(t, waitDone(clk, closed, time.Second))

	result := make(chan bool, 1)
	go func() { result <- waitDone(clk, make(chan struct{}), muxerCloseTimeout) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	select {
	case <-result:
		t.Fatal("waitDone returned before the fake clock advanced")
	default:
	}
	clk.Step(muxerCloseTimeout)
	assert.False(t, <-result)
}
