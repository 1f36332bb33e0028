package screenrec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

const (
	videoTrackNumber = 1
	muxingApp        = "screenrec"
	opusPreSkip      = 3840
)

var errMuxerClosed = errors.New("muxer closed")

// muxerConfig describes the tracks of one recording. Track 1 is video,
// audio tracks follow in order.
type muxerConfig struct {
	Format RecordingFormat
	Width  int
	Height int
	FPS    int
	Audio  []AudioEncoderConfig
}

// writerCloser wraps an io.Writer and stops writing after the first error.
type writerCloser struct {
	writer io.Writer
	logger *slog.Logger
	closed bool
}

func (wc *writerCloser) Write(p []byte) (n int, err error) {
	if wc.closed {
		return 0, io.ErrClosedPipe
	}

	n, err = wc.writer.Write(p)
	if err != nil {
		wc.logger.Warn("write error, marking writer as closed",
			"error", err,
			"data_size", len(p),
			"bytes_written", n)
		wc.closed = true
	}
	return n, err
}

func (wc *writerCloser) Close() error {
	wc.closed = true
	if c, ok := wc.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// webmMuxer writes encoded frames as SimpleBlocks into a live (unknown size)
// WebM or Matroska segment.
type webmMuxer struct {
	logger *slog.Logger

	mu        sync.Mutex
	video     webm.BlockWriteCloser
	audio     []webm.BlockWriteCloser
	lastVideo int64
	lastAudio []int64
	closed    bool

	// the fatal handler runs on the block writer's goroutine
	fatalMu sync.Mutex
	fatal   error
}

// newWebMMuxer writes the EBML header and track list to w. onFatal is called
// at most once when the underlying writer fails.
func newWebMMuxer(w io.Writer, cfg muxerConfig, onFatal func(error), logger *slog.Logger) (*webmMuxer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &webmMuxer{
		logger:    logger.With("component", "webm_muxer", "container", cfg.Format.Container.String()),
		lastAudio: make([]int64, len(cfg.Audio)),
	}

	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	tracks := []webm.TrackEntry{{
		Name:            "Video",
		TrackNumber:     videoTrackNumber,
		TrackUID:        videoTrackNumber,
		CodecID:         cfg.Format.Video.MatroskaCodecID(),
		TrackType:       1,
		DefaultDuration: uint64(time.Second / time.Duration(fps)),
		Video: &webm.Video{
			PixelWidth:  uint64(cfg.Width),
			PixelHeight: uint64(cfg.Height),
		},
	}}
	for i, a := range cfg.Audio {
		n := uint64(videoTrackNumber + 1 + i)
		entry := webm.TrackEntry{
			Name:            fmt.Sprintf("Audio %d", i+1),
			TrackNumber:     n,
			TrackUID:        n,
			CodecID:         cfg.Format.Audio.MatroskaCodecID(),
			TrackType:       2,
			DefaultDuration: uint64(time.Duration(a.FrameSizeMs) * time.Millisecond),
			Audio: &webm.Audio{
				SamplingFrequency: float64(a.SampleRate),
				Channels:          uint64(a.Channels),
			},
		}
		if cfg.Format.Audio == AudioCodecOpus {
			entry.CodecPrivate = opusHead(a.Channels, a.SampleRate)
			entry.SeekPreRoll = uint64(80 * time.Millisecond)
			entry.CodecDelay = uint64(time.Duration(opusPreSkip) * time.Second / 48000)
		}
		tracks = append(tracks, entry)
	}

	writeCloser := &writerCloser{writer: w, logger: m.logger}

	writers, err := webm.NewSimpleBlockWriter(writeCloser, tracks,
		mkvcore.WithEBMLHeader(ebmlHeader(cfg.Format.Container)),
		mkvcore.WithSegmentInfo(&webm.Info{
			TimecodeScale: uint64(time.Millisecond),
			MuxingApp:     muxingApp,
			WritingApp:    muxingApp,
		}),
		mkvcore.WithOnFatalHandler(func(err error) {
			m.logger.Warn("muxer failed", "error", err)
			m.fatalMu.Lock()
			first := m.fatal == nil
			if first {
				m.fatal = err
			}
			m.fatalMu.Unlock()
			if first && onFatal != nil {
				onFatal(err)
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("create %s writer: %w", cfg.Format.Container, err)
	}

	m.video = writers[0]
	m.audio = writers[1:]

	m.logger.Debug("container initialized",
		"video", cfg.Format.Video.String(),
		"audio_tracks", len(cfg.Audio),
		"width", cfg.Width,
		"height", cfg.Height)
	return m, nil
}

func ebmlHeader(c Container) *webm.EBMLHeader {
	h := &webm.EBMLHeader{
		EBMLVersion:        1,
		EBMLReadVersion:    1,
		EBMLMaxIDLength:    4,
		EBMLMaxSizeLength:  8,
		DocType:            "webm",
		DocTypeVersion:     4,
		DocTypeReadVersion: 2,
	}
	if c == ContainerMatroska {
		h.DocType = "matroska"
	}
	return h
}

// opusHead builds the Opus identification header stored as CodecPrivate.
func opusHead(channels, sampleRate int) []byte {
	b := make([]byte, 19)
	copy(b, "OpusHead")
	b[8] = 1
	b[9] = byte(channels)
	binary.LittleEndian.PutUint16(b[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(b[12:], uint32(sampleRate))
	// output gain and mapping family stay zero
	return b
}

// WriteVideo writes one video frame at ts on the media timeline. data is
// copied before it is queued, so the caller may reuse it immediately.
func (m *webmMuxer) WriteVideo(keyframe bool, ts time.Duration, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writableLocked(); err != nil {
		return err
	}
	ms := max(ts.Milliseconds(), m.lastVideo)
	m.lastVideo = ms
	if _, err := m.video.Write(keyframe, ms, append([]byte(nil), data...)); err != nil {
		return fmt.Errorf("write video block: %w", err)
	}
	return nil
}

// WriteAudio writes one audio frame for audio track i. data is copied like
// in WriteVideo.
func (m *webmMuxer) WriteAudio(i int, ts time.Duration, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writableLocked(); err != nil {
		return err
	}
	if i < 0 || i >= len(m.audio) {
		return fmt.Errorf("audio track %d out of range", i)
	}
	ms := max(ts.Milliseconds(), m.lastAudio[i])
	m.lastAudio[i] = ms
	if _, err := m.audio[i].Write(true, ms, append([]byte(nil), data...)); err != nil {
		return fmt.Errorf("write audio block: %w", err)
	}
	return nil
}

func (m *webmMuxer) writableLocked() error {
	if m.closed {
		return errMuxerClosed
	}
	m.fatalMu.Lock()
	defer m.fatalMu.Unlock()
	return m.fatal
}

// Close finishes the segment. The block writer closes the underlying writer
// asynchronously once every track writer is closed.
func (m *webmMuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if err := m.video.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, w := range m.audio {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
