package screenrec

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// RecorderState is the state of a Recorder.
type RecorderState int

const (
	RecorderInactive RecorderState = iota
	RecorderRecording
	RecorderPaused
	RecorderStopped
)

func (s RecorderState) String() string {
	switch s {
	case RecorderInactive:
		return "inactive"
	case RecorderRecording:
		return "recording"
	case RecorderPaused:
		return "paused"
	case RecorderStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Format    RecordingFormat
	Timeslice time.Duration // Chunk interval (default: 1s)
	FrameRate int           // Nominal video frame rate (default: 30)

	VideoBitrateBps int // 0 = encoder default
	AudioBitrateBps int // 0 = encoder default
	AudioFrameMs    int // Audio packet duration (default: 20)

	VideoQueue int // Pending video frames before dropping (default: 4)
	AudioQueue int // Pending audio buffers before dropping (default: 64)

	Clock   clock.WithTicker
	Logger  *slog.Logger
	Metrics *Metrics
}

// DefaultRecorderConfig returns the default configuration for format.
func DefaultRecorderConfig(format RecordingFormat) RecorderConfig {
	return RecorderConfig{
		Format:       format,
		Timeslice:    time.Second,
		FrameRate:    30,
		AudioFrameMs: 20,
		VideoQueue:   4,
		AudioQueue:   64,
	}
}

// Blob is a finished recording.
type Blob struct {
	Data     []byte
	MimeType string
	Duration time.Duration // Recorded time, paused intervals excluded
	Chunks   int
}

// Size returns the blob size in bytes.
func (b *Blob) Size() int { return len(b.Data) }

const muxerCloseTimeout = 2 * time.Second

type controlKind int

const (
	controlFlush controlKind = iota
	controlKeyframe
	controlStop
)

type videoJob struct {
	frame *VideoFrame
	ts    time.Duration
}

type audioJob struct {
	track   int
	samples *AudioSamples
	ts      time.Duration
}

// audioPipe frames one audio track into fixed-size encoder input.
type audioPipe struct {
	enc          AudioEncoder
	sampleRate   int
	channels     int
	frameSamples int
	frameBytes   int

	pending []byte
	base    time.Duration
	started bool
	encoded int64
}

// Recorder encodes one video track and any number of audio tracks into a
// WebM or Matroska byte stream, delivered as chunks while recording and as a
// Blob on stop.
//
// Frames are queued by the track callbacks and encoded on a single worker
// goroutine, so chunks are delivered in order. Media timestamps come from a
// clock that stops while paused.
type Recorder struct {
	cfg     RecorderConfig
	logger  *slog.Logger
	metrics *Metrics

	mu          sync.Mutex
	state       RecorderState
	mclock      *mediaClock
	audioTracks []AudioTrack
	unsubs      []func()
	onData      func([]byte)
	onStop      func(*Blob)
	onError     func(error)

	video    chan videoJob
	audio    chan audioJob
	control  chan controlKind
	fatal    chan error
	finished chan struct{}
	blob     *Blob

	// owned by the worker goroutine
	buf    *chunkBuffer
	muxer  *webmMuxer
	venc   VideoEncoder
	apipes []*audioPipe
	chunks [][]byte
	failed error
}

// NewRecorder creates an inactive recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig(cfg.Format)
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = def.Timeslice
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = def.FrameRate
	}
	if cfg.AudioFrameMs <= 0 {
		cfg.AudioFrameMs = def.AudioFrameMs
	}
	if cfg.VideoQueue <= 0 {
		cfg.VideoQueue = def.VideoQueue
	}
	if cfg.AudioQueue <= 0 {
		cfg.AudioQueue = def.AudioQueue
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "recorder"),
		metrics:  cfg.Metrics,
		finished: make(chan struct{}),
	}
}

// OnDataAvailable sets the chunk callback. Chunks are never empty.
func (r *Recorder) OnDataAvailable(cb func(chunk []byte)) {
	r.mu.Lock()
	r.onData = cb
	r.mu.Unlock()
}

// OnStop sets the completion callback. It fires exactly once per started
// recorder, also when no data was recorded.
func (r *Recorder) OnStop(cb func(blob *Blob)) {
	r.mu.Lock()
	r.onStop = cb
	r.mu.Unlock()
}

// OnError sets the callback for fatal encoding errors. The recorder stops
// itself after reporting one.
func (r *Recorder) OnError(cb func(err error)) {
	r.mu.Lock()
	r.onError = cb
	r.mu.Unlock()
}

// State returns the recorder state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Format returns the configured recording format.
func (r *Recorder) Format() RecordingFormat { return r.cfg.Format }

// MimeType returns the MIME type of the produced data.
func (r *Recorder) MimeType() string { return r.cfg.Format.MimeType() }

// Duration returns the recorded time so far, paused intervals excluded.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	mc := r.mclock
	r.mu.Unlock()
	if mc == nil {
		return 0
	}
	return mc.Now()
}

// Start begins recording video and audio. It fails with ErrUnsupportedFormat
// when no encoder for the configured format is available.
func (r *Recorder) Start(video VideoTrack, audio ...AudioTrack) error {
	if video == nil {
		return fmt.Errorf("%w: no video track", ErrInvalidState)
	}
	if err := r.cfg.Format.Available(len(audio) > 0); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderInactive {
		return fmt.Errorf("%w: recorder is %s", ErrInvalidState, r.state)
	}

	r.state = RecorderRecording
	r.mclock = newMediaClock(r.cfg.Clock)
	r.audioTracks = audio
	r.video = make(chan videoJob, r.cfg.VideoQueue)
	r.audio = make(chan audioJob, r.cfg.AudioQueue)
	r.control = make(chan controlKind, 4)
	r.fatal = make(chan error, 1)
	r.buf = newChunkBuffer()

	r.unsubs = append(r.unsubs, video.OnFrame(r.onVideoFrame))
	for i, t := range audio {
		r.unsubs = append(r.unsubs, t.OnSamples(func(s *AudioSamples) {
			r.onAudioSamples(i, s)
		}))
	}

	go r.run()

	r.logger.Info("recording started",
		"mime_type", r.cfg.Format.MimeType(),
		"audio_tracks", len(audio),
		"timeslice", r.cfg.Timeslice)
	return nil
}

// Pause stops feeding media into the recording and flushes pending data as
// a chunk. The media clock stops until Resume.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	if r.state != RecorderRecording {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, state)
	}
	r.state = RecorderPaused
	r.mclock.Pause()
	r.mu.Unlock()

	r.control <- controlFlush
	return nil
}

// Resume continues a paused recording.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	if r.state != RecorderPaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, state)
	}
	r.state = RecorderRecording
	r.mclock.Resume()
	r.mu.Unlock()

	r.control <- controlKeyframe
	return nil
}

// Stop finishes the recording and returns the blob once the final chunk is
// flushed. Concurrent and repeated calls return the same blob.
func (r *Recorder) Stop() (*Blob, error) {
	r.mu.Lock()
	switch r.state {
	case RecorderInactive:
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: recorder not started", ErrInvalidState)
	case RecorderStopped:
		r.mu.Unlock()
		<-r.finished
		return r.blob, nil
	}
	r.state = RecorderStopped
	if r.mclock != nil {
		r.mclock.Pause()
	}
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	r.control <- controlStop
	<-r.finished
	return r.blob, nil
}

// Done is closed after the recorder stopped and the blob is available.
func (r *Recorder) Done() <-chan struct{} { return r.finished }

func (r *Recorder) onVideoFrame(frame *VideoFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return
	}
	select {
	case r.video <- videoJob{frame: frame.Clone(), ts: r.mclock.Now()}:
	default:
		r.metrics.frameDropped()
	}
}

func (r *Recorder) onAudioSamples(track int, samples *AudioSamples) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return
	}
	select {
	case r.audio <- audioJob{track: track, samples: samples.Clone(), ts: r.mclock.Now()}:
	default:
		r.logger.Debug("audio queue full, dropping samples", "track", track)
	}
}

func (r *Recorder) run() {
	ticker := r.cfg.Clock.NewTicker(r.cfg.Timeslice)
	defer ticker.Stop()

	for {
		select {
		case j := <-r.video:
			r.writeVideo(j)
		case j := <-r.audio:
			r.writeAudio(j)
		case err := <-r.fatal:
			r.fail(err)
		case <-ticker.C():
			r.flush()
		case c := <-r.control:
			switch c {
			case controlFlush:
				r.drain()
				r.flush()
			case controlKeyframe:
				if r.venc != nil {
					r.venc.RequestKeyframe()
				}
			case controlStop:
				r.drain()
				r.finish()
				return
			}
		}
	}
}

// drain encodes everything queued before the current control message.
func (r *Recorder) drain() {
	for {
		select {
		case j := <-r.video:
			r.writeVideo(j)
		case j := <-r.audio:
			r.writeAudio(j)
		default:
			return
		}
	}
}

// setup creates the encoders and the container once the canvas size is
// known from the first video frame.
func (r *Recorder) setup(width, height int) error {
	vcfg := DefaultVideoEncoderConfig(r.cfg.Format.Video, width, height)
	vcfg.FPS = r.cfg.FrameRate
	if r.cfg.VideoBitrateBps > 0 {
		vcfg.BitrateBps = r.cfg.VideoBitrateBps
	}
	venc, err := NewVideoEncoder(vcfg)
	if err != nil {
		return fmt.Errorf("create %s encoder: %w", r.cfg.Format.Video, err)
	}

	var (
		pipes []*audioPipe
		acfgs []AudioEncoderConfig
	)
	closeAll := func() {
		venc.Close()
		for _, p := range pipes {
			p.enc.Close()
		}
	}
	for _, t := range r.audioTracks {
		acfg := DefaultAudioEncoderConfig(r.cfg.Format.Audio)
		s := t.Settings()
		if s.SampleRate > 0 {
			acfg.SampleRate = s.SampleRate
		}
		if s.ChannelCount > 0 {
			acfg.Channels = s.ChannelCount
		}
		acfg.FrameSizeMs = r.cfg.AudioFrameMs
		if r.cfg.AudioBitrateBps > 0 {
			acfg.BitrateBps = r.cfg.AudioBitrateBps
		}
		enc, err := NewAudioEncoder(acfg)
		if err != nil {
			closeAll()
			return fmt.Errorf("create %s encoder: %w", r.cfg.Format.Audio, err)
		}
		n := acfg.FrameSamples()
		pipes = append(pipes, &audioPipe{
			enc:          enc,
			sampleRate:   acfg.SampleRate,
			channels:     acfg.Channels,
			frameSamples: n,
			frameBytes:   n * acfg.Channels * 2,
		})
		acfgs = append(acfgs, acfg)
	}

	fatal := r.fatal
	muxer, err := newWebMMuxer(r.buf, muxerConfig{
		Format: r.cfg.Format,
		Width:  width,
		Height: height,
		FPS:    r.cfg.FrameRate,
		Audio:  acfgs,
	}, func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}, r.logger)
	if err != nil {
		closeAll()
		return err
	}

	r.venc, r.apipes, r.muxer = venc, pipes, muxer
	return nil
}

func (r *Recorder) writeVideo(j videoJob) {
	if r.failed != nil {
		return
	}
	if r.muxer == nil {
		if err := r.setup(j.frame.Width, j.frame.Height); err != nil {
			r.fail(err)
			return
		}
	}
	cfg := r.venc.Config()
	if j.frame.Width != cfg.Width || j.frame.Height != cfg.Height {
		r.logger.Debug("dropping frame with unexpected size",
			"width", j.frame.Width, "height", j.frame.Height)
		return
	}

	enc, err := r.venc.Encode(j.frame)
	if err != nil {
		r.fail(fmt.Errorf("encode video: %w", err))
		return
	}
	if enc == nil || len(enc.Data) == 0 {
		return
	}
	if err := r.muxer.WriteVideo(enc.IsKeyframe(), j.ts, enc.Data); err != nil {
		r.fail(err)
	}
}

// writeAudio drops samples that arrive before the container exists.
func (r *Recorder) writeAudio(j audioJob) {
	if r.failed != nil || r.muxer == nil || j.track >= len(r.apipes) {
		return
	}
	p := r.apipes[j.track]
	if !p.started {
		p.base = j.ts
		p.started = true
	}
	p.pending = append(p.pending, j.samples.S16()...)

	for len(p.pending) >= p.frameBytes {
		frame := &AudioSamples{
			Data:        p.pending[:p.frameBytes],
			SampleRate:  p.sampleRate,
			Channels:    p.channels,
			SampleCount: p.frameSamples,
			Format:      AudioFormatS16,
		}
		ts := p.base + time.Duration(p.encoded)*time.Second/time.Duration(p.sampleRate)
		pkt, err := p.enc.Encode(frame)
		p.pending = append(p.pending[:0], p.pending[p.frameBytes:]...)
		p.encoded += int64(p.frameSamples)
		if err != nil {
			r.fail(fmt.Errorf("encode audio: %w", err))
			return
		}
		if pkt == nil || len(pkt.Data) == 0 {
			continue
		}
		if err := r.muxer.WriteAudio(j.track, ts, pkt.Data); err != nil {
			r.fail(err)
			return
		}
	}
}

// fail records the first fatal error, reports it and stops the recorder.
func (r *Recorder) fail(err error) {
	if r.failed != nil {
		return
	}
	r.failed = err
	r.metrics.encodeError()
	r.logger.Error("recording failed", "error", err)

	r.mu.Lock()
	cb := r.onError
	r.mu.Unlock()
	go func() {
		if cb != nil {
			cb(err)
		}
		r.Stop()
	}()
}

func (r *Recorder) flush() {
	data := r.buf.take()
	if len(data) == 0 {
		return
	}
	r.chunks = append(r.chunks, data)
	r.metrics.chunk(len(data))

	r.mu.Lock()
	cb := r.onData
	r.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (r *Recorder) finish() {
	if r.muxer != nil {
		if err := r.muxer.Close(); err != nil {
			r.logger.Warn("closing muxer", "error", err)
		}
		if r.failed == nil && !waitDone(r.cfg.Clock, r.buf.Done(), muxerCloseTimeout) {
			r.logger.Warn("muxer did not finish in time")
		}
		r.venc.Close()
		for _, p := range r.apipes {
			p.enc.Close()
		}
	}
	r.flush()

	blob := &Blob{
		Data:     joinChunks(r.chunks),
		MimeType: r.cfg.Format.MimeType(),
		Duration: r.mclock.Now(),
		Chunks:   len(r.chunks),
	}

	r.mu.Lock()
	r.blob = blob
	cb := r.onStop
	r.mu.Unlock()

	r.logger.Info("recording stopped",
		"bytes", blob.Size(),
		"chunks", blob.Chunks,
		"duration", blob.Duration)

	close(r.finished)
	if cb != nil {
		cb(blob)
	}
}

// waitDone waits for done until timeout elapses on clk.
func waitDone(clk clock.Clock, done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-clk.After(timeout):
		return false
	}
}
