package screenrec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is a snapshot of the controller for the presentation layer.
type Status struct {
	State         SessionState
	Selection     MediaSourceSelection
	DownloadReady bool
	Progress      int // Transcode progress, 0-100
	Recorded      *Artifact
	Transcoded    *Artifact
	LastError     error
	LastErrorKind ErrorKind
}

// Controller runs recording sessions: inactive, recording, paused,
// processing and back to inactive. At most one session holds devices at a
// time.
type Controller struct {
	opts     Options
	devices  *MediaDevices
	acquirer *Acquirer
	store    *ArtifactStore
	preview  *Preview
	events   *eventHub
	logger   *slog.Logger
	metrics  *Metrics

	mu            sync.Mutex
	state         SessionState
	starting      bool
	closed        bool
	selection     MediaSourceSelection
	session       *recordingSession
	recorded      *Artifact
	transcoded    *Artifact
	downloadReady bool
	progress      int
	lastErr       error

	transcodeCancel context.CancelFunc
	transcodes      sync.WaitGroup
}

// NewController creates an inactive controller using provider for devices.
func NewController(provider DeviceProvider, opts Options) *Controller {
	opts.normalize()
	logger := opts.Logger

	store := NewArtifactStore(logger)
	c := &Controller{
		opts:      opts,
		devices:   NewMediaDevices(provider, logger),
		store:     store,
		preview:   NewPreview(store, logger),
		events:    newEventHub(logger.With("component", "events")),
		logger:    logger.With("component", "controller"),
		metrics:   opts.Metrics,
		selection: opts.Selection,
	}
	c.acquirer = NewAcquirer(c.devices, logger)
	c.devices.OnDeviceChange(func() {
		c.events.publish(Event{Type: EventDevicesChanged, State: c.State()})
	})
	c.metrics.state(StateInactive)
	return c
}

// Devices returns the device enumerator.
func (c *Controller) Devices() *MediaDevices { return c.devices }

// Preview returns the playback sink fed by the controller.
func (c *Controller) Preview() *Preview { return c.preview }

// Artifacts returns the store holding finished recordings.
func (c *Controller) Artifacts() *ArtifactStore { return c.store }

// ListAudioInputs lists the microphones present right now.
func (c *Controller) ListAudioInputs(ctx context.Context) ([]DeviceDescriptor, error) {
	return c.devices.ListAudioInputs(ctx)
}

// ListVideoInputs lists the cameras present right now.
func (c *Controller) ListVideoInputs(ctx context.Context) ([]DeviceDescriptor, error) {
	return c.devices.ListVideoInputs(ctx)
}

// Subscribe returns a channel of controller events and a function that
// cancels the subscription.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe(c.opts.EventBuffer)
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:         c.state,
		Selection:     c.selection,
		DownloadReady: c.downloadReady,
		Progress:      c.progress,
		Recorded:      c.recorded,
		Transcoded:    c.transcoded,
		LastError:     c.lastErr,
		LastErrorKind: ClassifyError(c.lastErr),
	}
}

// Selection returns the source selection used by the next Start.
func (c *Controller) Selection() MediaSourceSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// SetSelection replaces the source selection. It is only allowed while
// inactive.
func (c *Controller) SetSelection(sel MediaSourceSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInactive || c.starting {
		return fmt.Errorf("%w: selection is frozen while %s", ErrInvalidState, c.state)
	}
	if sel.AudioDeviceID == "" {
		sel.AudioDeviceID = DefaultAudioDeviceID
	}
	c.selection = sel
	return nil
}

// Download returns the artifact of the given kind.
func (c *Controller) Download(kind ArtifactKind) (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var a *Artifact
	switch kind {
	case ArtifactRecorded:
		if c.downloadReady {
			a = c.recorded
		}
	case ArtifactTranscoded:
		a = c.transcoded
	}
	if a == nil {
		return nil, fmt.Errorf("%w: no %s artifact", ErrInvalidState, kind)
	}
	return a, nil
}

// recordingFormat resolves the configured MIME type, or the first
// available format.
func (c *Controller) recordingFormat(withAudio bool) (RecordingFormat, error) {
	if c.opts.MimeType != "" {
		f, err := ParseMimeType(c.opts.MimeType)
		if err != nil {
			return RecordingFormat{}, err
		}
		return f, f.Available(withAudio)
	}
	for _, f := range preferredFormats {
		if f.Available(withAudio) == nil {
			return f, nil
		}
	}
	return RecordingFormat{}, fmt.Errorf("%w: no recording format available", ErrUnsupportedFormat)
}

// Start acquires the selected sources, starts compositing and recording,
// and moves to Recording. It is not reentrant: a second call while an
// acquisition is pending fails with ErrBusy, and a call outside Inactive
// fails with ErrInvalidState. On any failure everything acquired so far is
// released and the controller stays Inactive.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return fmt.Errorf("%w: controller closed", ErrInvalidState)
	case c.starting:
		c.mu.Unlock()
		return ErrBusy
	case c.state != StateInactive:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, state)
	}
	c.starting = true
	sel := c.selection
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	sess, err := c.startSession(ctx, sel)
	if err != nil {
		c.metrics.session("failed")
		c.reportError(err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sess.stopOnce.Do(func() {
			sess.recorder.Stop()
			sess.release()
		})
		close(sess.ready)
		return fmt.Errorf("%w: controller closed", ErrInvalidState)
	}
	c.session = sess
	c.state = StateRecording
	c.progress = 0
	c.mu.Unlock()

	c.metrics.session("started")
	c.setState(StateRecording)
	c.preview.ShowStream(sess.stream)
	close(sess.ready)
	c.logger.Info("session started",
		"session", sess.id,
		"mime_type", sess.recorder.MimeType(),
		"camera", sel.IncludeCamera,
		"audio", sel.IncludeAudio)

	// the screen may have been ended while the session was being wired
	if sess.tracks.Screen.State() == TrackStateEnded {
		go c.stopSession(sess, nil)
	}
	return nil
}

// startSession runs acquisition, compositing and recording in order and
// unwinds on failure.
func (c *Controller) startSession(ctx context.Context, sel MediaSourceSelection) (*recordingSession, error) {
	format, err := c.recordingFormat(sel.IncludeAudio)
	if err != nil {
		return nil, err
	}

	sess := newRecordingSession()
	tracks, err := c.acquirer.Acquire(ctx, sel, func() { c.onScreenEnded(sess) })
	if err != nil {
		return nil, err
	}
	sess.tracks = tracks

	sess.compositor = NewCompositor(CompositorConfig{
		DrawRate:       c.opts.DrawRate,
		CaptureRate:    c.opts.CaptureRate,
		OverlayWidth:   c.opts.OverlayWidth,
		OverlayHeight:  c.opts.OverlayHeight,
		OverlayPadding: c.opts.OverlayPadding,
		Clock:          c.opts.Clock,
		Logger:         c.opts.Logger,
		Metrics:        c.metrics,
	})
	canvas, err := sess.compositor.Start(tracks.Screen, tracks.Camera, sel.CameraCorner)
	if err != nil {
		sess.release()
		return nil, fmt.Errorf("start compositor: %w", err)
	}
	sess.canvas = canvas
	sess.compositor.SetCorner(sel.CameraCorner)

	sess.recorder = NewRecorder(RecorderConfig{
		Format:          format,
		Timeslice:       c.opts.Timeslice,
		FrameRate:       c.opts.CaptureRate,
		VideoBitrateBps: c.opts.VideoBitrateBps,
		AudioBitrateBps: c.opts.AudioBitrateBps,
		Clock:           c.opts.Clock,
		Logger:          c.opts.Logger,
		Metrics:         c.metrics,
	})
	sess.recorder.OnDataAvailable(func(chunk []byte) {
		c.events.publish(Event{Type: EventChunk, ChunkSize: len(chunk)})
	})
	sess.recorder.OnError(func(err error) {
		c.stopSession(sess, err)
	})
	if err := sess.recorder.Start(canvas, tracks.Audio...); err != nil {
		sess.release()
		return nil, err
	}

	streamTracks := []MediaStreamTrack{canvas}
	for _, a := range tracks.Audio {
		streamTracks = append(streamTracks, a)
	}
	sess.stream = NewMediaStream(sess.id, streamTracks...)
	return sess, nil
}

// PauseResume pauses a recording session or resumes a paused one and
// returns the resulting state.
func (c *Controller) PauseResume() (SessionState, error) {
	c.mu.Lock()
	sess := c.session
	state := c.state
	if sess == nil || (state != StateRecording && state != StatePaused) {
		c.mu.Unlock()
		return state, fmt.Errorf("%w: cannot pause or resume while %s", ErrInvalidState, state)
	}

	var err error
	next := state
	if state == StateRecording {
		if err = sess.recorder.Pause(); err == nil {
			next = StatePaused
		}
	} else {
		if err = sess.recorder.Resume(); err == nil {
			next = StateRecording
		}
	}
	c.state = next
	c.mu.Unlock()

	if err != nil {
		return next, err
	}
	c.setState(next)
	return next, nil
}

// Stop finishes the active session. It is a no-op unless the controller is
// recording or paused.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.session
	state := c.state
	c.mu.Unlock()
	if sess == nil || (state != StateRecording && state != StatePaused) {
		return
	}
	c.stopSession(sess, nil)
}

func (c *Controller) onScreenEnded(sess *recordingSession) {
	c.mu.Lock()
	active := c.session == sess
	c.mu.Unlock()
	if !active {
		return
	}
	c.logger.Info("screen capture ended externally", "session", sess.id)
	c.stopSession(sess, nil)
}

// stopSession is the only way a session ends: user stop, external screen
// termination and fatal recorder errors all come through here, and only the
// first call for a session does anything.
func (c *Controller) stopSession(sess *recordingSession, cause error) {
	sess.stopOnce.Do(func() {
		<-sess.ready
		if cause != nil {
			c.reportError(cause)
		}

		blob, err := sess.recorder.Stop()
		if err != nil {
			c.logger.Warn("recorder stop", "session", sess.id, "error", err)
		}
		if blob == nil {
			blob = &Blob{MimeType: sess.recorder.MimeType()}
		}

		artifact := c.store.Create(ArtifactRecorded, blob.Data, blob.MimeType, blob.Duration)

		// The old transcode is cancelled in the same critical section that
		// replaces c.recorded, so it can never observe itself as current.
		c.mu.Lock()
		prevRecorded, prevTranscoded := c.recorded, c.transcoded
		if c.transcodeCancel != nil {
			c.transcodeCancel()
			c.transcodeCancel = nil
		}
		c.session = nil
		c.recorded = artifact
		c.transcoded = nil
		c.downloadReady = true
		c.progress = 0
		c.state = StateProcessing
		c.mu.Unlock()

		if prevRecorded != nil {
			c.store.Revoke(prevRecorded.URL)
		}
		if prevTranscoded != nil {
			c.store.Revoke(prevTranscoded.URL)
		}
		c.preview.ShowURL(artifact.URL)
		sess.release()

		outcome := "completed"
		if cause != nil {
			outcome = "failed"
		}
		c.metrics.session(outcome)
		c.setState(StateProcessing)
		c.events.publish(Event{Type: EventArtifactReady, State: StateProcessing, Artifact: artifact})
		c.logger.Info("session stopped",
			"session", sess.id,
			"bytes", blob.Size(),
			"duration", blob.Duration,
			"chunks", blob.Chunks)

		c.dispatchTranscode(artifact)

		c.mu.Lock()
		c.state = StateInactive
		c.mu.Unlock()
		c.setState(StateInactive)
	})
}

// dispatchTranscode runs the transcoder in the background. Its outcome never
// changes the session state.
func (c *Controller) dispatchTranscode(raw *Artifact) {
	if c.opts.Transcoder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.TranscodeTimeout)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.transcodeCancel = cancel
	c.transcodes.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.transcodes.Done()
		defer cancel()

		progress := newProgressReporter(func(p int) {
			c.mu.Lock()
			current := c.recorded == raw
			if current {
				c.progress = p
			}
			c.mu.Unlock()
			if current {
				c.events.publish(Event{Type: EventTranscodeProgress, Progress: p})
			}
		})

		start := c.opts.Clock.Now()
		out, mimeType, err := c.opts.Transcoder.Transcode(ctx, raw.Bytes(), raw.MimeType, progress.Update)
		elapsed := c.opts.Clock.Since(start)
		if err == nil && len(out) == 0 {
			err = errors.New("empty output")
		}
		if err != nil {
			if !errors.Is(err, ErrTranscode) {
				err = fmt.Errorf("%w: %v", ErrTranscode, err)
			}
			c.metrics.transcode("failed", elapsed)
			c.mu.Lock()
			current := c.recorded == raw
			c.mu.Unlock()
			if current {
				c.reportError(err)
			}
			return
		}

		c.mu.Lock()
		if c.recorded != raw || c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		artifact := c.store.Create(ArtifactTranscoded, out, mimeType, raw.Duration)
		progress.Complete()

		c.mu.Lock()
		if c.recorded != raw {
			c.mu.Unlock()
			c.store.Revoke(artifact.URL)
			return
		}
		c.transcoded = artifact
		c.mu.Unlock()

		c.metrics.transcode("succeeded", elapsed)
		c.events.publish(Event{Type: EventArtifactReady, Artifact: artifact})
		c.logger.Info("transcode finished",
			"mime_type", mimeType,
			"bytes", artifact.Size(),
			"elapsed", elapsed.Round(time.Millisecond))
	}()
}

// WaitTranscode blocks until background transcodes have finished.
func (c *Controller) WaitTranscode() {
	c.transcodes.Wait()
}

// Close stops any active session, cancels transcoding and revokes all
// artifacts. The controller cannot be started again.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		c.stopSession(sess, nil)
	}

	c.mu.Lock()
	c.closed = true
	if c.transcodeCancel != nil {
		c.transcodeCancel()
		c.transcodeCancel = nil
	}
	recorded, transcoded := c.recorded, c.transcoded
	c.recorded, c.transcoded = nil, nil
	c.downloadReady = false
	c.mu.Unlock()

	c.transcodes.Wait()
	if recorded != nil {
		c.store.Revoke(recorded.URL)
	}
	if transcoded != nil {
		c.store.Revoke(transcoded.URL)
	}
	c.preview.Clear()
	c.events.close()
	return nil
}

func (c *Controller) setState(s SessionState) {
	c.metrics.state(s)
	c.events.publish(Event{Type: EventStateChanged, State: s})
}

func (c *Controller) reportError(err error) {
	kind := ClassifyError(err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.metrics.error(kind)
	if acquisitionError(err) {
		c.logger.Warn("source acquisition failed", "error", err, "kind", kind.String())
	} else {
		c.logger.Error("session error", "error", err, "kind", kind.String())
	}
	c.events.publish(Event{Type: EventError, Err: err, Kind: kind})
}
