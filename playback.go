package screenrec

import (
	"log/slog"
	"sync"
)

// PlaybackSource is what a preview surface shows: a live stream or the URL
// of a finished artifact, never both.
type PlaybackSource struct {
	Stream   MediaStream
	URL      string
	Volume   float64
	Autoplay bool
	Seekable bool
}

// Live reports whether the source is a live stream.
func (s PlaybackSource) Live() bool { return s.Stream != nil }

// Empty reports whether nothing is bound.
func (s PlaybackSource) Empty() bool { return s.Stream == nil && s.URL == "" }

// PlaybackTarget is a preview surface, the equivalent of a video element.
type PlaybackTarget interface {
	SetSource(src PlaybackSource)
}

// PlaybackTargetFunc adapts a function to PlaybackTarget.
type PlaybackTargetFunc func(src PlaybackSource)

func (f PlaybackTargetFunc) SetSource(src PlaybackSource) { f(src) }

// Preview binds live streams and finished artifacts to a PlaybackTarget.
// URLs created by the preview itself are revoked when the source changes.
type Preview struct {
	store  *ArtifactStore
	logger *slog.Logger

	mu       sync.Mutex
	target   PlaybackTarget
	current  PlaybackSource
	ownedURL string
}

// NewPreview creates a preview with no target attached.
func NewPreview(store *ArtifactStore, logger *slog.Logger) *Preview {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preview{store: store, logger: logger.With("component", "preview")}
}

// Attach sets the target and shows the current source on it. A nil target
// detaches.
func (p *Preview) Attach(target PlaybackTarget) {
	p.mu.Lock()
	p.target = target
	src := p.current
	p.mu.Unlock()

	if target != nil {
		target.SetSource(src)
	}
}

// ShowStream shows a live stream, muted and autoplaying.
func (p *Preview) ShowStream(stream MediaStream) {
	p.bind(PlaybackSource{Stream: stream, Volume: 0, Autoplay: true}, "")
}

// ShowURL shows an artifact owned by someone else, unmuted and seekable.
func (p *Preview) ShowURL(url string) {
	p.bind(PlaybackSource{URL: url, Volume: 1, Seekable: true}, "")
}

// ShowBlob stores blob and shows it. The preview owns the created URL and
// revokes it on the next change.
func (p *Preview) ShowBlob(blob *Blob) *Artifact {
	a := p.store.Create(ArtifactRecorded, blob.Data, blob.MimeType, blob.Duration)
	p.bind(PlaybackSource{URL: a.URL, Volume: 1, Seekable: true}, a.URL)
	return a
}

// Clear unbinds the current source.
func (p *Preview) Clear() {
	p.bind(PlaybackSource{}, "")
}

// Current returns the bound source.
func (p *Preview) Current() PlaybackSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Preview) bind(src PlaybackSource, owned string) {
	p.mu.Lock()
	prevOwned := p.ownedURL
	p.current = src
	p.ownedURL = owned
	target := p.target
	p.mu.Unlock()

	if prevOwned != "" && prevOwned != owned {
		p.store.Revoke(prevOwned)
	}
	if target != nil {
		target.SetSource(src)
	}
	p.logger.Debug("preview source changed", "live", src.Live(), "url", src.URL)
}
