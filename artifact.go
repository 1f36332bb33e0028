package screenrec

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind distinguishes the raw recording from its transcoded copy.
type ArtifactKind int

const (
	ArtifactRecorded ArtifactKind = iota
	ArtifactTranscoded
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactRecorded:
		return "recorded"
	case ArtifactTranscoded:
		return "transcoded"
	default:
		return "unknown"
	}
}

const blobURLPrefix = "blob:screenrec/"

var ErrArtifactRevoked = errors.New("artifact revoked")

// Artifact is an immutable finished recording reachable through a revocable
// URL.
type Artifact struct {
	URL      string
	Kind     ArtifactKind
	MimeType string
	Duration time.Duration
	Created  time.Time

	data []byte
}

// Bytes returns the artifact contents. The slice must not be modified.
func (a *Artifact) Bytes() []byte { return a.data }

func (a *Artifact) Size() int { return len(a.data) }

// FileName returns the download name, "recording.<ext>".
func (a *Artifact) FileName() string {
	return "recording." + extensionFor(a.MimeType)
}

func extensionFor(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "bin"
	}
	switch mediaType {
	case "video/webm":
		return ContainerWebM.Extension()
	case "video/x-matroska", "video/matroska":
		return ContainerMatroska.Extension()
	case "video/mp4":
		return "mp4"
	default:
		return "bin"
	}
}

// ArtifactStore keeps finished recordings addressable by URL until they are
// revoked, like URL.createObjectURL and URL.revokeObjectURL.
type ArtifactStore struct {
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]*Artifact
}

// NewArtifactStore creates an empty store. A nil logger uses slog.Default().
func NewArtifactStore(logger *slog.Logger) *ArtifactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStore{
		logger: logger.With("component", "artifacts"),
		items:  make(map[string]*Artifact),
	}
}

// Create stores data under a new URL.
func (s *ArtifactStore) Create(kind ArtifactKind, data []byte, mimeType string, duration time.Duration) *Artifact {
	a := &Artifact{
		URL:      blobURLPrefix + uuid.NewString(),
		Kind:     kind,
		MimeType: mimeType,
		Duration: duration,
		Created:  time.Now(),
		data:     data,
	}
	s.mu.Lock()
	s.items[a.URL] = a
	s.mu.Unlock()

	s.logger.Debug("artifact created", "url", a.URL, "kind", kind.String(), "bytes", len(data))
	return a
}

// Revoke releases url. It reports whether the URL was live; revoking an
// unknown or empty URL is a no-op.
func (s *ArtifactStore) Revoke(url string) bool {
	if url == "" {
		return false
	}
	s.mu.Lock()
	_, ok := s.items[url]
	delete(s.items, url)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("artifact revoked", "url", url)
	}
	return ok
}

// Lookup returns the artifact behind url.
func (s *ArtifactStore) Lookup(url string) (*Artifact, error) {
	s.mu.RLock()
	a, ok := s.items[url]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactRevoked, url)
	}
	return a, nil
}

// Open returns a seekable reader over the artifact behind url.
func (s *ArtifactStore) Open(url string) (*bytes.Reader, error) {
	a, err := s.Lookup(url)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(a.data), nil
}

// Len returns the number of live URLs.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
