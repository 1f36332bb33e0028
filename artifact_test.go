package screenrec

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore_CreateLookupRevoke(t *testing.T) {
	s := NewArtifactStore(nil)
	a := s.Create(ArtifactRecorded, []byte("payload"), FormatWebMVP8Opus.MimeType(), 3*time.Second)

	assert.Contains(t, a.URL, "blob:screenrec/")
	assert.Equal(t, 7, a.Size())
	assert.Equal(t, "recording.webm", a.FileName())
	assert.Equal(t, 1, s.Len())

	got, err := s.Lookup(a.URL)
	require.NoError(t, err)
	assert.Same(t, a, got)

	r, err := s.Open(a.URL)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	assert.True(t, s.Revoke(a.URL))
	assert.False(t, s.Revoke(a.URL))
	assert.False(t, s.Revoke(""))
	_, err = s.Lookup(a.URL)
	assert.ErrorIs(t, err, ErrArtifactRevoked)
	assert.Zero(t, s.Len())
}

func TestArtifactStore_DistinctURLs(t *testing.T) {
	s := NewArtifactStore(nil)
	a := s.Create(ArtifactRecorded, nil, "video/webm", 0)
	b := s.Create(ArtifactRecorded, nil, "video/webm", 0)
	assert.NotEqual(t, a.URL, b.URL)
}

func TestArtifact_FileName(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"video/webm;codecs=vp8,opus", "recording.webm"},
		{"video/x-matroska;codecs=mjpeg,pcm", "recording.mkv"},
		{"video/mp4", "recording.mp4"},
		{"application/octet-stream", "recording.bin"},
		{"", "recording.bin"},
	}
	for _, tt := range tests {
		a := &Artifact{MimeType: tt.mime}
		assert.Equal(t, tt.want, a.FileName(), tt.mime)
	}
}

func TestPreview_LiveThenArtifact(t *testing.T) {
	store := NewArtifactStore(nil)
	p := NewPreview(store, nil)

	var seen []PlaybackSource
	p.Attach(PlaybackTargetFunc(func(src PlaybackSource) { seen = append(seen, src) }))
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Empty())

	stream := NewMediaStream("")
	p.ShowStream(stream)
	cur := p.Current()
	assert.True(t, cur.Live())
	assert.Zero(t, cur.Volume)
	assert.True(t, cur.Autoplay)

	a := store.Create(ArtifactRecorded, []byte("x"), "video/webm", 0)
	p.ShowURL(a.URL)
	cur = p.Current()
	assert.False(t, cur.Live())
	assert.Equal(t, a.URL, cur.URL)
	assert.Equal(t, 1.0, cur.Volume)
	assert.True(t, cur.Seekable)

	p.Clear()
	assert.Equal(t, 1, store.Len(), "URLs the preview did not create stay live")
	assert.Len(t, seen, 4)
}

func TestPreview_ShowBlobRevokesPreviousURL(t *testing.T) {
	store := NewArtifactStore(nil)
	p := NewPreview(store, nil)

	first := p.ShowBlob(&Blob{Data: []byte("one"), MimeType: "video/webm"})
	second := p.ShowBlob(&Blob{Data: []byte("two"), MimeType: "video/webm"})

	_, err := store.Lookup(first.URL)
	assert.ErrorIs(t, err, ErrArtifactRevoked)
	_, err = store.Lookup(second.URL)
	assert.NoError(t, err)

	p.Clear()
	assert.Zero(t, store.Len())
}
