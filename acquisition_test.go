package screenrec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirer_ScreenOnly(t *testing.T) {
	p := NewVirtualDeviceProvider(twoCameraConfig())
	a := NewAcquirer(NewMediaDevices(p, nil), nil)

	set, err := a.Acquire(context.Background(), DefaultSelection(), nil)
	require.NoError(t, err)
	assert.NotNil(t, set.Screen)
	assert.Nil(t, set.Camera)
	assert.Empty(t, set.Audio)
	assert.Len(t, p.LiveTracks(), 1)

	set.Release()
	set.Release()
	assert.Empty(t, p.LiveTracks())
}

func TestAcquirer_AllSources(t *testing.T) {
	p := NewVirtualDeviceProvider(twoCameraConfig())
	a := NewAcquirer(NewMediaDevices(p, nil), nil)

	sel := DefaultSelection()
	sel.IncludeAudio = true
	sel.IncludeCamera = true
	sel.VideoDeviceID = "cam-b"

	set, err := a.Acquire(context.Background(), sel, nil)
	require.NoError(t, err)
	defer set.Release()

	require.NotNil(t, set.Camera)
	assert.Equal(t, "cam-b", set.Camera.Settings().DeviceID)
	require.Len(t, set.Audio, 1)
	assert.Len(t, set.Tracks(), 3)
}

func TestAcquirer_CameraFailureReleasesScreen(t *testing.T) {
	p := NewVirtualDeviceProvider(twoCameraConfig())
	p.DenyPermission(CaptureKindCamera, true)
	a := NewAcquirer(NewMediaDevices(p, nil), nil)

	sel := DefaultSelection()
	sel.IncludeCamera = true
	sel.IncludeAudio = true

	set, err := a.Acquire(context.Background(), sel, nil)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Nil(t, set)
	assert.Empty(t, p.LiveTracks())
}

func TestAcquirer_ScreenEndedCallback(t *testing.T) {
	p := NewVirtualDeviceProvider(twoCameraConfig())
	a := NewAcquirer(NewMediaDevices(p, nil), nil)

	ended := make(chan struct{})
	set, err := a.Acquire(context.Background(), DefaultSelection(), func() { close(ended) })
	require.NoError(t, err)
	defer set.Release()

	p.EndDisplayCapture()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("screen ended callback not called")
	}
}

func TestAcquisitionError(t *testing.T) {
	assert.True(t, acquisitionError(ErrUserCancelled))
	assert.True(t, acquisitionError(ErrPermissionDenied))
	assert.True(t, acquisitionError(ErrDeviceNotFound))
	assert.False(t, acquisitionError(ErrTranscode))
}
