package preview

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satsuei/internal/camera"
)

func acquireFake(t *testing.T, acquirer *camera.FakeAcquirer, facing camera.Facing, w, h int) camera.Stream {
	t.Helper()
	stream, err := acquirer.Acquire(context.Background(), camera.Constraints{
		Facing:      facing,
		IdealWidth:  w,
		IdealHeight: h,
	})
	require.NoError(t, err)
	t.Cleanup(func() { camera.StopTracks(stream) })
	return stream
}

func TestSurface_BindPlaysFrames(t *testing.T) {
	acquirer := camera.NewFakeAcquirer(200)
	surface := NewSurface(SurfaceOptions{})
	defer surface.Close()

	_, ok := surface.Frame()
	assert.False(t, ok)

	stream := acquireFake(t, acquirer, camera.FacingFront, 40, 30)
	surface.Bind(stream)
	assert.Equal(t, stream.ID(), surface.StreamID())

	require.Eventually(t, func() bool { return surface.FrameCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	w, h := surface.NaturalSize()
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestSurface_RebindIgnoresOldStream(t *testing.T) {
	acquirer := camera.NewFakeAcquirer(200)
	surface := NewSurface(SurfaceOptions{})
	defer surface.Close()

	old := acquireFake(t, acquirer, camera.FacingFront, 40, 30)
	surface.Bind(old)
	require.Eventually(t, func() bool { return surface.FrameCount() > 0 }, 2*time.Second, 5*time.Millisecond)

	next := acquireFake(t, acquirer, camera.FacingBack, 20, 10)
	surface.Bind(next)

	require.Eventually(t, func() bool {
		w, _ := surface.NaturalSize()
		return w == 20
	}, 2*time.Second, 5*time.Millisecond)

	// 古いストリームのフレームは反映されない
	assert.False(t, surface.present(old.ID(), image.NewRGBA(image.Rect(0, 0, 40, 30))))
	w, h := surface.NaturalSize()
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
}

func TestSurface_UnbindKeepsLastFrame(t *testing.T) {
	acquirer := camera.NewFakeAcquirer(200)
	surface := NewSurface(SurfaceOptions{})
	defer surface.Close()

	stream := acquireFake(t, acquirer, camera.FacingFront, 16, 16)
	surface.Bind(stream)
	require.Eventually(t, func() bool { return surface.FrameCount() > 0 }, 2*time.Second, 5*time.Millisecond)

	surface.Unbind()
	assert.Empty(t, surface.StreamID())
	_, ok := surface.Frame()
	assert.True(t, ok)
}

func TestSurface_SubscribeReceivesScaledJPEG(t *testing.T) {
	acquirer := camera.NewFakeAcquirer(200)
	surface := NewSurface(SurfaceOptions{MaxWidth: 30, JPEGQuality: 70})
	defer surface.Close()

	frames, unsubscribe := surface.Subscribe()
	defer unsubscribe()

	stream := acquireFake(t, acquirer, camera.FacingFront, 60, 40)
	surface.Bind(stream)

	select {
	case data := <-frames:
		img, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 30, img.Bounds().Dx())
		assert.Equal(t, 20, img.Bounds().Dy())
	case <-time.After(2 * time.Second):
		t.Fatal("プレビューが届きません")
	}

	// 撮影用のフレームは縮小されない
	frame, ok := surface.Frame()
	require.True(t, ok)
	assert.Equal(t, 60, frame.Bounds().Dx())
}

func TestSurface_CloseEndsSubscribers(t *testing.T) {
	surface := NewSurface(SurfaceOptions{})

	frames, unsubscribe := surface.Subscribe()
	surface.Close()

	_, ok := <-frames
	assert.False(t, ok)
	unsubscribe()

	late, _ := surface.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestFitToWidth(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		maxWidth int
		wantW    int
		wantH    int
	}{
		{name: "縮小", w: 640, h: 480, maxWidth: 300, wantW: 300, wantH: 225},
		{name: "収まる", w: 200, h: 100, maxWidth: 300, wantW: 200, wantH: 100},
		{name: "制限なし", w: 640, h: 480, maxWidth: 0, wantW: 640, wantH: 480},
		{name: "極端に横長", w: 1000, h: 1, maxWidth: 10, wantW: 10, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fitToWidth(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.maxWidth)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}
