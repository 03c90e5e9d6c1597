package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBinder は Bind されたストリームを記録する
type recordingBinder struct {
	mu      sync.Mutex
	streams []Stream
}

func (b *recordingBinder) Bind(s Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams = append(b.streams, s)
}

func (b *recordingBinder) bound() []Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Stream(nil), b.streams...)
}

func newTestManager(t *testing.T) (*StreamManager, *FakeAcquirer, *recordingBinder) {
	t.Helper()
	acquirer := NewFakeAcquirer(120)
	binder := &recordingBinder{}
	manager := NewStreamManager(acquirer, binder, ManagerOptions{
		Backend:     BackendFake,
		IdealWidth:  64,
		IdealHeight: 48,
	})
	return manager, acquirer, binder
}

func TestStreamManager_AcquireBindsStream(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, binder := newTestManager(t)

	require.NoError(t, manager.Acquire(ctx, FacingFront))

	active := manager.Active()
	require.NotNil(t, active)
	assert.Equal(t, FacingFront, active.Facing())
	assert.Equal(t, 1, LiveTracks(active))
	assert.Equal(t, []Stream{active}, binder.bound())

	fs := acquirer.Streams()[0]
	w, h := fs.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestStreamManager_ReacquireStopsPrevious(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, _ := newTestManager(t)

	require.NoError(t, manager.Acquire(ctx, FacingFront))
	front := manager.Active()

	require.NoError(t, manager.Acquire(ctx, FacingBack))
	back := manager.Active()

	assert.NotEqual(t, front.ID(), back.ID())
	assert.Equal(t, 0, LiveTracks(front), "前面カメラのトラックが停止されていません")
	assert.Equal(t, 1, LiveTracks(back))
	assert.Equal(t, 1, acquirer.LiveTrackCount())
}

func TestStreamManager_FailureKeepsBinding(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, binder := newTestManager(t)

	require.NoError(t, manager.Acquire(ctx, FacingFront))

	acquirer.SetFailure(ErrPermissionDenied)
	err := manager.Acquire(ctx, FacingBack)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAcquire))
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	var aerr *AcquireError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, FacingBack, aerr.Facing)

	// 旧ストリームは停止済みで、表示先への Bind は増えない
	assert.Nil(t, manager.Active())
	assert.Len(t, binder.bound(), 1)
	assert.Equal(t, 0, acquirer.LiveTrackCount())

	stats := manager.Stats()
	assert.Equal(t, 1, stats.Acquisitions)
	assert.Equal(t, 1, stats.Releases)
	assert.Equal(t, 1, stats.Failures)
}

func TestStreamManager_StoppedSetsMatchAcquisitions(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, _ := newTestManager(t)

	// 成功と失敗が混ざった切り替え列
	sequence := []bool{true, true, false, true, false, false, true, true}
	facing := FacingFront
	for _, ok := range sequence {
		if ok {
			acquirer.SetFailure(nil)
		} else {
			acquirer.SetFailure(ErrDeviceBusy)
		}
		_ = manager.Acquire(ctx, facing)
		facing = facing.Opposite()

		stopped := 0
		for _, s := range acquirer.Streams() {
			if LiveTracks(s) == 0 {
				stopped++
			}
		}
		stats := manager.Stats()
		expected := stats.Acquisitions
		if manager.Active() != nil {
			expected--
		}
		assert.Equal(t, expected, stopped)
		assert.Equal(t, stats.Releases, stopped)
		assert.LessOrEqual(t, acquirer.LiveTrackCount(), 1)
	}
}

func TestStreamManager_Release(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, _ := newTestManager(t)

	require.NoError(t, manager.Acquire(ctx, FacingFront))
	manager.Release()
	manager.Release() // 2回目は何もしない

	assert.Nil(t, manager.Active())
	assert.Equal(t, 0, acquirer.LiveTrackCount())
	assert.Equal(t, 1, manager.Stats().Releases)
}

func TestStreamManager_ConcurrentAcquireKeepsSingleStream(t *testing.T) {
	ctx := context.Background()
	manager, acquirer, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			facing := FacingFront
			if i%2 == 1 {
				facing = FacingBack
			}
			_ = manager.Acquire(ctx, facing)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, acquirer.LiveTrackCount())
	assert.Len(t, acquirer.Streams(), 16)
}

func TestStreamManager_CanceledContext(t *testing.T) {
	manager, acquirer, _ := newTestManager(t)
	acquirer.SetDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := manager.Acquire(ctx, FacingFront)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAcquire))
	assert.True(t, errors.Is(err, context.Canceled))
}
