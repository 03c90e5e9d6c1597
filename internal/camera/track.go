package camera

import (
	"sync"

	"github.com/google/uuid"
)

// baseTrack は各バックエンド共通のトラック実装
type baseTrack struct {
	id     string
	kind   string
	onStop func()

	mu      sync.Mutex
	state   TrackState
	stopped chan struct{}
}

// newVideoTrack は映像トラックを作成する
// onStop は最初の Stop でのみ呼ばれる
func newVideoTrack(onStop func()) *baseTrack {
	return &baseTrack{
		id:      uuid.New().String(),
		kind:    "video",
		onStop:  onStop,
		state:   TrackLive,
		stopped: make(chan struct{}),
	}
}

func (t *baseTrack) ID() string { return t.id }
func (t *baseTrack) Kind() string { return t.kind }

func (t *baseTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *baseTrack) Stop() {
	t.mu.Lock()
	if t.state == TrackEnded {
		t.mu.Unlock()
		return
	}
	t.state = TrackEnded
	close(t.stopped)
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Done はトラック停止時にクローズされるチャンネルを返す
func (t *baseTrack) Done() <-chan struct{} {
	return t.stopped
}
