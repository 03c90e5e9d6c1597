package preview

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"satsuei/internal/camera"
	"satsuei/internal/logger"
)

// State はセッションの状態
type State string

const (
	StateUninitialized State = "uninitialized" // 未マウント
	StateStreaming     State = "streaming"     // マウント中
	StateStopped       State = "stopped"       // アンマウント済み
)

// ErrAlreadyMounted は2回目の Mount で返される
var ErrAlreadyMounted = errors.New("セッションは既にマウントされています")

// Options はセッションの設定
type Options struct {
	Backend         string
	InitialFacing   camera.Facing
	IdealWidth      int
	IdealHeight     int
	FPS             int
	PreviewMaxWidth int
	JPEGQuality     int
}

// Status はセッションの現在の状態
type Status struct {
	State        State         `json:"state"`
	Facing       camera.Facing `json:"facing"`
	Active       bool          `json:"active"`
	StreamID     string        `json:"stream_id,omitempty"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Frames       uint64        `json:"frames"`
	PhotoVisible bool          `json:"photo_visible"`
	Stats        camera.Stats  `json:"stats"`
}

// Session はカメラプレビュー画面1つ分
// 向きフラグ・アクティブなストリーム・映像面・撮影画像をまとめて持つ
type Session struct {
	toggle  *Toggle
	manager *camera.StreamManager
	surface *Surface
	canvas  *Canvas
	photo   *Photo
	events  *EventHub
	log     *zerolog.Logger

	// mu はストリームの取得と状態遷移を直列化する
	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// NewSession は新しいSessionを作成する
func NewSession(acquirer camera.Acquirer, opts Options) *Session {
	surface := NewSurface(SurfaceOptions{
		MaxWidth:    opts.PreviewMaxWidth,
		JPEGQuality: opts.JPEGQuality,
	})

	s := &Session{
		toggle:  NewToggle(opts.InitialFacing),
		surface: surface,
		canvas:  NewCanvas(),
		photo:   NewPhoto(),
		events:  NewEventHub(),
		log:     logger.WithComponent("preview"),
		state:   StateUninitialized,
	}
	s.manager = camera.NewStreamManager(acquirer, surface, camera.ManagerOptions{
		Backend:     opts.Backend,
		IdealWidth:  opts.IdealWidth,
		IdealHeight: opts.IdealHeight,
		FPS:         opts.FPS,
	})
	s.toggle.OnChange(s.onFacingChange)
	return s
}

// Mount は現在の向きでストリームを取得して映像面に結び付ける
// 取得に失敗してもセッションはマウント状態になり、エラーを返す
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUninitialized {
		return ErrAlreadyMounted
	}
	s.setState(StateStreaming)
	s.events.Publish(Event{Type: EventMounted, Facing: s.toggle.Facing()})

	return s.syncStreamLocked(ctx)
}

// Toggle は向きを反転させる。再取得は向きの変化を受けた側で行われる
func (s *Session) Toggle(ctx context.Context) camera.Facing {
	return s.toggle.Flip(ctx)
}

// Capture は現在のフレームを撮影して写真を差し替える
// マウント中でない、またはフレームがない場合は何もしない
func (s *Session) Capture() (PhotoState, bool) {
	if s.State() != StateStreaming {
		return s.photo.State(), false
	}

	ok := Capture(s.surface, s.canvas, s.photo)
	state := s.photo.State()
	if ok {
		s.events.Publish(Event{Type: EventPhotoCaptured, PhotoID: state.ID})
	}
	return state, ok
}

// Unmount はアクティブなストリームを停止し、映像面と通知を閉じる
func (s *Session) Unmount(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return
	}

	if prev := s.manager.Active(); prev != nil {
		s.manager.Release()
		s.events.Publish(Event{Type: EventStreamReleased, StreamID: prev.ID(), Facing: prev.Facing()})
	}
	s.surface.Close()
	s.setState(StateStopped)

	s.events.Publish(Event{Type: EventUnmounted})
	s.events.Close()
	s.log.Info().Msg("セッションを終了しました")
}

// onFacingChange は向きの変化を受けてストリームを取り直す
func (s *Session) onFacingChange(ctx context.Context, facing camera.Facing) {
	s.events.Publish(Event{Type: EventFacingChanged, Facing: facing})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateStreaming {
		return
	}
	// 失敗は StreamManager がログに残す
	_ = s.syncStreamLocked(ctx)
}

// syncStreamLocked はフラグの向きでストリームを取り直す（mu 取得済み前提）
// 向きはロック内で読むため、連続した切り替えでも最後の取得はフラグと一致する
func (s *Session) syncStreamLocked(ctx context.Context) error {
	facing := s.toggle.Facing()
	prev := s.manager.Active()

	err := s.manager.Acquire(ctx, facing)
	if prev != nil {
		s.events.Publish(Event{Type: EventStreamReleased, StreamID: prev.ID(), Facing: prev.Facing()})
	}
	if err != nil {
		return err
	}

	if active := s.manager.Active(); active != nil {
		s.events.Publish(Event{Type: EventStreamBound, StreamID: active.ID(), Facing: active.Facing()})
	}
	return nil
}

// State は現在の状態を返す
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

// Facing は現在の向きフラグを返す
func (s *Session) Facing() camera.Facing {
	return s.toggle.Facing()
}

// Status は状態のスナップショットを返す
func (s *Session) Status() Status {
	width, height := s.surface.NaturalSize()
	status := Status{
		State:        s.State(),
		Facing:       s.toggle.Facing(),
		Width:        width,
		Height:       height,
		Frames:       s.surface.FrameCount(),
		PhotoVisible: s.photo.State().Visible,
		Stats:        s.manager.Stats(),
	}
	if active := s.manager.Active(); active != nil {
		status.Active = true
		status.StreamID = active.ID()
	}
	return status
}

// Photo は写真表示要素の状態を返す
func (s *Session) Photo() PhotoState {
	return s.photo.State()
}

// Surface は映像面を返す
func (s *Session) Surface() *Surface {
	return s.surface
}

// Events はイベントの配信元を返す
func (s *Session) Events() *EventHub {
	return s.events
}
