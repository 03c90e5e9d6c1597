package preview

import (
	"context"
	"sync"

	"satsuei/internal/camera"
)

// FacingObserver はカメラの向きの変化を受け取る
type FacingObserver func(ctx context.Context, facing camera.Facing)

// Toggle はカメラの向きフラグを保持する切り替えボタン
// ストリームには触れず、状態の変化を登録先へ知らせるだけ
type Toggle struct {
	mu        sync.RWMutex
	facing    camera.Facing
	observers []FacingObserver
}

// NewToggle は初期の向きでToggleを作成する
func NewToggle(initial camera.Facing) *Toggle {
	if !initial.Valid() {
		initial = camera.FacingFront
	}
	return &Toggle{facing: initial}
}

// Facing は現在の向きを返す
func (t *Toggle) Facing() camera.Facing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.facing
}

// OnChange は向きが変わったときに呼ばれる関数を登録する
func (t *Toggle) OnChange(fn FacingObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Flip は向きを反転させて登録先に通知し、新しい向きを返す
func (t *Toggle) Flip(ctx context.Context) camera.Facing {
	t.mu.Lock()
	t.facing = t.facing.Opposite()
	facing := t.facing
	observers := append([]FacingObserver(nil), t.observers...)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(ctx, facing)
	}
	return facing
}
