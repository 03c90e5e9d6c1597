package preview

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PhotoState は写真表示要素の状態
type PhotoState struct {
	ID         string    `json:"id,omitempty"`
	Src        string    `json:"src"`
	Visible    bool      `json:"visible"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// Photo は撮影画像を表示する要素。常に最新の1枚だけを持つ
type Photo struct {
	mu    sync.RWMutex
	state PhotoState
}

// NewPhoto は非表示のPhotoを作成する
func NewPhoto() *Photo {
	return &Photo{}
}

// Show は画像を差し替えて表示状態にする
func (p *Photo) Show(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PhotoState{
		ID:         uuid.New().String(),
		Src:        src,
		Visible:    true,
		CapturedAt: time.Now(),
	}
}

// State は現在の状態を返す
func (p *Photo) State() PhotoState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}
