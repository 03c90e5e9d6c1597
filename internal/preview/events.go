package preview

import (
	"sync"
	"time"

	"satsuei/internal/camera"
)

// EventType はセッションイベントの種類
type EventType string

const (
	EventMounted        EventType = "mounted"
	EventFacingChanged  EventType = "facing_changed"
	EventStreamBound    EventType = "stream_bound"
	EventStreamReleased EventType = "stream_released"
	EventPhotoCaptured  EventType = "photo_captured"
	EventUnmounted      EventType = "unmounted"
)

// Event はクライアントへ通知するセッションの変化
type Event struct {
	Type     EventType     `json:"type"`
	Facing   camera.Facing `json:"facing,omitempty"`
	StreamID string        `json:"stream_id,omitempty"`
	PhotoID  string        `json:"photo_id,omitempty"`
	Time     time.Time     `json:"time"`
}

// EventHub はイベントを複数の購読者に配る
type EventHub struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	closed  bool
}

// NewEventHub は新しいEventHubを作成する
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[chan Event]struct{})}
}

// Subscribe はイベントを受け取るチャンネルと解除関数を返す
// 解除関数は切断時に必ず呼ぶこと
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
}

// Close は全購読者のチャンネルを閉じ、以後の購読を受け付けない
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan Event]struct{})
	h.closed = true
}

// Publish はイベントを配る。受信が詰まっている購読者には送らない
func (h *EventHub) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}
