package camera

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"satsuei/internal/logger"
)

// ManagerOptions はストリーム取得時の既定値
type ManagerOptions struct {
	Backend     string // ログ出力用のバックエンド名
	IdealWidth  int
	IdealHeight int
	FPS         int
}

// Stats はストリームの取得・解放回数
type Stats struct {
	Acquisitions int `json:"acquisitions"`
	Releases     int `json:"releases"`
	Failures     int `json:"failures"`
}

// StreamManager はアクティブなストリームを高々1本に保つ
// 新しい取得の前に必ず旧ストリームの全トラックを停止する
type StreamManager struct {
	acquirer Acquirer
	binder   Binder
	opts     ManagerOptions
	log      *zerolog.Logger

	mu     sync.Mutex
	active Stream
	stats  Stats
}

// NewStreamManager は新しいStreamManagerを作成する
// binder は取得成功時にストリームを受け取る表示先で、nil でもよい
func NewStreamManager(acquirer Acquirer, binder Binder, opts ManagerOptions) *StreamManager {
	return &StreamManager{
		acquirer: acquirer,
		binder:   binder,
		opts:     opts,
		log:      logger.WithComponent("camera"),
	}
}

// Acquire は旧ストリームを停止してから指定の向きでストリームを取得する
// 失敗時はログに記録して *AcquireError を返し、表示先の状態は変えない
func (m *StreamManager) Acquire(ctx context.Context, facing Facing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()

	stream, err := m.acquirer.Acquire(ctx, Constraints{
		Facing:      facing,
		IdealWidth:  m.opts.IdealWidth,
		IdealHeight: m.opts.IdealHeight,
		FPS:         m.opts.FPS,
	})
	if err != nil {
		aerr := asAcquireError(facing, m.opts.Backend, err)
		m.stats.Failures++
		m.log.Error().Err(aerr).Str("facing", string(facing)).Msg("カメラへのアクセスに失敗しました")
		return aerr
	}

	if m.binder != nil {
		m.binder.Bind(stream)
	}
	m.active = stream
	m.stats.Acquisitions++

	m.log.Info().
		Str("stream", stream.ID()).
		Str("facing", string(facing)).
		Int("tracks", len(stream.Tracks())).
		Msg("カメラストリームを取得しました")
	return nil
}

// Release はアクティブなストリームの全トラックを停止する
func (m *StreamManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

// releaseLocked は停止処理の本体（ロック済み前提）
func (m *StreamManager) releaseLocked() {
	if m.active == nil {
		return
	}

	StopTracks(m.active)
	m.stats.Releases++
	m.log.Info().Str("stream", m.active.ID()).Msg("カメラストリームを停止しました")
	m.active = nil
}

// Active は現在のストリームを返す。なければ nil
func (m *StreamManager) Active() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Stats は取得・解放の累計を返す
func (m *StreamManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
