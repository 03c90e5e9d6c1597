package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeAcquirer はテストパターンを生成する疑似カメラ
// 実機のない環境での動作確認とテストに使う
type FakeAcquirer struct {
	fps int

	mu      sync.Mutex
	failure error
	delay   time.Duration
	streams []*FakeStream
}

// NewFakeAcquirer は新しいFakeAcquirerを作成する
func NewFakeAcquirer(fps int) *FakeAcquirer {
	if fps <= 0 {
		fps = 30
	}
	return &FakeAcquirer{fps: fps}
}

// SetFailure は以降の取得を指定エラーで失敗させる。nil で解除
func (a *FakeAcquirer) SetFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failure = err
}

// SetDelay は権限確認の待ち時間を模擬する
func (a *FakeAcquirer) SetDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

// Streams はこれまでに取得されたストリームを取得順に返す
func (a *FakeAcquirer) Streams() []*FakeStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*FakeStream, len(a.streams))
	copy(out, a.streams)
	return out
}

// LiveTrackCount は全ストリームの生存トラック数の合計を返す
func (a *FakeAcquirer) LiveTrackCount() int {
	n := 0
	for _, s := range a.Streams() {
		n += LiveTracks(s)
	}
	return n
}

// Acquire は要求サイズのテストパターンを出すストリームを返す
func (a *FakeAcquirer) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	a.mu.Lock()
	failure, delay := a.failure, a.delay
	a.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, asAcquireError(c.Facing, BackendFake, ctx.Err())
		}
	}
	if failure != nil {
		return nil, asAcquireError(c.Facing, BackendFake, failure)
	}

	width, height := c.IdealWidth, c.IdealHeight
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	fps := c.FPS
	if fps <= 0 {
		fps = a.fps
	}

	s := &FakeStream{
		id:       uuid.New().String(),
		facing:   c.Facing,
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		track:    newVideoTrack(nil),
	}

	a.mu.Lock()
	a.streams = append(a.streams, s)
	a.mu.Unlock()
	return s, nil
}

// FakeStream はテストパターンの映像ストリーム
type FakeStream struct {
	id       string
	facing   Facing
	width    int
	height   int
	interval time.Duration
	track    *baseTrack

	mu    sync.Mutex
	frame int
}

func (s *FakeStream) ID() string { return s.id }
func (s *FakeStream) Facing() Facing { return s.facing }
func (s *FakeStream) Tracks() []Track { return []Track{s.track} }

// Size は生成する画像のサイズを返す
func (s *FakeStream) Size() (int, int) { return s.width, s.height }

// ReadFrame はフレーム間隔だけ待って次のパターンを返す
func (s *FakeStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if s.track.State() == TrackEnded {
		return nil, ErrTrackEnded
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.track.Done():
		return nil, ErrTrackEnded
	case <-timer.C:
	}

	s.mu.Lock()
	n := s.frame
	s.frame++
	s.mu.Unlock()

	return testPattern(s.width, s.height, s.facing, n), nil
}

// testPattern は向きで色相の変わるグラデーションに、フレーム番号で動く縦帯を重ねる
func testPattern(width, height int, facing Facing, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	band := (n * 8) % width

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8(x * 255 / width)
			g := uint8(y * 255 / height)
			b := uint8(96)
			if facing == FacingBack {
				r, b = b, r
			}
			if x >= band && x < band+8 {
				r, g, b = 255, 255, 255
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}
