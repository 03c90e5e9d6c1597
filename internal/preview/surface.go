package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"satsuei/internal/camera"
	"satsuei/internal/logger"
)

// SurfaceOptions は映像面の表示設定
type SurfaceOptions struct {
	MaxWidth    int // プレビューの最大幅。0 なら縮小しない
	JPEGQuality int // プレビューJPEGの品質
}

// Surface はバインドされたストリームを連続再生する映像面
// 取り込んだフレームは撮影用にそのまま保持し、配信用には枠に収まるよう縮小する
type Surface struct {
	opts SurfaceOptions
	log  *zerolog.Logger

	mu        sync.RWMutex
	streamID  string
	frame     image.Image
	width     int
	height    int
	lastFrame time.Time
	frames    uint64
	cancel    context.CancelFunc

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
	closed    bool
}

// NewSurface は新しいSurfaceを作成する
func NewSurface(opts SurfaceOptions) *Surface {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}
	return &Surface{
		opts:    opts,
		log:     logger.WithComponent("preview"),
		clients: make(map[chan []byte]struct{}),
	}
}

// Bind はストリームを映像面に結び付けて再生を始める
// 以前のストリームの再生は打ち切り、そのフレームは以後反映されない
func (s *Surface) Bind(stream camera.Stream) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	prev := s.cancel
	s.streamID = stream.ID()
	s.cancel = cancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	go s.play(ctx, stream)
}

// Unbind は再生を止める。最後のフレームは残る
func (s *Surface) Unbind() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.streamID = ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// play はストリームからフレームを読み続ける
func (s *Surface) play(ctx context.Context, stream camera.Stream) {
	for {
		img, err := stream.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, camera.ErrTrackEnded) || ctx.Err() != nil {
				s.log.Debug().Str("stream", stream.ID()).Msg("再生を終了しました")
			} else {
				s.log.Warn().Err(err).Str("stream", stream.ID()).Msg("フレームの読み取りに失敗しました")
			}
			return
		}

		if !s.present(stream.ID(), img) {
			return
		}
	}
}

// present はフレームを現在の表示にする。バインドが外れていれば false
func (s *Surface) present(streamID string, img image.Image) bool {
	s.mu.Lock()
	if s.streamID != streamID {
		s.mu.Unlock()
		return false
	}
	b := img.Bounds()
	s.frame = img
	s.width, s.height = b.Dx(), b.Dy()
	s.lastFrame = time.Now()
	s.frames++
	s.mu.Unlock()

	s.broadcast(img)
	return true
}

// Frame は現在のフレームを返す。まだ1枚もなければ false
// フレームは差し替えられるだけで書き換えられないため、ロック外で読んでよい
func (s *Surface) Frame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

// NaturalSize は映像本来の幅と高さを返す
func (s *Surface) NaturalSize() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// StreamID はバインド中のストリームIDを返す
func (s *Surface) StreamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamID
}

// FrameCount は表示したフレーム数を返す
func (s *Surface) FrameCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Subscribe はプレビューJPEGを受け取るチャンネルと解除関数を返す
// 受信が遅いクライアントはフレームを取りこぼす
func (s *Surface) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 2)

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.clients[ch] = struct{}{}
	s.clientsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.clientsMu.Lock()
			defer s.clientsMu.Unlock()
			if _, ok := s.clients[ch]; ok {
				delete(s.clients, ch)
				close(ch)
			}
		})
	}
}

// Close は全クライアントの購読を終了させる
func (s *Surface) Close() {
	s.Unbind()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	s.closed = true
}

// broadcast は購読者がいる場合だけJPEGに変換して配る
func (s *Surface) broadcast(img image.Image) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if len(s.clients) == 0 {
		return
	}

	data, err := s.encodePreview(img)
	if err != nil {
		s.log.Warn().Err(err).Msg("プレビューのエンコードに失敗しました")
		return
	}

	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

func (s *Surface) encodePreview(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fitToWidth(img, s.opts.MaxWidth), &jpeg.Options{Quality: s.opts.JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitToWidth は縦横比を保って最大幅に収める。収まっていればそのまま返す
func fitToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
