package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.org/x/image/draw"

	"satsuei/internal/logger"
)

// DataURIPrefix は撮影画像のデータURIの接頭辞
const DataURIPrefix = "data:image/png;base64,"

// Canvas は撮影用のオフスクリーンビットマップ
// サイズが変わらない限りバッファを使い回す
type Canvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewCanvas は空のCanvasを作成する
func NewCanvas() *Canvas {
	return &Canvas{}
}

// resize はバッファを指定サイズにする（ロック済み前提）
func (c *Canvas) resize(width, height int) *image.RGBA {
	if c.img == nil || c.img.Bounds().Dx() != width || c.img.Bounds().Dy() != height {
		c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return c.img
}

// Size は現在のバッファサイズを返す
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return 0, 0
	}
	return c.img.Bounds().Dx(), c.img.Bounds().Dy()
}

// DrawFrame はフレームを原点に等倍で描き、PNGのデータURIを返す
func (c *Canvas) DrawFrame(frame image.Image) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := frame.Bounds()
	dst := c.resize(b.Dx(), b.Dy())
	draw.Copy(dst, image.Point{}, frame, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("PNGエンコードに失敗: %w", err)
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Capture は映像面の現在のフレームを写真として表示する
// 参照が欠けている、またはフレームがまだない場合は何もせず false を返す
func Capture(surface *Surface, canvas *Canvas, photo *Photo) bool {
	if surface == nil || canvas == nil || photo == nil {
		return false
	}

	width, height := surface.NaturalSize()
	if width == 0 || height == 0 {
		return false
	}
	frame, ok := surface.Frame()
	if !ok {
		return false
	}

	src, err := canvas.DrawFrame(frame)
	if err != nil {
		logger.WithComponent("preview").Warn().Err(err).Msg("撮影画像の生成に失敗しました")
		return false
	}

	photo.Show(src)
	return true
}
