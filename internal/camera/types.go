package camera

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Facing は要求するカメラの向きを表す
type Facing string

const (
	FacingFront Facing = "front" // ユーザー側（インカメラ）
	FacingBack  Facing = "back"  // 環境側（アウトカメラ）
)

// ParseFacing は文字列から Facing を得る
// MediaStream の facingMode 表記（user / environment）も受け付ける
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "user":
		return FacingFront, nil
	case "back", "environment", "rear":
		return FacingBack, nil
	default:
		return "", fmt.Errorf("無効なカメラの向き: %q", s)
	}
}

// Opposite は反対側の向きを返す
func (f Facing) Opposite() Facing {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// Valid は定義済みの値かどうかを返す
func (f Facing) Valid() bool {
	return f == FacingFront || f == FacingBack
}

// Mode は facingMode 表記を返す
func (f Facing) Mode() string {
	if f == FacingBack {
		return "environment"
	}
	return "user"
}

// TrackState はトラックの状態を表す
type TrackState string

const (
	TrackLive  TrackState = "live"  // 映像を供給中
	TrackEnded TrackState = "ended" // 停止済み
)

// Constraints はストリーム取得時の要求条件
// 幅と高さは希望値であり、バックエンドは最も近いモードを選んでよい
type Constraints struct {
	Facing      Facing
	IdealWidth  int
	IdealHeight int
	FPS         int
}

// Track はハードウェアのキャプチャトラック1本を表す
type Track interface {
	ID() string
	Kind() string
	State() TrackState

	// Stop はトラックを停止する。複数回呼んでも安全
	Stop()
}

// Stream は取得済みのメディアストリームを表す
type Stream interface {
	ID() string
	Facing() Facing
	Tracks() []Track

	// ReadFrame は次のフレームを返す。返された画像の所有権は呼び出し側に移る
	// トラック停止後は ErrTrackEnded を返す
	ReadFrame(ctx context.Context) (image.Image, error)
}

// Acquirer はカメラストリームの取得を担うインターフェース
type Acquirer interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Binder は取得したストリームの表示先
type Binder interface {
	Bind(stream Stream)
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       // デバイスパスまたはドライバーID
	Name        string       // デバイス名
	Driver      string       // ドライバー名
	Resolutions []Resolution // サポートされる解像度
	Formats     []string     // サポートされるフォーマット
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int
	Height int
}

// StopTracks はストリームの全トラックを停止する
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// LiveTracks は停止されていないトラック数を返す
func LiveTracks(s Stream) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.Tracks() {
		if t.State() == TrackLive {
			n++
		}
	}
	return n
}
