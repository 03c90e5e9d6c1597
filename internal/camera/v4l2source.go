package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/google/uuid"
)

// V4L2Acquirer は ffmpeg 経由で V4L2 デバイスからストリームを取得する
type V4L2Acquirer struct {
	discovery Discovery
	devices   DeviceMap
	fps       int
}

// NewV4L2Acquirer は新しいV4L2Acquirerを作成する
func NewV4L2Acquirer(discovery Discovery, devices DeviceMap, fps int) *V4L2Acquirer {
	return &V4L2Acquirer{
		discovery: discovery,
		devices:   devices,
		fps:       fps,
	}
}

// Acquire はテストキャプチャで使用可能か確認した上でストリーミングを開始する
func (a *V4L2Acquirer) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	device, err := resolveDevice(ctx, a.discovery, a.devices, c.Facing)
	if err != nil {
		return nil, asAcquireError(c.Facing, BackendV4L2, err)
	}

	fps := c.FPS
	if fps <= 0 {
		fps = a.fps
	}
	capturer := NewV4L2Capturer(device, c.IdealWidth, c.IdealHeight, fps)
	if err := capturer.TestCapture(ctx); err != nil {
		return nil, asAcquireError(c.Facing, BackendV4L2, err)
	}

	// ストリームは取得要求の ctx より長く生きる
	streamCtx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte, 2)
	errs := make(chan error, 1)
	done := capturer.StartStream(streamCtx, frames, errs)

	// 停止はデバイスを握る ffmpeg の終了まで待つ
	onStop := func() {
		cancel()
		<-done
	}

	return &v4l2Stream{
		id:     uuid.New().String(),
		facing: c.Facing,
		device: device,
		track:  newVideoTrack(onStop),
		frames: frames,
		errs:   errs,
	}, nil
}

// v4l2Stream は ffmpeg の MJPEG 出力を1本の映像トラックとして扱う
type v4l2Stream struct {
	id     string
	facing Facing
	device string
	track  *baseTrack
	frames <-chan []byte
	errs   <-chan error
}

func (s *v4l2Stream) ID() string { return s.id }
func (s *v4l2Stream) Facing() Facing { return s.facing }
func (s *v4l2Stream) Tracks() []Track { return []Track{s.track} }
func (s *v4l2Stream) Device() string { return s.device }

// ReadFrame は次の JPEG フレームをデコードして返す
func (s *v4l2Stream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.track.Done():
		return nil, ErrTrackEnded
	case err := <-s.errs:
		s.track.Stop()
		return nil, err
	case data, ok := <-s.frames:
		if !ok {
			// ffmpeg が自ら終了した
			s.track.Stop()
			return nil, ErrTrackEnded
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
		}
		return img, nil
	}
}
