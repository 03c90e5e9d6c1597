package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // カメラドライバーの登録
	"github.com/pion/mediadevices/pkg/prop"
	"golang.org/x/image/draw"

	"satsuei/internal/logger"
)

// MediaDevicesAcquirer は pion/mediadevices の GetUserMedia でストリームを取得する
type MediaDevicesAcquirer struct {
	devices DeviceMap
}

// NewMediaDevicesAcquirer は新しいMediaDevicesAcquirerを作成する
func NewMediaDevicesAcquirer(devices DeviceMap) *MediaDevicesAcquirer {
	return &MediaDevicesAcquirer{devices: devices}
}

// Acquire は向きに合うデバイスを選び GetUserMedia を呼ぶ
func (a *MediaDevicesAcquirer) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	deviceID := a.devices.For(c.Facing)
	if deviceID == "" {
		selected, err := SelectDevice(videoInputs(), c.Facing)
		if err != nil {
			return nil, asAcquireError(c.Facing, BackendMediaDevices, err)
		}
		deviceID = selected.Device
	}

	type result struct {
		stream mediadevices.MediaStream
		err    error
	}
	done := make(chan result, 1)

	// GetUserMedia は ctx を受け取らないため別ゴルーチンで待つ
	go func() {
		ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Video: func(mc *mediadevices.MediaTrackConstraints) {
				mc.DeviceID = prop.String(deviceID)
				if c.IdealWidth > 0 {
					mc.Width = prop.Int(c.IdealWidth)
				}
				if c.IdealHeight > 0 {
					mc.Height = prop.Int(c.IdealHeight)
				}
			},
		})
		done <- result{stream: ms, err: err}
	}()

	select {
	case <-ctx.Done():
		// 遅れて取得できたストリームは即座に解放する
		go func() {
			if r := <-done; r.err == nil {
				closeMediaStream(r.stream)
			}
		}()
		return nil, asAcquireError(c.Facing, BackendMediaDevices, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, asAcquireError(c.Facing, BackendMediaDevices, classifyMediaError(r.err))
		}
		return newMediaDevicesStream(r.stream, c.Facing, deviceID)
	}
}

// videoInputs は映像入力デバイスを DeviceInfo として列挙する
func videoInputs() []DeviceInfo {
	var infos []DeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		infos = append(infos, DeviceInfo{
			Device: d.DeviceID,
			Name:   d.Label,
			Driver: "mediadevices",
		})
	}
	return infos
}

// classifyMediaError はドライバーのエラー文言を既知の原因に寄せる
func classifyMediaError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "busy"):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	case strings.Contains(msg, "failed to find"), strings.Contains(msg, "not found"):
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	default:
		return err
	}
}

func closeMediaStream(ms mediadevices.MediaStream) {
	for _, t := range ms.GetTracks() {
		if err := t.Close(); err != nil {
			logger.WithComponent("camera").Warn().Err(err).Msg("トラックのクローズに失敗")
		}
	}
}

// mediaDevicesStream は mediadevices.MediaStream のラッパー
type mediaDevicesStream struct {
	id     string
	facing Facing
	device string
	tracks []Track
	video  *baseTrack

	readMu sync.Mutex
	read   func() (image.Image, func(), error)
}

func newMediaDevicesStream(ms mediadevices.MediaStream, facing Facing, device string) (*mediaDevicesStream, error) {
	videoTracks := ms.GetVideoTracks()
	if len(videoTracks) == 0 {
		closeMediaStream(ms)
		return nil, asAcquireError(facing, BackendMediaDevices, errors.New("映像トラックがありません"))
	}

	vt, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeMediaStream(ms)
		return nil, asAcquireError(facing, BackendMediaDevices, fmt.Errorf("想定外のトラック型: %T", videoTracks[0]))
	}

	s := &mediaDevicesStream{
		id:     uuid.New().String(),
		facing: facing,
		device: device,
	}

	for _, t := range ms.GetTracks() {
		t := t
		track := newVideoTrack(func() {
			if err := t.Close(); err != nil {
				logger.WithComponent("camera").Warn().Err(err).Msg("トラックのクローズに失敗")
			}
		})
		if t == mediadevices.Track(vt) {
			s.video = track
		}
		s.tracks = append(s.tracks, track)
	}

	reader := vt.NewReader(false)
	s.read = reader.Read
	return s, nil
}

func (s *mediaDevicesStream) ID() string { return s.id }
func (s *mediaDevicesStream) Facing() Facing { return s.facing }
func (s *mediaDevicesStream) Tracks() []Track { return s.tracks }

// ReadFrame はドライバーのバッファを複製して返す
func (s *mediaDevicesStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.video == nil || s.video.State() == TrackEnded {
		return nil, ErrTrackEnded
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	img, release, err := s.read()
	if err != nil {
		if errors.Is(err, io.EOF) || s.video.State() == TrackEnded {
			return nil, ErrTrackEnded
		}
		return nil, fmt.Errorf("フレーム読み取りエラー: %w", err)
	}
	defer release()

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, nil
}
