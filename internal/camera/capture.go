package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"satsuei/internal/logger"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// V4L2Capturer は ffmpeg を使って V4L2 デバイスから画像を取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
	}
}

// inputArgs は ffmpeg の入力側引数
// -video_size は希望値で、ドライバーが近いモードに変更することがある
func (c *V4L2Capturer) inputArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if c.width > 0 && c.height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.width, c.height))
	}
	if c.fps > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.fps))
	}
	return append(args, "-i", c.devicePath)
}

// CaptureFrame は1フレームをキャプチャして画像として返す
func (c *V4L2Capturer) CaptureFrame(ctx context.Context) (image.Image, error) {
	args := append(c.inputArgs(), "-vframes", "1", "-f", "image2", "-c:v", "mjpeg", "-")
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyFFmpegError(err, stderr.String())
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}
	return img, nil
}

// TestCapture はデバイスが実際に映像を出せるか確認する
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureFrame(testCtx)
	return err
}

// StartStream は連続キャプチャを開始する
// ctx がキャンセルされると ffmpeg は終了し、frameChan はクローズされる
// 返すチャネルは ffmpeg プロセスの回収後にクローズされる
func (c *V4L2Capturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) <-chan struct{} {
	log := logger.WithComponent("camera")
	done := make(chan struct{})
	fail := func(err error) <-chan struct{} {
		sendError(errorChan, err)
		close(frameChan)
		close(done)
		return done
	}

	args := append(c.inputArgs(), "-f", "image2pipe", "-c:v", "mjpeg", "-q:v", "3", "-")
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("stdoutパイプの作成に失敗: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(fmt.Errorf("stderrパイプの作成に失敗: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("ffmpegの起動に失敗: %w", err))
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug().Str("device", c.devicePath).Msg(scanner.Text())
		}
	}()

	go func() {
		defer close(done)
		defer close(frameChan)
		defer func() {
			_ = cmd.Wait() // キャンセル時のエラーは無視
		}()

		reader := bufio.NewReaderSize(stdout, 1024*1024)
		buf := make([]byte, 64*1024)
		var pending []byte

		for {
			n, err := reader.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				for {
					frame, rest, ok := nextJPEGFrame(pending)
					if !ok {
						pending = rest
						break
					}
					pending = rest

					select {
					case frameChan <- frame:
					case <-ctx.Done():
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					sendError(errorChan, fmt.Errorf("フレーム読み取りエラー: %w", err))
				}
				return
			}
		}
	}()

	return done
}

// nextJPEGFrame はバッファ先頭の完全なJPEGフレームを切り出す
// 完全なフレームがない場合は ok=false で、SOI より前の不要データを除いた残りを返す
func nextJPEGFrame(data []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		// 末尾の 0xFF は次の SOI の前半かもしれない
		if len(data) > 0 && data[len(data)-1] == 0xFF {
			return nil, data[len(data)-1:], false
		}
		return nil, nil, false
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		return nil, data[start:], false
	}
	end += start + 2 + len(jpegEOI)

	frame = make([]byte, end-start)
	copy(frame, data[start:end])

	remaining := data[end:]
	rest = make([]byte, len(remaining))
	copy(rest, remaining)
	return frame, rest, true
}

// classifyFFmpegError は ffmpeg の stderr からエラーの原因を推定する
func classifyFFmpegError(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "device or resource busy"):
		return fmt.Errorf("%w: %s", ErrDeviceBusy, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such file or directory"):
		return fmt.Errorf("%w: %s", ErrNoDevice, strings.TrimSpace(stderr))
	default:
		return fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, strings.TrimSpace(stderr))
	}
}

func sendError(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
