package camera

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextJPEGFrame(t *testing.T) {
	frame1 := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	frame2 := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}

	t.Run("先頭のゴミを捨てて1枚切り出す", func(t *testing.T) {
		data := append([]byte{0x00, 0x11}, frame1...)
		data = append(data, frame2[:3]...)

		frame, rest, ok := nextJPEGFrame(data)
		assert.True(t, ok)
		assert.Equal(t, frame1, frame)
		assert.Equal(t, frame2[:3], rest)

		_, rest, ok = nextJPEGFrame(rest)
		assert.False(t, ok)
		assert.Equal(t, frame2[:3], rest)
	})

	t.Run("連続した2枚", func(t *testing.T) {
		data := append(append([]byte{}, frame1...), frame2...)

		frame, rest, ok := nextJPEGFrame(data)
		assert.True(t, ok)
		assert.Equal(t, frame1, frame)

		frame, rest, ok = nextJPEGFrame(rest)
		assert.True(t, ok)
		assert.Equal(t, frame2, frame)
		assert.Empty(t, rest)
	})

	t.Run("SOIなし", func(t *testing.T) {
		_, rest, ok := nextJPEGFrame([]byte{0x01, 0x02})
		assert.False(t, ok)
		assert.Empty(t, rest)
	})

	t.Run("末尾の0xFFは残す", func(t *testing.T) {
		_, rest, ok := nextJPEGFrame([]byte{0x01, 0xFF})
		assert.False(t, ok)
		assert.Equal(t, []byte{0xFF}, rest)
	})

	t.Run("切り出したフレームは入力と独立", func(t *testing.T) {
		data := append([]byte{}, frame1...)
		frame, _, _ := nextJPEGFrame(data)
		data[2] = 0x7F
		assert.True(t, bytes.Equal(frame1, frame))
	})
}

func TestClassifyFFmpegError(t *testing.T) {
	base := errors.New("exit status 1")

	testCases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"権限なし", "/dev/video0: Permission denied", ErrPermissionDenied},
		{"使用中", "ioctl(VIDIOC_STREAMON): Device or resource busy", ErrDeviceBusy},
		{"デバイスなし", "/dev/video7: No such file or directory", ErrNoDevice},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(classifyFFmpegError(base, tc.stderr), tc.want))
		})
	}

	err := classifyFFmpegError(base, "unknown")
	assert.True(t, errors.Is(err, base))
}

func TestV4L2Capturer_InputArgs(t *testing.T) {
	c := NewV4L2Capturer("/dev/video0", 640, 480, 15)
	args := c.inputArgs()
	assert.Contains(t, args, "640x480")
	assert.Contains(t, args, "15")
	assert.Equal(t, "/dev/video0", args[len(args)-1])

	bare := NewV4L2Capturer("/dev/video1", 0, 0, 0).inputArgs()
	assert.NotContains(t, bare, "-video_size")
	assert.NotContains(t, bare, "-framerate")
}
