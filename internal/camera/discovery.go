package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	videoDevicePattern = regexp.MustCompile(`^/dev/video\d+$`)
	deviceNumberRegexp = regexp.MustCompile(`video(\d+)`)

	frontLabelHints = []string{"front", "user", "facetime", "integrated", "内蔵", "イン"}
	backLabelHints  = []string{"back", "rear", "environment", "external", "usb", "アウト"}
)

// DeviceMap は向きごとのデバイス指定（設定ファイル由来）
type DeviceMap struct {
	Front string
	Back  string
}

// For は向きに対応するデバイスを返す。未指定なら空文字
func (m DeviceMap) For(f Facing) string {
	if f == FacingBack {
		return m.Back
	}
	return m.Front
}

// SelectDevice はデバイス一覧から向きに合うものを選ぶ
// ラベルに手がかりがあればそれを優先し、なければ先頭を前面、末尾を背面とみなす
func SelectDevice(devices []DeviceInfo, facing Facing) (DeviceInfo, error) {
	if len(devices) == 0 {
		return DeviceInfo{}, ErrNoDevice
	}

	hints := frontLabelHints
	if facing == FacingBack {
		hints = backLabelHints
	}
	for _, d := range devices {
		name := strings.ToLower(d.Name)
		for _, h := range hints {
			if strings.Contains(name, h) {
				return d, nil
			}
		}
	}

	if facing == FacingBack {
		return devices[len(devices)-1], nil
	}
	return devices[0], nil
}

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct{}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() Discovery {
	return &LinuxDiscovery{}
}

// ScanDevices は /dev/video* を番号順にスキャンし、カラー映像を出せるものを返す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if d.IsDeviceAvailable(ctx, match) && d.isColorCapture(ctx, match) {
			devices = append(devices, match)
		}
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	return &DeviceInfo{
		Device:  device,
		Name:    d.deviceName(ctx, device),
		Driver:  "v4l2",
		Formats: []string{"MJPEG", "YUYV"},
	}, nil
}

// deviceName は v4l2-ctl の Card type を名前として返す
func (d *LinuxDiscovery) deviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err == nil {
		if name := parseCardType(string(output)); name != "" {
			return name
		}
	}

	return fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
}

// isColorCapture はメタデータ用ノードやグレースケール専用デバイスを除外する
func (d *LinuxDiscovery) isColorCapture(ctx context.Context, device string) bool {
	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext").Output()
	if err != nil {
		return false
	}
	return hasColorFormat(string(output))
}

// parseCardType は v4l2-ctl --info の出力から Card type を抜き出す
func parseCardType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

func hasColorFormat(formats string) bool {
	return strings.Contains(formats, "YUYV") || strings.Contains(formats, "MJPG")
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := deviceNumberRegexp.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}

// resolveDevice は設定のデバイス指定を優先し、なければ検出結果から選ぶ
func resolveDevice(ctx context.Context, discovery Discovery, devices DeviceMap, facing Facing) (string, error) {
	if dev := devices.For(facing); dev != "" {
		return dev, nil
	}
	if discovery == nil {
		return "", ErrNoDevice
	}

	paths, err := discovery.ScanDevices(ctx)
	if err != nil {
		return "", err
	}

	infos := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		info, err := discovery.GetDeviceInfo(ctx, p)
		if err != nil {
			continue
		}
		infos = append(infos, *info)
	}

	selected, err := SelectDevice(infos, facing)
	if err != nil {
		return "", err
	}
	return selected.Device, nil
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices     []string
	deviceInfos map[string]*DeviceInfo
}

// NewMockDiscovery は名前付きのモックデバイス一覧から MockDiscovery を作成する
func NewMockDiscovery(devices map[string]string) *MockDiscovery {
	m := &MockDiscovery{deviceInfos: make(map[string]*DeviceInfo)}
	for device := range devices {
		m.devices = append(m.devices, device)
	}
	sort.Slice(m.devices, func(i, j int) bool {
		return extractDeviceNumber(m.devices[i]) < extractDeviceNumber(m.devices[j])
	})
	for device, name := range devices {
		m.deviceInfos[device] = &DeviceInfo{Device: device, Name: name, Driver: "mock"}
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return m.devices, nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	_, ok := m.deviceInfos[device]
	return ok
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}
	result := *info
	return &result, nil
}
