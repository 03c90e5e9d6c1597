package camera

import (
	"fmt"
	"sort"
)

const (
	// BackendMediaDevices は pion/mediadevices を使うバックエンド
	BackendMediaDevices = "mediadevices"
	// BackendV4L2 は ffmpeg 経由で V4L2 デバイスを読むバックエンド
	BackendV4L2 = "v4l2"
	// BackendFake はテストパターンを出す疑似バックエンド
	BackendFake = "fake"
)

// BackendConfig はバックエンド作成設定
type BackendConfig struct {
	Devices DeviceMap // 向きごとのデバイス指定
	FPS     int       // フレームレート
}

// AcquirerCreator は Acquirer 作成関数の型
type AcquirerCreator func(config BackendConfig) (Acquirer, error)

// AcquirerFactory はバックエンド名から Acquirer を作成する
type AcquirerFactory struct {
	creators map[string]AcquirerCreator
}

// NewAcquirerFactory は標準のバックエンドを登録したファクトリーを作成する
func NewAcquirerFactory() *AcquirerFactory {
	factory := &AcquirerFactory{
		creators: make(map[string]AcquirerCreator),
	}

	factory.Register(BackendMediaDevices, func(config BackendConfig) (Acquirer, error) {
		return NewMediaDevicesAcquirer(config.Devices), nil
	})
	factory.Register(BackendV4L2, func(config BackendConfig) (Acquirer, error) {
		return NewV4L2Acquirer(NewLinuxDiscovery(), config.Devices, config.FPS), nil
	})
	factory.Register(BackendFake, func(config BackendConfig) (Acquirer, error) {
		return NewFakeAcquirer(config.FPS), nil
	})

	return factory
}

// Register は作成関数を登録する。同名の登録は上書きする
func (f *AcquirerFactory) Register(name string, creator AcquirerCreator) {
	f.creators[name] = creator
}

// Create はバックエンドを作成する
func (f *AcquirerFactory) Create(name string, config BackendConfig) (Acquirer, error) {
	creator, exists := f.creators[name]
	if !exists {
		return nil, fmt.Errorf("サポートされていないバックエンド: %s", name)
	}
	return creator(config)
}

// Backends は登録済みのバックエンド名を名前順に返す
func (f *AcquirerFactory) Backends() []string {
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
