package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"satsuei/internal/camera"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	Preview PreviewConfig `yaml:"preview"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Backend       string `yaml:"backend"`        // mediadevices / v4l2 / fake
	InitialFacing string `yaml:"initial_facing"` // front / back

	// 向きごとのデバイス。空なら自動選択
	FrontDevice string `yaml:"front_device"`
	BackDevice  string `yaml:"back_device"`

	// 要求する解像度とフレームレート（理想値）
	IdealWidth  int `yaml:"ideal_width"`
	IdealHeight int `yaml:"ideal_height"`
	FPS         int `yaml:"fps"`
}

// PreviewConfig はプレビュー表示の設定
type PreviewConfig struct {
	MaxWidth    int `yaml:"max_width"`    // 表示枠の幅
	JPEGQuality int `yaml:"jpeg_quality"` // MJPEG配信の品質
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Backend:       camera.BackendMediaDevices,
			InitialFacing: string(camera.FacingFront),
			IdealWidth:    640,
			IdealHeight:   480,
			FPS:           15,
		},
		Preview: PreviewConfig{
			MaxWidth:    300,
			JPEGQuality: 80,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load は設定を読み込んで検証する
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Read は検証せずに設定を読み込む
// デフォルト値に設定ファイル（path が空でなければ）と環境変数を順に重ねる
// 呼び出し側は上書きをすべて反映した後で Validate を呼ぶ
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Camera.Backend = getEnvOrDefault("CAMERA_BACKEND", cfg.Camera.Backend)
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	switch c.Camera.Backend {
	case camera.BackendMediaDevices, camera.BackendV4L2, camera.BackendFake:
	default:
		return fmt.Errorf("未対応のカメラバックエンド: %s", c.Camera.Backend)
	}
	if _, err := camera.ParseFacing(c.Camera.InitialFacing); err != nil {
		return err
	}
	if c.Camera.IdealWidth < 0 || c.Camera.IdealHeight < 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Camera.IdealWidth, c.Camera.IdealHeight)
	}
	if c.Camera.FPS < 0 {
		return fmt.Errorf("無効なフレームレート: %d", c.Camera.FPS)
	}

	// プレビュー設定の検証
	if c.Preview.MaxWidth < 0 {
		return fmt.Errorf("無効なプレビュー幅: %d", c.Preview.MaxWidth)
	}
	if c.Preview.JPEGQuality < 1 || c.Preview.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Preview.JPEGQuality)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// InitialFacing は初期の向きを返す。検証済みの設定では失敗しない
func (c *Config) InitialFacing() camera.Facing {
	f, err := camera.ParseFacing(c.Camera.InitialFacing)
	if err != nil {
		return camera.FacingFront
	}
	return f
}

// Devices は向きごとのデバイス指定を返す
func (c *Config) Devices() camera.DeviceMap {
	return camera.DeviceMap{
		Front: c.Camera.FrontDevice,
		Back:  c.Camera.BackDevice,
	}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
