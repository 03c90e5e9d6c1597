package config

import (
	"os"
	"path/filepath"
	"testing"

	"satsuei/internal/camera"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定を読み込む
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// デフォルト値の検証
	if cfg.Camera.IdealWidth != 640 || cfg.Camera.IdealHeight != 480 {
		t.Errorf("デフォルト解像度が違います: %dx%d", cfg.Camera.IdealWidth, cfg.Camera.IdealHeight)
	}
	if cfg.Camera.FPS <= 0 {
		t.Error("デフォルトFPSが設定されていません")
	}
	if cfg.InitialFacing() != camera.FacingFront {
		t.Errorf("初期の向きが前面ではありません: %s", cfg.InitialFacing())
	}
	if cfg.Preview.MaxWidth != 300 {
		t.Errorf("プレビュー幅が違います: %d", cfg.Preview.MaxWidth)
	}
}

// TestConfigLoadFile は設定ファイルの読み込みをテストする
func TestConfigLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`server:
  port: 9000
camera:
  backend: fake
  initial_facing: environment
  back_device: /dev/video2
  ideal_width: 1280
  ideal_height: 720
preview:
  max_width: 480
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("ポートが反映されていません: got %d", cfg.Server.Port)
	}
	// ファイルにない項目はデフォルトのまま
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("ホストのデフォルトが失われました: got %s", cfg.Server.Host)
	}
	if cfg.Camera.Backend != camera.BackendFake {
		t.Errorf("バックエンドが反映されていません: got %s", cfg.Camera.Backend)
	}
	if cfg.InitialFacing() != camera.FacingBack {
		t.Errorf("初期の向きが反映されていません: got %s", cfg.InitialFacing())
	}
	if got := cfg.Devices().For(camera.FacingBack); got != "/dev/video2" {
		t.Errorf("背面デバイスが反映されていません: got %s", got)
	}
	if cfg.Camera.IdealWidth != 1280 || cfg.Camera.IdealHeight != 720 {
		t.Errorf("解像度が反映されていません: %dx%d", cfg.Camera.IdealWidth, cfg.Camera.IdealHeight)
	}
	if cfg.Preview.JPEGQuality != 80 {
		t.Errorf("JPEG品質のデフォルトが失われました: got %d", cfg.Preview.JPEGQuality)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("ログレベルが反映されていません: got %s", cfg.Log.Level)
	}
}

// TestConfigLoadFileErrors は読み込めない設定ファイルをテストする
func TestConfigLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーになりませんでした")
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("server: [1, 2"), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}
	if _, err := Load(broken); err == nil {
		t.Error("壊れたYAMLでエラーになりませんでした")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "未対応のバックエンド",
			modify:    func(c *Config) { c.Camera.Backend = "x11" },
			expectErr: true,
		},
		{
			name:      "無効な向き",
			modify:    func(c *Config) { c.Camera.InitialFacing = "side" },
			expectErr: true,
		},
		{
			name:      "facingMode 表記の向き",
			modify:    func(c *Config) { c.Camera.InitialFacing = "user" },
			expectErr: false,
		},
		{
			name:      "負の解像度",
			modify:    func(c *Config) { c.Camera.IdealWidth = -1 },
			expectErr: true,
		},
		{
			name:      "負のフレームレート",
			modify:    func(c *Config) { c.Camera.FPS = -5 },
			expectErr: true,
		},
		{
			name:      "無効なJPEG品質",
			modify:    func(c *Config) { c.Preview.JPEGQuality = 0 },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("CAMERA_BACKEND", "v4l2")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Camera.Backend != camera.BackendV4L2 {
		t.Errorf("環境変数のバックエンドが反映されていません: got %s", cfg.Camera.Backend)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("環境変数のログレベルが反映されていません: got %s", cfg.Log.Level)
	}
}

// TestEnvironmentVariablesInvalidPort は整数でないポートを無視することをテストする
func TestEnvironmentVariablesInvalidPort(t *testing.T) {
	t.Setenv("PORT", "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("デフォルトのポートが使われていません: got %d", cfg.Server.Port)
	}
}

// TestReadDefersValidation は不正な値を後から上書きできることをテストする
func TestReadDefersValidation(t *testing.T) {
	t.Setenv("CAMERA_BACKEND", "bogus")

	if _, err := Load(""); err == nil {
		t.Error("不正なバックエンドでも Load が成功しました")
	}

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("検証前の読み込みに失敗しました: %v", err)
	}
	if cfg.Camera.Backend != "bogus" {
		t.Errorf("環境変数のバックエンドが反映されていません: got %s", cfg.Camera.Backend)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("上書き前の設定が検証を通りました")
	}

	cfg.Camera.Backend = camera.BackendFake
	if err := cfg.Validate(); err != nil {
		t.Errorf("上書き後の設定が検証に失敗しました: %v", err)
	}
}
