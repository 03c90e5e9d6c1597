// Package main はSatsueiサーバーコマンドの実装です
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"satsuei/internal/config"
	"satsuei/internal/logger"
	"satsuei/internal/server"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "server",
		Short: "Satsuei - カメラプレビューと撮影のサーバー",
		Long: `Satsuei はカメラ映像をブラウザにプレビューし、
前面/背面カメラの切り替えと静止画の撮影を提供します。`,
		Example: `  # デフォルト設定で起動
  server

  # ポートとバックエンドを指定
  server --port 9090 --backend v4l2

  # 設定ファイルを指定してデバッグログを出す
  server --config config.yaml --log-level debug`,
		SilenceUsage: true,
		RunE:         runServer,
	}
)

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "設定ファイル (YAML)")
	rootCmd.Flags().String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	rootCmd.Flags().Int("port", 0, "サーバーのポート (デフォルト: 8080)")
	rootCmd.Flags().String("backend", "", "カメラバックエンド (mediadevices, v4l2, fake)")
	rootCmd.Flags().String("log-level", "", "ログレベル (debug, info, warn, error)")

	// フラグを viper に結び付ける
	_ = viper.BindPFlag("server_host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server_port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("camera_backend", rootCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("main")

	// サーバーを作成
	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	// サーバーを起動
	log.Info().
		Str("addr", cfg.ServerAddress()).
		Str("backend", cfg.Camera.Backend).
		Msg("Satsuei サーバーを起動します")
	return srv.Start(context.Background())
}

// loadConfig は設定ファイルと環境変数にフラグを重ねてから一度だけ検証する
func loadConfig(path string) (*config.Config, error) {
	// 設定を読み込む
	cfg, err := config.Read(path)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	// コマンドラインオプションで設定を上書き
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗しました: %w", err)
	}
	return cfg, nil
}

// applyFlags は指定されたフラグだけを設定に反映する
func applyFlags(cfg *config.Config) {
	if host := viper.GetString("server_host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server_port"); port > 0 {
		cfg.Server.Port = port
	}
	if backend := viper.GetString("camera_backend"); backend != "" {
		cfg.Camera.Backend = backend
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.Log.Level = level
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}
