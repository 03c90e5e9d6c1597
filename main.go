package main

import (
	"context"
	"os"

	"satsuei/internal/config"
	"satsuei/internal/logger"
	"satsuei/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load(os.Getenv("SATSUEI_CONFIG"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	// サーバーを作成
	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("サーバーの作成に失敗しました")
	}

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}
