package server

import (
	"embed"

	"satsuei/internal/logger"
)

//go:embed all:dist
var embedFS embed.FS

// getIndexHTML はプレビュー画面のHTMLを返す
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("dist/index.html")
	if err != nil {
		logger.WithComponent("server").Fatal().Err(err).Msg("埋め込みindex.htmlの読み込みに失敗")
	}
	return data
}
