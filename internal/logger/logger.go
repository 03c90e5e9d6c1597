// Package logger はアプリケーション全体で使う構造化ロガーを提供する
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger はグローバルロガー
var Logger zerolog.Logger

func init() {
	// Init が呼ばれるまでは info レベルの JSON 出力
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// ParseLevel はレベル文字列を zerolog のレベルに変換する
// 不明な値は info として扱う
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init はグローバルロガーをレベルと出力形式を指定して初期化する
func Init(level string, pretty bool) {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	InitWithWriter(level, out)
}

// InitWithWriter は任意の出力先でロガーを初期化する（テスト用）
func InitWithWriter(level string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	Logger = zerolog.New(w).With().Timestamp().Logger()
	log.Logger = Logger
}

// WithComponent は component フィールド付きのロガーを返す
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}
