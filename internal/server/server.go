package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"satsuei/internal/camera"
	"satsuei/internal/config"
	"satsuei/internal/logger"
	"satsuei/internal/preview"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	session    *preview.Session
	engine     *gin.Engine
	httpServer *http.Server
	log        *zerolog.Logger
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, session *preview.Session) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		config:  cfg,
		session: session,
		engine:  engine,
		log:     logger.WithComponent("server"),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()
	return s
}

// NewFromConfig は設定のバックエンドでセッションを作成し、Serverを返す
func NewFromConfig(cfg *config.Config) (*Server, error) {
	acquirer, err := camera.NewAcquirerFactory().Create(cfg.Camera.Backend, camera.BackendConfig{
		Devices: cfg.Devices(),
		FPS:     cfg.Camera.FPS,
	})
	if err != nil {
		return nil, fmt.Errorf("カメラバックエンドの作成に失敗: %w", err)
	}

	session := preview.NewSession(acquirer, preview.Options{
		Backend:         cfg.Camera.Backend,
		InitialFacing:   cfg.InitialFacing(),
		IdealWidth:      cfg.Camera.IdealWidth,
		IdealHeight:     cfg.Camera.IdealHeight,
		FPS:             cfg.Camera.FPS,
		PreviewMaxWidth: cfg.Preview.MaxWidth,
		JPEGQuality:     cfg.Preview.JPEGQuality,
	})

	return New(cfg, session), nil
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery(), s.requestLogger())

	handler := &SatsueiHandler{
		config:  s.config,
		session: s.session,
		log:     s.log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	// ルートハンドラ
	s.engine.GET("/", s.handleRoot)

	// ヘルスチェックエンドポイント
	s.engine.GET("/health", handler.HealthCheck)

	// APIエンドポイント
	api := s.engine.Group("/api")
	api.GET("/status", handler.GetStatus)
	api.GET("/stream", handler.GetStream)
	api.GET("/photo", handler.GetPhoto)
	api.GET("/events", handler.GetEvents)
	api.POST("/camera/toggle", handler.ToggleCamera)
	api.POST("/capture", handler.CapturePhoto)
}

// requestLogger はリクエストをデバッグレベルで記録する
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("リクエストを処理しました")
	}
}

// handleRoot はプレビュー画面を返す
func (s *Server) handleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// Handler はHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Session はサーバーが持つセッションを返す
func (s *Server) Session() *preview.Session {
	return s.session
}

// Start はセッションをマウントしてサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// カメラを取得できなくてもサーバーは起動する
	if err := s.session.Mount(ctx); err != nil {
		s.log.Error().Err(err).Msg("プレビューを開始できませんでした")
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.log.Info().Str("addr", s.config.ServerAddress()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.log.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		s.session.Unmount(context.Background())
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はセッションを終了し、サーバーをグレースフルにシャットダウンする
// 先にセッションを閉じることで配信中のストリームを終わらせる
func (s *Server) Shutdown() error {
	s.log.Info().Msg("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.session.Unmount(ctx)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.log.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
