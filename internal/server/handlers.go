package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"satsuei/internal/config"
	"satsuei/internal/preview"
)

// SatsueiHandler はAPIエンドポイントを実装する
type SatsueiHandler struct {
	config   *config.Config
	session  *preview.Session
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *SatsueiHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    Healthy,
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *SatsueiHandler) GetStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Backend:   h.config.Camera.Backend,
		Session:   h.session.Status(),
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// ToggleCamera はカメラの向きを切り替える
// 取得に失敗しても向きは切り替わり、状態は active=false で返る
func (h *SatsueiHandler) ToggleCamera(c *gin.Context) {
	if h.session.State() == preview.StateStopped {
		h.sessionStopped(c)
		return
	}

	facing := h.session.Toggle(c.Request.Context())
	status := h.session.Status()

	c.JSON(http.StatusOK, ToggleResponse{
		Facing:    facing,
		Active:    status.Active,
		StreamID:  status.StreamID,
		Timestamp: time.Now(),
	})
}

// CapturePhoto は現在のフレームを撮影する
func (h *SatsueiHandler) CapturePhoto(c *gin.Context) {
	if h.session.State() == preview.StateStopped {
		h.sessionStopped(c)
		return
	}

	photo, ok := h.session.Capture()
	c.JSON(http.StatusOK, CaptureResponse{
		Captured:  ok,
		Photo:     photo,
		Timestamp: time.Now(),
	})
}

// GetPhoto は最新の撮影画像を返す
func (h *SatsueiHandler) GetPhoto(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Photo())
}

// GetStream はMJPEGストリーミングエンドポイントの実装
func (h *SatsueiHandler) GetStream(c *gin.Context) {
	if h.session.State() == preview.StateStopped {
		h.sessionStopped(c)
		return
	}

	h.streamMJPEG(c)
}

// GetEvents はセッションイベントをWebSocketで配信する
func (h *SatsueiHandler) GetEvents(c *gin.Context) {
	// 接続確立前に購読し、直後のイベントを取りこぼさない
	events, unsubscribe := h.session.Events().Subscribe()
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocketへのアップグレードに失敗しました")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// クライアントからの切断を検知する
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-events:
			if !ok {
				// セッション終了
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				h.log.Debug().Err(err).Msg("WebSocketへの書き込みに失敗しました")
				return
			}
		}
	}
}

// sessionStopped はセッション終了後のリクエストに応答する
func (h *SatsueiHandler) sessionStopped(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:     "session_stopped",
		Message:   "セッションは終了しています",
		Timestamp: time.Now(),
	})
}

// streamMJPEG はMJPEGストリームを配信する
func (h *SatsueiHandler) streamMJPEG(c *gin.Context) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// フレームチャンネルを取得
	frameChan, unsubscribe := h.session.Surface().Subscribe()
	defer unsubscribe()

	c.Status(http.StatusOK)
	flusher.Flush()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frameChan:
			if !ok {
				// 映像面が閉じられた
				return
			}

			if err := writeMJPEGPart(writer, frame); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

// writeMJPEGPart はMJPEGの1パートを書き込む
func writeMJPEGPart(w gin.ResponseWriter, frame []byte) error {
	if _, err := w.Write([]byte("--frame\r\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
