package server

import (
	"time"

	"satsuei/internal/camera"
	"satsuei/internal/preview"
)

// HealthStatus はヘルスチェックの状態
type HealthStatus string

const (
	Healthy HealthStatus = "healthy"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// ServerInfo はサーバーのリッスン先
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string         `json:"status"`
	Server    ServerInfo     `json:"server"`
	Backend   string         `json:"backend"`
	Session   preview.Status `json:"session"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToggleResponse はカメラ切り替えのレスポンス
type ToggleResponse struct {
	Facing    camera.Facing `json:"facing"`
	Active    bool          `json:"active"`
	StreamID  string        `json:"stream_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// CaptureResponse は撮影のレスポンス
// フレームがまだない場合 Captured は false で、写真は以前のまま
type CaptureResponse struct {
	Captured  bool               `json:"captured"`
	Photo     preview.PhotoState `json:"photo"`
	Timestamp time.Time          `json:"timestamp"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
