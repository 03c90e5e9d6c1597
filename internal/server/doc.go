// Package server は、プレビュー画面のHTTPサーバーを管理します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - プレビュー画面（HTML）の配信
//   - MJPEGによるプレビュー映像の配信
//   - カメラ切り替え・撮影のAPI
//   - WebSocketによるセッションイベントの配信
//
// 仕様:
//   - ルーティングは gin を使用
//   - WebSocketは gorilla/websocket を使用
//   - シャットダウン時は先にセッションを終了し、カメラを解放する
package server
