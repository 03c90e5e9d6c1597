// Package preview はカメラプレビュー画面を構成する
//
// 責務:
//   - 向きフラグの切り替え（Toggle）
//   - ストリームの連続再生とMJPEG配信用のフレーム分配（Surface）
//   - 現在のフレームのPNGデータURI化（Capture）
//   - 上記をまとめたセッションのライフサイクル（Session）
//
// 状態遷移:
//
//	uninitialized → streaming(front) ⇄ streaming(back) → stopped
//
// 撮影は streaming 中いつでも行える読み取り専用の操作で、状態を変えない。
package preview
