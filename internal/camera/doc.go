// Package camera カメラストリームの取得と解放を担う
//
// # 責務
// - 向き（前面/背面）に合うカメラデバイスの選択
// - ストリームの取得（希望解像度つき）とトラックの停止
// - アクティブなストリームを高々1本に保つ StreamManager
//
// # 仕様
//   - Acquirer: バックエンドごとのストリーム取得
//     mediadevices: pion/mediadevices の GetUserMedia
//     v4l2: ffmpeg 経由での V4L2 デバイス読み取り
//     fake: テストパターン生成
//   - StreamManager: 取得前に旧ストリームの全トラックを停止する
//   - 取得失敗（権限拒否・デバイスなし・使用中）は ErrAcquire の1種類として扱い、再試行しない
//
// # 前提要件
//   - v4l2 バックエンド: ffmpeg と v4l-utils
//     Ubuntu/Debian: sudo apt install ffmpeg v4l-utils
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
