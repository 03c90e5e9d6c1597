package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrAcquire はストリーム取得失敗を表すエラー種別
	ErrAcquire = errors.New("カメラストリームの取得に失敗")

	ErrNoDevice         = errors.New("条件に合うカメラデバイスがありません")
	ErrPermissionDenied = errors.New("カメラへのアクセスが拒否されました")
	ErrDeviceBusy       = errors.New("カメラデバイスは使用中です")

	// ErrTrackEnded は停止済みトラックからの読み取りで返される
	ErrTrackEnded = errors.New("トラックは停止済みです")
)

// AcquireError はストリーム取得の失敗を原因とともに保持する
// 権限拒否・デバイスなし・使用中はすべてこの1種類として扱う
type AcquireError struct {
	Facing  Facing
	Backend string
	Err     error
}

func (e *AcquireError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s (%s): %v", ErrAcquire.Error(), e.Facing, e.Err)
	}
	return fmt.Sprintf("%s (%s, %s): %v", ErrAcquire.Error(), e.Backend, e.Facing, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrAcquire) を満たすためのもの
func (e *AcquireError) Is(target error) bool {
	return target == ErrAcquire
}

// asAcquireError は任意のエラーを AcquireError に揃える
func asAcquireError(facing Facing, backend string, err error) *AcquireError {
	var aerr *AcquireError
	if errors.As(err, &aerr) {
		return aerr
	}
	return &AcquireError{Facing: facing, Backend: backend, Err: err}
}
