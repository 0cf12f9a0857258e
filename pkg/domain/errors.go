package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration は認証情報などの設定不足を表します。ネットワーク通信の前に返されます。
	ErrConfiguration = errors.New("configuration error")
	// ErrNetwork は再試行可能な通信エラーを表します。
	ErrNetwork = errors.New("network error")
	// ErrTaskTimeout はポーリング回数の上限に達したことを表します。
	ErrTaskTimeout = errors.New("task polling timed out")
	// ErrTaskFailed はプロバイダーがタスクを失敗として終了させたことを表します。
	ErrTaskFailed = errors.New("task failed")
	// ErrAllTasksFailed はバッチ内のすべてのタスクが失敗したことを表します。
	ErrAllTasksFailed = errors.New("all tasks failed")
)

// SuccessCode は API レベルで成功を表すレスポンスコードです。
const SuccessCode = 10000

// ProviderError はプロバイダーが成功以外のコードを返したことを表します。
// そのタスクにとっては致命的ですが、バッチ全体には影響しません。
type ProviderError struct {
	Action     string
	StatusCode int // HTTPステータス（APIレベルのエラーでは 200）
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Action == "" {
		return fmt.Sprintf("provider error (code=%d): %s", e.Code, msg)
	}
	return fmt.Sprintf("provider error on %s (code=%d): %s", e.Action, e.Code, msg)
}

// IsTransient は err がポーリング内で再試行可能かどうかを判定します。
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork)
}
