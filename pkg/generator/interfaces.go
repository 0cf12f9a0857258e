package generator

import (
	"context"
	"time"

	"github.com/shouni/jimeng-image-kit/pkg/jimeng"
)

// TaskClient は非同期生成タスクの投入と照会を行うクライアントです。*jimeng.Client が満たします。
type TaskClient interface {
	Submit(ctx context.Context, params jimeng.SubmitParams) (string, error)
	GetResult(ctx context.Context, taskID string) (*jimeng.TaskResult, error)
}

// ImageGenerator はプロンプトと参照画像から画像を生成する窓口です。
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
}

// ImageCacher は、画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	// Get は、指定されたキーに紐づくアイテムを取得します。
	Get(key string) (any, bool)
	// Set は、指定されたキーと値、有効期限でアイテムを保存します。
	Set(key string, value any, d time.Duration)
}
