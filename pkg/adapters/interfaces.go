package adapters

import (
	"context"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
)

// PanelGenerator は1コマ分の画像バリエーションを生成する窓口です。
// 戻り値は URL または data URL です。
type PanelGenerator interface {
	GeneratePanel(ctx context.Context, req domain.PanelRequest) ([]string, error)
}

// ReferenceUploader は data URL の参照画像を公開URLに変換します。
// 即梦は URL でしか参照画像を受け付けないため、オブジェクトストレージ等への保存を担います。
type ReferenceUploader interface {
	Upload(ctx context.Context, dataURL, name string) (string, error)
}

// GeminiModel は GeminiPanelAdapter が利用する Gemini クライアントの機能です。
type GeminiModel interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

// ImageFetcher は参照画像を取得します。*generator.Downloader が満たします。
type ImageFetcher interface {
	Fetch(ctx context.Context, src string) (*domain.ImageResponse, error)
}
