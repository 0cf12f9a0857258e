package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/generator"
	"github.com/shouni/jimeng-image-kit/pkg/utils"
)

// JimengPanelAdapter は即梦のオーケストレーターでコマ画像を生成するアダプターです。
type JimengPanelAdapter struct {
	gen      generator.ImageGenerator
	uploader ReferenceUploader
	logger   *slog.Logger
	now      func() time.Time
}

// JimengOption は JimengPanelAdapter の設定を変更します。
type JimengOption func(*JimengPanelAdapter)

// WithReferenceUploader は data URL の参照画像をアップロードする実装を設定します。
// 未設定の場合、data URL の参照画像は使われません。
func WithReferenceUploader(u ReferenceUploader) JimengOption {
	return func(a *JimengPanelAdapter) {
		a.uploader = u
	}
}

// WithJimengLogger はロガーを差し替えます。
func WithJimengLogger(l *slog.Logger) JimengOption {
	return func(a *JimengPanelAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewJimengPanelAdapter は依存関係を注入してアダプターを初期化します。
func NewJimengPanelAdapter(gen generator.ImageGenerator, opts ...JimengOption) (*JimengPanelAdapter, error) {
	if gen == nil {
		return nil, fmt.Errorf("gen (generator.ImageGenerator) is required")
	}
	a := &JimengPanelAdapter{
		gen:    gen,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// GeneratePanel はプロンプトを組み立て、参照画像があれば以图生图、なければ文生图で BatchSize 枚を生成します。
func (a *JimengPanelAdapter) GeneratePanel(ctx context.Context, req domain.PanelRequest) ([]string, error) {
	prompt := BuildPanelPrompt(domain.ModeJimeng, req)
	refs := a.resolveReferences(ctx, req)

	batch := req.BatchSize
	if batch <= 0 {
		batch = 1
	}
	a.logger.InfoContext(ctx, "即梦でコマ画像を生成します", "batch", batch, "references", len(refs))

	images, err := a.gen.Generate(ctx, generator.GenerateRequest{
		Prompt:        prompt,
		ReferenceURLs: refs,
		Count:         batch,
		AspectRatio:   req.AspectRatio,
		Scale:         req.Scale,
		Seed:          req.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("即梦でのコマ画像生成に失敗しました: %w", err)
	}
	return images, nil
}

// resolveReferences は参照画像を即梦が受け付ける URL に揃えます。
// アップロードに失敗した画像は警告を残して除外します。
func (a *JimengPanelAdapter) resolveReferences(ctx context.Context, req domain.PanelRequest) []string {
	var urls []string
	for _, ref := range collectReferences(req) {
		if utils.IsHTTPURL(ref.source) {
			urls = append(urls, ref.source)
			continue
		}
		if a.uploader == nil {
			a.logger.WarnContext(ctx, "アップロード先が未設定のため参照画像を除外します", "reference", ref.name)
			continue
		}
		name := fmt.Sprintf("%s_%d.png", ref.name, a.now().UnixMilli())
		u, err := a.uploader.Upload(ctx, ref.source, name)
		if err != nil {
			a.logger.WarnContext(ctx, "参照画像のアップロードに失敗しました。この画像を除外して続行します",
				"reference", ref.name, "error", err)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
