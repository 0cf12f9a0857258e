package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/imgutil"
)

const (
	DefaultGeminiModel     = "gemini-2.5-flash-image-preview"
	DefaultGeminiBatchSize = 2
)

// GeminiPanelAdapter は Gemini でコマ画像のバリエーションを生成するアダプターです。
type GeminiPanelAdapter struct {
	client  GeminiModel
	fetcher ImageFetcher
	model   string
	logger  *slog.Logger
}

// NewGeminiPanelAdapter は依存関係を注入してアダプターを初期化します。model が空なら DefaultGeminiModel です。
func NewGeminiPanelAdapter(client GeminiModel, fetcher ImageFetcher, model string, logger *slog.Logger) (*GeminiPanelAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("client (GeminiModel) is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher (ImageFetcher) is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiPanelAdapter{client: client, fetcher: fetcher, model: model, logger: logger}, nil
}

// GeneratePanel は BatchSize 件のリクエストを並行に送り、得られた画像を data URL で返します。
// 失敗したバリエーションは除外し、1件も得られなければ domain.ErrAllTasksFailed を返します。
func (a *GeminiPanelAdapter) GeneratePanel(ctx context.Context, req domain.PanelRequest) ([]string, error) {
	parts := a.buildParts(ctx, req)

	batch := req.BatchSize
	if batch <= 0 {
		batch = DefaultGeminiBatchSize
	}
	a.logger.InfoContext(ctx, "Geminiでコマ画像を生成します", "model", a.model, "batch", batch, "total_parts", len(parts))

	opts := gemini.GenerateOptions{AspectRatio: req.AspectRatio}
	results := make([]string, batch)
	var g errgroup.Group
	for i := 0; i < batch; i++ {
		g.Go(func() error {
			resp, err := a.client.GenerateWithParts(ctx, a.model, parts, opts)
			if err != nil {
				a.logger.WarnContext(ctx, "Geminiの画像生成に失敗しました", "variation", i, "error", err)
				return nil
			}
			img, err := parseImage(resp)
			if err != nil {
				a.logger.WarnContext(ctx, "Geminiの応答から画像を取り出せませんでした", "variation", i, "error", err)
				return nil
			}
			results[i] = imgutil.EncodeDataURL(img.Data, img.MimeType)
			return nil
		})
	}
	_ = g.Wait()

	images := make([]string, 0, batch)
	for _, r := range results {
		if r != "" {
			images = append(images, r)
		}
	}
	if len(images) == 0 && ctx.Err() == nil {
		return nil, fmt.Errorf("Geminiでのコマ画像生成に失敗しました: %w (%d variations)", domain.ErrAllTasksFailed, batch)
	}
	return images, nil
}

// buildParts はプロンプトと参照画像 (キャラクター順、最後にコンテキスト画像) を Part に変換します。
func (a *GeminiPanelAdapter) buildParts(ctx context.Context, req domain.PanelRequest) []*genai.Part {
	parts := []*genai.Part{{Text: BuildPanelPrompt(domain.ModeGemini, req)}}
	for _, ref := range collectReferences(req) {
		img, err := a.fetcher.Fetch(ctx, ref.source)
		if err != nil {
			a.logger.WarnContext(ctx, "参照画像の読み込みに失敗しました。この画像を除外して続行します",
				"reference", ref.name, "error", err)
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MimeType, Data: img.Data},
		})
	}
	return parts
}

// parseImage は Gemini の応答から最初の画像パーツを取り出します。
var embeddedImagePattern = regexp.MustCompile(`data:image/[^;]+;base64,[A-Za-z0-9+/=]+`)

// imageFromText はテキスト中の最初の data:image URL を取り出してデコードします。
func imageFromText(text string) (*domain.ImageResponse, bool) {
	if !strings.Contains(text, "data:image") {
		return nil, false
	}
	match := embeddedImagePattern.FindString(text)
	if match == "" {
		return nil, false
	}
	data, mimeType, err := imgutil.DecodeDataURL(match)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return &domain.ImageResponse{Data: data, MimeType: mimeType}, true
}

func parseImage(resp *gemini.Response) (*domain.ImageResponse, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, fmt.Errorf("Geminiからの有効な応答がありませんでした")
	}

	// 最初の候補のみを利用する
	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &domain.ImageResponse{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				}, nil
			}
			// モデルによっては画像を data URL としてテキストに埋め込んで返す
			if img, ok := imageFromText(part.Text); ok {
				return img, nil
			}
		}
	}

	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("画像生成が異常終了しました (FinishReason: %s)", candidate.FinishReason)
	}
	return nil, fmt.Errorf("画像データが見つかりませんでした")
}
