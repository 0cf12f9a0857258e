package adapters

import (
	"context"
	"fmt"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
)

// UnifiedGenerator は生成モードに応じて Gemini と即梦のアダプターを切り替えます。
type UnifiedGenerator struct {
	gemini PanelGenerator
	jimeng PanelGenerator
}

// NewUnifiedGenerator は少なくとも一方のアダプターを受け取って初期化します。
func NewUnifiedGenerator(geminiGen, jimengGen PanelGenerator) (*UnifiedGenerator, error) {
	if geminiGen == nil && jimengGen == nil {
		return nil, fmt.Errorf("at least one PanelGenerator is required")
	}
	return &UnifiedGenerator{gemini: geminiGen, jimeng: jimengGen}, nil
}

// Generate は mode のアダプターでコマ画像を生成します。jimeng 以外のモードは gemini として扱います。
func (u *UnifiedGenerator) Generate(ctx context.Context, mode domain.GenerationMode, req domain.PanelRequest) ([]string, error) {
	gen, name := u.gemini, domain.ModeGemini
	if mode == domain.ModeJimeng {
		gen, name = u.jimeng, domain.ModeJimeng
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: %s 用のジェネレーターが設定されていません", domain.ErrConfiguration, name)
	}
	return gen.GeneratePanel(ctx, req)
}
