package adapters

import (
	"fmt"
	"strings"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
)

const (
	backgroundWithCharacters = "纯白背景, 极简环境"
	backgroundScenery        = "精细真实环境场景"
	geminiIsolationHint      = ", 角色隔离"
	cleanCompositionSuffix   = "画面必须干净、纯粹。构图清晰稳定, 线条准确, 无文字, 无对话框."
	geminiCleanRules         = "画面必须干净、纯粹。严禁出现速度线、发光、烟雾特效、冲击波或任何装饰性漫画线条。" +
		"重要：直接生成图片数据，不要使用markdown格式，不要在图片前后添加任何文字说明。"
	geminiCompositionSuffix = "构图清晰稳定, 线条准确, 无文字, 无对话框."
)

// characterTraits は "名前(説明), 名前(説明)" 形式の特徴文を返します。
func characterTraits(chars []domain.Character) string {
	infos := make([]string, 0, len(chars))
	for _, c := range chars {
		infos = append(infos, fmt.Sprintf("%s(%s)", c.Name, c.Description))
	}
	return strings.Join(infos, ", ")
}

// BuildPanelPrompt はスタイルと登場キャラクターからプロバイダー向けの完全なプロンプトを組み立てます。
func BuildPanelPrompt(mode domain.GenerationMode, req domain.PanelRequest) string {
	bg := backgroundScenery
	if len(req.Characters) > 0 {
		bg = backgroundWithCharacters
		if mode != domain.ModeJimeng {
			bg += geminiIsolationHint
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s漫画风格, %s: %s. ", req.Style, bg, req.Prompt)

	if mode != domain.ModeJimeng {
		sb.WriteString(geminiCleanRules)
	}
	if len(req.Characters) > 0 {
		fmt.Fprintf(&sb, "角色特征: %s. ", characterTraits(req.Characters))
	}
	if mode == domain.ModeJimeng {
		sb.WriteString(cleanCompositionSuffix)
	} else {
		sb.WriteString(geminiCompositionSuffix)
	}
	return sb.String()
}

type referenceImage struct {
	name   string
	source string // URL または data URL
}

// collectReferences は参照画像をキャラクター順に集め、最後にコンテキスト画像を加えます。
func collectReferences(req domain.PanelRequest) []referenceImage {
	refs := make([]referenceImage, 0, len(req.Characters)+1)
	for _, c := range req.Characters {
		if c.ReferenceImage == "" {
			continue
		}
		name := c.ID
		if name == "" {
			name = c.Name
		}
		refs = append(refs, referenceImage{name: "character_" + name, source: c.ReferenceImage})
	}
	if req.ContextImage != "" {
		refs = append(refs, referenceImage{name: "context", source: req.ContextImage})
	}
	return refs
}
