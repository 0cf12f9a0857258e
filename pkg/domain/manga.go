package domain

// GenerationMode はパネル画像の生成に利用するプロバイダーを表します。
type GenerationMode string

const (
	ModeGemini GenerationMode = "gemini"
	ModeJimeng GenerationMode = "jimeng"
)

// Character は漫画に登場するキャラクターの定義を保持します。
type Character struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Seed           int64  `json:"seed"`
	ReferenceImage string `json:"reference_image"` // URL または data URL。空なら参照なし
}

// Panel は絵コンテの1コマを表します。
type Panel struct {
	ID             string   `json:"id"`
	Index          int      `json:"index"`
	Prompt         string   `json:"prompt"`
	ScriptContent  string   `json:"script_content"`
	CharacterNames []string `json:"character_names"`
	ImageURL       string   `json:"image_url"`
	Variations     []string `json:"variations"`
}

// SelectVariation は生成済みのバリエーションから採用する画像を選びます。
// 範囲外の index は無視して false を返します。
func (p *Panel) SelectVariation(index int) bool {
	if index < 0 || index >= len(p.Variations) {
		return false
	}
	p.ImageURL = p.Variations[index]
	return true
}

// PanelRequest は1コマ分の画像生成要求です。
type PanelRequest struct {
	Prompt       string
	Style        string
	Characters   []Character
	ContextImage string // 直前のコマなど、構図を引き継ぐための参照画像
	BatchSize    int
	Scale        *float64 // 以图生图時の変化量。nil ならデフォルト
	AspectRatio  string
	Seed         *int64
}
