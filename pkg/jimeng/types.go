package jimeng

import (
	"github.com/shouni/jimeng-image-kit/pkg/utils"
)

// 即梦 4.0 (Volcengine visual API) の接続情報です。
const (
	DefaultHost     = "visual.volcengineapi.com"
	DefaultEndpoint = "https://" + DefaultHost
	Service         = "cv"
	Region          = "cn-north-1"
	APIVersion      = "2022-08-31"
	DefaultReqKey   = "jimeng_t2i_v40"

	ActionSubmit    = "CVSync2AsyncSubmitTask"
	ActionGetResult = "CVSync2AsyncGetResult"

	// DefaultScale は以图生图で scale 未指定時の変化量です。
	DefaultScale = 0.5
	// MaxRandomSeed は文生图で自動採番するシードの上限 (排他) です。
	MaxRandomSeed = 999999
)

// タスク状態として返される文字列です。
const (
	StatusProcessing = "processing"
	StatusRunning    = "running"
	StatusDone       = "done"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Dimensions は出力画像のサイズです。
type Dimensions struct {
	Width  int
	Height int
}

var aspectRatioDimensions = map[string]Dimensions{
	"1:1":  {Width: 1024, Height: 1024},
	"16:9": {Width: 2560, Height: 1440},
	"9:16": {Width: 1440, Height: 2560},
}

// DimensionsFor はアスペクト比から出力サイズを返します。未知の値は 1:1 として扱います。
func DimensionsFor(aspectRatio string) Dimensions {
	if d, ok := aspectRatioDimensions[aspectRatio]; ok {
		return d
	}
	return aspectRatioDimensions["1:1"]
}

// ClampScale は scale を [0,1] に収めます。nil の場合は DefaultScale を返します。
func ClampScale(scale *float64) float64 {
	if scale == nil {
		return DefaultScale
	}
	return utils.ClampUnit(*scale)
}

// SubmitParams は1タスク分の投入パラメータです。
// ImageURLs が空でなければ以图生图、空なら文生图として送信します。
type SubmitParams struct {
	Prompt    string
	Width     int
	Height    int
	Seed      int64
	ImageURLs []string
	Scale     float64
}

// IsImageToImage は参照画像付きの投入かどうかを返します。
func (p SubmitParams) IsImageToImage() bool {
	return len(p.ImageURLs) > 0
}

type logoInfo struct {
	AddLogo bool `json:"add_logo"`
}

type submitBody struct {
	ReqKey      string   `json:"req_key"`
	Prompt      string   `json:"prompt"`
	ForceSingle bool     `json:"force_single"`
	LogoInfo    logoInfo `json:"logo_info"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Seed        *int64   `json:"seed,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
}

func newSubmitBody(reqKey string, p SubmitParams) submitBody {
	body := submitBody{
		ReqKey:      reqKey,
		Prompt:      p.Prompt,
		ForceSingle: true,
		LogoInfo:    logoInfo{AddLogo: false},
		Width:       p.Width,
		Height:      p.Height,
	}
	if p.IsImageToImage() {
		scale := utils.ClampUnit(p.Scale)
		body.ImageURLs = p.ImageURLs
		body.Scale = &scale
	} else {
		seed := p.Seed
		body.Seed = &seed
	}
	return body
}

type resultBody struct {
	ReqKey  string `json:"req_key"`
	TaskID  string `json:"task_id"`
	ReqJSON string `json:"req_json,omitempty"`
}

type resultOptions struct {
	ReturnURL bool     `json:"return_url"`
	LogoInfo  logoInfo `json:"logo_info"`
}

type submitResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      *struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type resultResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      *struct {
		TaskID           string   `json:"task_id"`
		Status           string   `json:"status"`
		ImageURLs        []string `json:"image_urls"`
		BinaryDataBase64 []string `json:"binary_data_base64"`
	} `json:"data"`
}

// errorResponse は 4xx 応答のボディです。API の code か、ゲートウェイの ResponseMetadata のどちらかを持ちます。
type errorResponse struct {
	Code             int    `json:"code"`
	Message          string `json:"message"`
	ResponseMetadata *struct {
		RequestID string `json:"RequestId"`
		Error     *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"ResponseMetadata"`
}

// TaskResult はタスク照会の結果です。ImageURLs はエスケープ解除済みです。
type TaskResult struct {
	TaskID           string
	Status           string
	Message          string
	ImageURLs        []string
	BinaryDataBase64 []string
}
