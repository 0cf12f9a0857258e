package domain

// ImageResponse は生成された画像データとそのメタデータです。
type ImageResponse struct {
	Data     []byte
	MimeType string
	Source   string // 取得元の URL または data URL
}
