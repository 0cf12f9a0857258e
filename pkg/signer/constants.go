package signer

// Volcengine HMAC-SHA256 V4 署名で利用する定数です。
const (
	// Algorithm は署名アルゴリズムの識別子です。
	Algorithm = "HMAC-SHA256"

	// TimeFormat は X-Date ヘッダーの形式です (例: 20240102T030405Z)。
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat はクレデンシャルスコープの日付部分の形式です。
	ShortTimeFormat = "20060102"

	// ContentTypeJSON は署名対象の Content-Type です。
	ContentTypeJSON = "application/json"

	// EmptyStringSHA256 は空文字列の SHA256 を16進エンコードしたものです。
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	scopeTerminator = "request"

	HeaderHost          = "Host"
	HeaderDate          = "X-Date"
	HeaderContentSHA256 = "X-Content-Sha256"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
)
