package imgutil

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const dataURLPrefix = "data:"

// IsDataURL は s が data URL かどうかを返します。
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// EncodeDataURL はバイト列を "data:<mime>;base64,<data>" 形式に変換します。
// mimeType が空の場合は内容から推定します。
func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return dataURLPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL は base64 の data URL をバイト列と MIME タイプに分解します。
func DecodeDataURL(s string) ([]byte, string, error) {
	if !IsDataURL(s) {
		return nil, "", fmt.Errorf("data URL ではありません")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, dataURLPrefix), ",")
	if !ok {
		return nil, "", fmt.Errorf("data URL にデータ部がありません")
	}
	mimeType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, "", fmt.Errorf("未対応の data URL エンコーディング: %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("base64 のデコードに失敗しました: %w", err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
