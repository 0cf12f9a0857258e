package utils

import "strings"

// DereferenceSeed は、int64のポインタを安全にデリファレンスします。
// ポインタがnilの場合は0を返します。
func DereferenceSeed(seed *int64) int64 {
	if seed == nil {
		return 0
	}
	return *seed
}

// ClampUnit は v を [0, 1] の範囲に収めます。
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// UnescapeAmpersand は URL 中に文字列として残った "\u0026" を "&" に戻します。
func UnescapeAmpersand(s string) string {
	return strings.ReplaceAll(s, `\u0026`, "&")
}

// IsHTTPURL は s が http(s) の URL かどうかを返します。
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
