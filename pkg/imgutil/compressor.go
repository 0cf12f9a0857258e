package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

const (
	minQuality = 1
	maxQuality = 100
)

// CompressToJPEG は画像データ (PNG, GIF, JPEG等) をJPEG形式に再エンコードします。
// 透過部分は白で塗りつぶします。quality は [1, 100] に丸めます。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}

	var img image.Image = src
	if format != "jpeg" {
		img = flattenOnWhite(src)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressIfSmaller は JPEG 圧縮した結果が元より小さい場合だけ圧縮後のデータを返します。
// デコードできない場合や圧縮で大きくなる場合は元データと false を返します。
func CompressIfSmaller(data []byte, quality int) ([]byte, bool) {
	compressed, err := CompressToJPEG(data, quality)
	if err != nil || len(compressed) >= len(data) {
		return data, false
	}
	return compressed, true
}

// flattenOnWhite は白背景の上に src を合成します。JPEG は透過を持てないため。
func flattenOnWhite(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func clampQuality(q int) int {
	switch {
	case q < minQuality:
		return jpeg.DefaultQuality
	case q > maxQuality:
		return maxQuality
	default:
		return q
	}
}
