package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/imgutil"
)

const (
	DefaultCompressionQuality = 75
	DefaultCacheTTL           = 30 * time.Minute
	cacheKeyImageBytes        = "image_bytes:"
)

// Downloader は生成結果や参照画像 (URL / gs:// / data URL) をバイト列として取得します。
type Downloader struct {
	httpClient httpkit.ClientInterface
	reader     remoteio.InputReader
	cache      ImageCacher
	cacheTTL   time.Duration
	compress   bool
	quality    int
	logger     *slog.Logger
}

// DownloaderOption は Downloader の設定を変更します。
type DownloaderOption func(*Downloader)

// WithCache は取得済み画像のキャッシュを設定します。ttl が0以下なら DefaultCacheTTL です。
func WithCache(cache ImageCacher, ttl time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.cache = cache
		if ttl > 0 {
			d.cacheTTL = ttl
		}
	}
}

// WithCompression は、小さくなる場合に限り JPEG へ再圧縮します。
func WithCompression(quality int) DownloaderOption {
	return func(d *Downloader) {
		d.compress = true
		if quality > 0 && quality <= 100 {
			d.quality = quality
		}
	}
}

// WithDownloaderLogger はロガーを差し替えます。
func WithDownloaderLogger(l *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDownloader は依存関係を注入して Downloader を初期化します。
// reader は nil を許容し、その場合 gs:// は取得できません。
func NewDownloader(httpClient httpkit.ClientInterface, reader remoteio.InputReader, opts ...DownloaderOption) (*Downloader, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	d := &Downloader{
		httpClient: httpClient,
		reader:     reader,
		cacheTTL:   DefaultCacheTTL,
		quality:    DefaultCompressionQuality,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Fetch は src を取得して画像データを返します。画像として判定できないデータはエラーです。
func (d *Downloader) Fetch(ctx context.Context, src string) (*domain.ImageResponse, error) {
	if src == "" {
		return nil, fmt.Errorf("画像の取得元が空です")
	}

	if imgutil.IsDataURL(src) {
		data, mimeType, err := imgutil.DecodeDataURL(src)
		if err != nil {
			return nil, err
		}
		return d.finish(data, mimeType, src)
	}

	if d.cache != nil {
		if val, ok := d.cache.Get(cacheKeyImageBytes + src); ok {
			if data, ok := val.([]byte); ok {
				return d.finish(data, "", src)
			}
			d.logger.WarnContext(ctx, "キャッシュデータが不正な型です", "url", src, "type", fmt.Sprintf("%T", val))
		}
	}

	data, err := d.fetchRaw(ctx, src)
	if err != nil {
		return nil, err
	}

	if d.compress {
		if compressed, ok := imgutil.CompressIfSmaller(data, d.quality); ok {
			d.logger.DebugContext(ctx, "画像を再圧縮しました", "url", src, "before", len(data), "after", len(compressed))
			data = compressed
		}
	}

	res, err := d.finish(data, "", src)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.Set(cacheKeyImageBytes+src, data, d.cacheTTL)
	}
	return res, nil
}

func (d *Downloader) fetchRaw(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "gs://") {
		if d.reader == nil {
			return nil, fmt.Errorf("gs:// を読み込むための reader が設定されていません: %s", src)
		}
		rc, err := d.reader.Open(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s の読み込みに失敗しました: %w", domain.ErrNetwork, src, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	if safe, err := d.httpClient.IsSafeURL(src); err != nil || !safe {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}
	data, err := d.httpClient.FetchBytes(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s のダウンロードに失敗しました: %w", domain.ErrNetwork, src, err)
	}
	return data, nil
}

func (d *Downloader) finish(data []byte, mimeType, src string) (*domain.ImageResponse, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("画像ではないデータです (mime=%s): %s", mimeType, truncateSource(src))
	}
	return &domain.ImageResponse{Data: data, MimeType: mimeType, Source: src}, nil
}

// truncateSource はログやエラーに data URL 全体が入らないよう切り詰めます。
func truncateSource(src string) string {
	const limit = 64
	if len(src) <= limit {
		return src
	}
	return src[:limit] + "..."
}
