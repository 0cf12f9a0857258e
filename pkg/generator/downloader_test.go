package generator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/imgutil"
)

const publicImageURL = "https://93.184.216.34/panel.png"

func pngBytes(t *testing.T, noisy bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	r := rand.New(rand.NewPCG(1, 2))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 200, G: 100, B: 50, A: 255}
			if noisy {
				c = color.RGBA{R: uint8(r.IntN(256)), G: uint8(r.IntN(256)), B: uint8(r.IntN(256)), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewDownloader(t *testing.T) {
	_, err := NewDownloader(nil, nil)
	assert.Error(t, err)

	d, err := NewDownloader(&mockHTTPClient{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTL, d.cacheTTL)
	assert.False(t, d.compress)
}

func TestDownloader_Fetch(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t, false)

	t.Run("data URL はそのままデコードするのだ", func(t *testing.T) {
		httpClient := &mockHTTPClient{}
		d, err := NewDownloader(httpClient, nil)
		require.NoError(t, err)

		src := imgutil.EncodeDataURL(img, "image/png")
		res, err := d.Fetch(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, img, res.Data)
		assert.Equal(t, "image/png", res.MimeType)
		assert.Equal(t, src, res.Source)
		assert.Zero(t, httpClient.fetchCount())
	})

	t.Run("http(s) は FetchBytes で取得するのだ", func(t *testing.T) {
		httpClient := &mockHTTPClient{data: img}
		d, err := NewDownloader(httpClient, nil)
		require.NoError(t, err)

		res, err := d.Fetch(ctx, publicImageURL)
		require.NoError(t, err)
		assert.Equal(t, img, res.Data)
		assert.Equal(t, "image/png", res.MimeType)
		assert.Equal(t, []string{publicImageURL}, httpClient.fetched)
	})

	t.Run("gs:// は reader で読み込むのだ", func(t *testing.T) {
		reader := &mockReader{files: map[string][]byte{"gs://bucket/ref.png": img}}
		httpClient := &mockHTTPClient{}
		d, err := NewDownloader(httpClient, reader)
		require.NoError(t, err)

		res, err := d.Fetch(ctx, "gs://bucket/ref.png")
		require.NoError(t, err)
		assert.Equal(t, img, res.Data)
		assert.Equal(t, []string{"gs://bucket/ref.png"}, reader.opened)
		assert.Zero(t, httpClient.fetchCount())
	})

	t.Run("reader がなければ gs:// はエラーなのだ", func(t *testing.T) {
		d, err := NewDownloader(&mockHTTPClient{}, nil)
		require.NoError(t, err)
		_, err = d.Fetch(ctx, "gs://bucket/ref.png")
		assert.Error(t, err)
	})

	t.Run("内部ネットワークへの取得はブロックするのだ", func(t *testing.T) {
		httpClient := &mockHTTPClient{data: img}
		d, err := NewDownloader(httpClient, nil)
		require.NoError(t, err)

		_, err = d.Fetch(ctx, "http://169.254.169.254/latest/meta-data")
		assert.Error(t, err)
		assert.Zero(t, httpClient.fetchCount())
	})

	t.Run("ループバックやプライベートIPも取得しないのだ", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("ブロックされるべきリクエストが届いたのだ")
			_, _ = w.Write(img)
		}))
		t.Cleanup(srv.Close)

		d, err := NewDownloader(httpkit.New(time.Second), nil)
		require.NoError(t, err)
		for _, src := range []string{srv.URL + "/ref.png", "http://10.0.0.8/ref.png", "ftp://93.184.216.34/ref.png"} {
			_, err = d.Fetch(ctx, src)
			assert.Error(t, err, src)
		}
	})

	t.Run("取得失敗は通信エラーなのだ", func(t *testing.T) {
		d, err := NewDownloader(&mockHTTPClient{err: errors.New("connection refused")}, nil)
		require.NoError(t, err)
		_, err = d.Fetch(ctx, publicImageURL)
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})

	t.Run("画像でないデータはエラーなのだ", func(t *testing.T) {
		d, err := NewDownloader(&mockHTTPClient{data: []byte("<html>not found</html>")}, nil)
		require.NoError(t, err)
		_, err = d.Fetch(ctx, publicImageURL)
		assert.Error(t, err)
	})

	t.Run("空の取得元はエラーなのだ", func(t *testing.T) {
		d, err := NewDownloader(&mockHTTPClient{}, nil)
		require.NoError(t, err)
		_, err = d.Fetch(ctx, "")
		assert.Error(t, err)
	})
}

func TestDownloader_Cache(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t, false)
	httpClient := &mockHTTPClient{data: img}
	cache := newMockCache()
	d, err := NewDownloader(httpClient, nil, WithCache(cache, time.Minute))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := d.Fetch(ctx, publicImageURL)
		require.NoError(t, err)
		assert.Equal(t, img, res.Data)
	}
	assert.Equal(t, 1, httpClient.fetchCount(), "2回目以降はキャッシュから返すのだ")
	assert.Equal(t, time.Minute, cache.ttl[cacheKeyImageBytes+publicImageURL])

	t.Run("不正な型のキャッシュは無視して取り直すのだ", func(t *testing.T) {
		const src = "https://93.184.216.34/other.png"
		cache.Set(cacheKeyImageBytes+src, "broken", time.Minute)
		res, err := d.Fetch(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, img, res.Data)
		assert.Equal(t, 2, httpClient.fetchCount())
	})
}

func TestDownloader_Compression(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t, true)
	d, err := NewDownloader(&mockHTTPClient{data: img}, nil, WithCompression(60))
	require.NoError(t, err)

	res, err := d.Fetch(ctx, publicImageURL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Data), len(img))
	if len(res.Data) < len(img) {
		assert.Equal(t, "image/jpeg", res.MimeType)
	} else {
		assert.Equal(t, "image/png", res.MimeType)
	}
}
