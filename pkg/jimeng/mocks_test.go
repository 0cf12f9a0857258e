package jimeng

import (
	"context"
	"net/http"
	"sync"
)

// fakeHTTPClient は httpkit.ClientInterface を実装し、通信せずに doErr を返すのだ。
// 実際の送受信を確かめるテストでは httpkit.New のクライアントを使うのだ。
type fakeHTTPClient struct {
	doErr error

	mu    sync.Mutex
	calls int
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil, f.doErr
}

// DoRequest は Client から呼ばれてはいけないのだ
func (f *fakeHTTPClient) DoRequest(req *http.Request) ([]byte, error) {
	panic("DoRequest must not be used: it retries internally")
}

// インターフェースを満たすための空実装群なのだ
func (f *fakeHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}

func (f *fakeHTTPClient) FetchAndDecodeJSON(ctx context.Context, url string, v any) error {
	return nil
}

func (f *fakeHTTPClient) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	return nil, nil
}

func (f *fakeHTTPClient) PostRawBodyAndFetchBytes(ctx context.Context, url string, body []byte, contentType string) ([]byte, error) {
	return nil, nil
}

func (f *fakeHTTPClient) IsSafeURL(urlStr string) (bool, error) { return true, nil }

func (f *fakeHTTPClient) IsSecureServiceURL(serviceURL string) bool { return true }
