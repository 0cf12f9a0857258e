package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/jimeng"
)

// --- Clock Mock ---

// fakeClock は Sleep のたびに仮想時刻を進めるだけの Clock なのだ。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.mu.Unlock()
	runtime.Gosched()
	return ctx.Err()
}

// --- TaskClient Mock ---

// resultFunc はタスクIDと照会回数 (1始まり) から照会結果を決めるのだ。
type resultFunc func(taskID string, n int) (*jimeng.TaskResult, error)

type fakeTaskClient struct {
	clock Clock

	// submitErr が index (0始まり) に対して非nilを返すと投入に失敗させるのだ。
	submitErr func(index int) error
	result    resultFunc
	// onSubmit は投入の直後、ロック外で呼ばれるのだ。
	onSubmit func(index int)

	mu          sync.Mutex
	submits     []jimeng.SubmitParams
	submitTimes []time.Time
	polls       map[string]int
	inflight    int
	peak        int
	finished    map[string]bool
}

func newFakeTaskClient(clock Clock, result resultFunc) *fakeTaskClient {
	return &fakeTaskClient{
		clock:    clock,
		result:   result,
		polls:    make(map[string]int),
		finished: make(map[string]bool),
	}
}

func (f *fakeTaskClient) Submit(ctx context.Context, params jimeng.SubmitParams) (string, error) {
	f.mu.Lock()
	index := len(f.submits)
	f.submits = append(f.submits, params)
	f.submitTimes = append(f.submitTimes, f.clock.Now())
	var err error
	if f.submitErr != nil {
		err = f.submitErr(index)
	}
	if err == nil {
		f.inflight++
		if f.inflight > f.peak {
			f.peak = f.inflight
		}
	}
	f.mu.Unlock()

	if f.onSubmit != nil {
		f.onSubmit(index)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("task-%d", index+1), nil
}

func (f *fakeTaskClient) GetResult(ctx context.Context, taskID string) (*jimeng.TaskResult, error) {
	f.mu.Lock()
	f.polls[taskID]++
	n := f.polls[taskID]
	f.mu.Unlock()

	res, err := f.result(taskID, n)

	// 終端の結果を返したタスクは実行中から外すのだ。
	if err == nil && res != nil {
		if state, _ := classifyStatus(res.Status); state.IsTerminal() {
			f.release(taskID)
		}
	} else if err != nil && !domain.IsTransient(err) {
		f.release(taskID)
	}
	return res, err
}

func (f *fakeTaskClient) release(taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.finished[taskID] {
		f.finished[taskID] = true
		f.inflight--
	}
}

func (f *fakeTaskClient) snapshot() (submits []jimeng.SubmitParams, times []time.Time, peak int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jimeng.SubmitParams(nil), f.submits...), append([]time.Time(nil), f.submitTimes...), f.peak
}

func (f *fakeTaskClient) pollCount(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[taskID]
}

func (f *fakeTaskClient) state() (submitted, inflight int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits), f.inflight
}

// doneWithURL は1枚のURLを返す成功結果なのだ。
func doneWithURL(taskID string) *jimeng.TaskResult {
	return &jimeng.TaskResult{
		TaskID:    taskID,
		Status:    jimeng.StatusDone,
		ImageURLs: []string{"https://cdn.example.com/" + taskID + ".png"},
	}
}

// --- ImageCacher Mock ---

type mockCache struct {
	mu   sync.Mutex
	data map[string]any
	ttl  map[string]time.Duration
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]any), ttl: make(map[string]time.Duration)}
}

func (m *mockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(key string, value any, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl[key] = d
}

// --- httpkit.ClientInterface Mock ---

type mockHTTPClient struct {
	mu      sync.Mutex
	data    []byte
	err     error
	fetched []string
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, url)
	return m.data, m.err
}

func (m *mockHTTPClient) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetched)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) { return nil, m.err }

func (m *mockHTTPClient) DoRequest(req *http.Request) ([]byte, error) { return nil, nil }

// IsSafeURL は本物の httpkit クライアントの判定をそのまま使うのだ
func (m *mockHTTPClient) IsSafeURL(urlStr string) (bool, error) {
	return httpkit.New(time.Second).IsSafeURL(urlStr)
}

func (m *mockHTTPClient) IsSecureServiceURL(serviceURL string) bool {
	return httpkit.New(time.Second).IsSecureServiceURL(serviceURL)
}

func (m *mockHTTPClient) FetchAndDecodeJSON(ctx context.Context, url string, v any) error {
	return nil
}

func (m *mockHTTPClient) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	return nil, nil
}

func (m *mockHTTPClient) PostRawBodyAndFetchBytes(ctx context.Context, url string, body []byte, contentType string) ([]byte, error) {
	return nil, nil
}

// --- remoteio.InputReader Mock ---

type mockReader struct {
	files  map[string][]byte
	opened []string
}

func (m *mockReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	m.opened = append(m.opened, uri)
	data, ok := m.files[uri]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", uri)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockReader) List(ctx context.Context, uri string, fn func(string) error) error {
	for name := range m.files {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}
