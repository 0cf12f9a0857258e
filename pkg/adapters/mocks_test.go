package adapters

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/generator"
)

// mockImageGenerator は generator.ImageGenerator のテスト用モックなのだ。
type mockImageGenerator struct {
	images []string
	err    error
	got    []generator.GenerateRequest
}

func (m *mockImageGenerator) Generate(ctx context.Context, req generator.GenerateRequest) ([]string, error) {
	m.got = append(m.got, req)
	return m.images, m.err
}

// mockUploader は ReferenceUploader のテスト用モックなのだ。
type mockUploader struct {
	// failFor に含まれる name 接頭辞のアップロードは失敗させるのだ
	failFor map[string]bool
	names   []string
}

func (m *mockUploader) Upload(ctx context.Context, dataURL, name string) (string, error) {
	m.names = append(m.names, name)
	for prefix := range m.failFor {
		if strings.HasPrefix(name, prefix) {
			return "", fmt.Errorf("upload refused: %s", name)
		}
	}
	return "https://cdn.example.com/uploads/" + name, nil
}

// mockGeminiModel は GeminiModel のテスト用モックなのだ。
type mockGeminiModel struct {
	mu           sync.Mutex
	calls        int
	parts        [][]*genai.Part
	opts         []gemini.GenerateOptions
	generateFunc func(call int) (*gemini.Response, error)
}

func (m *mockGeminiModel) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.parts = append(m.parts, parts)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(call)
	}
	return imageResponse([]byte("img")), nil
}

// mockFetcher は ImageFetcher のテスト用モックなのだ。
type mockFetcher struct {
	images map[string]*domain.ImageResponse
}

func (m *mockFetcher) Fetch(ctx context.Context, src string) (*domain.ImageResponse, error) {
	if img, ok := m.images[src]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("not found: %s", src)
}

// mockPanelGenerator は PanelGenerator のテスト用モックなのだ。
type mockPanelGenerator struct {
	name  string
	calls int
}

func (m *mockPanelGenerator) GeneratePanel(ctx context.Context, req domain.PanelRequest) ([]string, error) {
	m.calls++
	return []string{m.name}, nil
}

func imageResponse(data []byte) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "ignored"},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
				}},
				FinishReason: genai.FinishReasonStop,
			}},
		},
	}
}
