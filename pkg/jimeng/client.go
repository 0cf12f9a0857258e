package jimeng

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/signer"
	"github.com/shouni/jimeng-image-kit/pkg/utils"
)

const tracerName = "github.com/shouni/jimeng-image-kit/pkg/jimeng"

// RequestSigner はリクエストボディに署名するコンポーネントです。*signer.Signer が満たします。
type RequestSigner interface {
	Sign(query map[string]string, body []byte) (*signer.Output, error)
}

// Client は即梦 API へのタスク投入と結果照会を行います。
type Client struct {
	signer     RequestSigner
	httpClient httpkit.ClientInterface
	reqKey     string
	version    string
	returnURL  bool
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option は Client の設定を変更します。
type Option func(*Client)

// WithReqKey はモデル識別子 (req_key) を差し替えます。
func WithReqKey(reqKey string) Option {
	return func(c *Client) {
		if reqKey != "" {
			c.reqKey = reqKey
		}
	}
}

// WithReturnURL は結果を URL で受け取るかどうかを設定します。false なら base64 で返されます。
func WithReturnURL(returnURL bool) Option {
	return func(c *Client) { c.returnURL = returnURL }
}

// WithLogger はロガーを差し替えます。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient は依存関係を注入して Client を初期化します。
// 送信には httpClient.Do だけを使い、1回の呼び出しで送るリクエストは1回です。
// 照会の再試行はオーケストレーターのポーリングが担います。
func NewClient(s RequestSigner, httpClient httpkit.ClientInterface, opts ...Option) (*Client, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: signer is required", domain.ErrConfiguration)
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}

	c := &Client{
		signer:     s,
		httpClient: httpClient,
		reqKey:     DefaultReqKey,
		version:    APIVersion,
		returnURL:  true,
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit は生成タスクを投入し、task_id を返します。
func (c *Client) Submit(ctx context.Context, params SubmitParams) (string, error) {
	ctx, span := c.tracer.Start(ctx, "jimeng.submit", trace.WithAttributes(
		attribute.Bool("jimeng.image_to_image", params.IsImageToImage()),
		attribute.Int("jimeng.reference_count", len(params.ImageURLs)),
	))
	defer span.End()

	var resp submitResponse
	if err := c.call(ctx, ActionSubmit, newSubmitBody(c.reqKey, params), &resp); err != nil {
		recordError(span, err)
		return "", err
	}
	if resp.Code != domain.SuccessCode {
		err := &domain.ProviderError{Action: ActionSubmit, StatusCode: http.StatusOK, Code: resp.Code, Message: resp.Message}
		recordError(span, err)
		return "", err
	}
	if resp.Data == nil || resp.Data.TaskID == "" {
		err := &domain.ProviderError{Action: ActionSubmit, StatusCode: http.StatusOK, Code: resp.Code, Message: "response carried no task_id"}
		recordError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("jimeng.task_id", resp.Data.TaskID))
	c.logger.InfoContext(ctx, "即梦タスクを投入しました", "task_id", resp.Data.TaskID, "request_id", resp.RequestID)
	return resp.Data.TaskID, nil
}

// GetResult はタスクの状態を1回照会します。
func (c *Client) GetResult(ctx context.Context, taskID string) (*TaskResult, error) {
	ctx, span := c.tracer.Start(ctx, "jimeng.get_result", trace.WithAttributes(
		attribute.String("jimeng.task_id", taskID),
	))
	defer span.End()

	body := resultBody{ReqKey: c.reqKey, TaskID: taskID}
	if c.returnURL {
		opts, err := json.Marshal(resultOptions{ReturnURL: true, LogoInfo: logoInfo{AddLogo: false}})
		if err != nil {
			return nil, fmt.Errorf("req_json のエンコードに失敗しました: %w", err)
		}
		body.ReqJSON = string(opts)
	}

	var resp resultResponse
	if err := c.call(ctx, ActionGetResult, body, &resp); err != nil {
		recordError(span, err)
		return nil, err
	}
	if resp.Code != domain.SuccessCode {
		err := &domain.ProviderError{Action: ActionGetResult, StatusCode: http.StatusOK, Code: resp.Code, Message: resp.Message}
		recordError(span, err)
		return nil, err
	}

	result := &TaskResult{TaskID: taskID, Message: resp.Message}
	if resp.Data != nil {
		result.Status = resp.Data.Status
		result.BinaryDataBase64 = resp.Data.BinaryDataBase64
		for _, u := range resp.Data.ImageURLs {
			result.ImageURLs = append(result.ImageURLs, utils.UnescapeAmpersand(u))
		}
	}
	span.SetAttributes(attribute.String("jimeng.status", result.Status))
	return result, nil
}

// call は body を JSON 化して署名し、POST した結果を out にデコードします。
func (c *Client) call(ctx context.Context, action string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	signed, err := c.signer.Sign(map[string]string{"Action": action, "Version": c.version}, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signed.RequestURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	signed.Apply(req)

	c.logger.DebugContext(ctx, "即梦APIを呼び出します", "action", action, "url", signed.RequestURL)

	// DoRequest は内部で再試行するので使わない
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrNetwork, action, err)
	}

	raw, err := httpkit.HandleResponse(resp)
	if err != nil {
		var nr *httpkit.NonRetryableHTTPError
		if errors.As(err, &nr) {
			return statusError(action, nr)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrNetwork, action, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: レスポンスの解析に失敗しました: %w", domain.ErrNetwork, action, err)
	}
	return nil
}

// statusError は 2xx/5xx 以外の応答を ProviderError に変換します。
// ボディに code があればそれを、ゲートウェイの ResponseMetadata.Error があればその内容を使います。
func statusError(action string, nr *httpkit.NonRetryableHTTPError) error {
	pe := &domain.ProviderError{Action: action, StatusCode: nr.StatusCode}

	var body errorResponse
	if err := json.Unmarshal(nr.Body, &body); err == nil {
		switch {
		case body.Code != 0:
			pe.Code = body.Code
			pe.Message = body.Message
		case body.ResponseMetadata != nil && body.ResponseMetadata.Error != nil:
			pe.Message = body.ResponseMetadata.Error.Code + ": " + body.ResponseMetadata.Error.Message
		}
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("HTTP %d", nr.StatusCode)
	}
	return pe
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
