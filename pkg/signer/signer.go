package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
)

// Credentials は署名に使うアクセスキーの組です。永続化はしません。
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Validate はキーが両方とも揃っているか確認します。
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.AccessKeyID) == "" {
		return fmt.Errorf("%w: access key id is required", domain.ErrConfiguration)
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		return fmt.Errorf("%w: secret access key is required", domain.ErrConfiguration)
	}
	return nil
}

// Scope はクレデンシャルスコープのサービスとリージョンです。
type Scope struct {
	Service string
	Region  string
}

// Input は1回の署名に必要な値をすべて保持します。
type Input struct {
	Credentials Credentials
	Scope       Scope
	Host        string
	Endpoint    string // scheme://host。RequestURL の組み立てに使用
	Method      string
	Path        string
	Query       string // CanonicalQuery で正規化済みのクエリ文字列
	Body        []byte
	Timestamp   time.Time
}

// Header はヘッダー名と値の組です。出力順を保つためスライスで扱います。
type Header struct {
	Name  string
	Value string
}

// Output は署名済みリクエストのヘッダーと送信先です。
type Output struct {
	Headers    []Header
	RequestURL string

	CanonicalRequest string
	StringToSign     string
	Signature        string
}

// Get は name に一致するヘッダー値を返します。
func (o *Output) Get(name string) string {
	for _, h := range o.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Apply は署名済みヘッダーを req に設定します。Host は req.Host に反映します。
func (o *Output) Apply(req *http.Request) {
	for _, h := range o.Headers {
		if h.Name == HeaderHost {
			req.Host = h.Value
			continue
		}
		req.Header.Set(h.Name, h.Value)
	}
}

// signingContext は1回の署名呼び出しで一度だけ取得した時刻から導出します。
type signingContext struct {
	service   string
	region    string
	timestamp string
	dateStamp string
}

func newSigningContext(scope Scope, t time.Time) signingContext {
	t = t.UTC()
	return signingContext{
		service:   scope.Service,
		region:    scope.Region,
		timestamp: t.Format(TimeFormat),
		dateStamp: t.Format(ShortTimeFormat),
	}
}

func (c signingContext) credentialScope() string {
	return strings.Join([]string{c.dateStamp, c.region, c.service, scopeTerminator}, "/")
}

type canonicalValues struct {
	host        string
	date        string
	payloadHash string
	contentType string
}

// signedHeaderList はサービスが要求する固定順のヘッダー定義です。
// アルファベット順ではないため、ソートしてはいけません。
var signedHeaderList = []struct {
	canonical string
	header    string
	value     func(canonicalValues) string
}{
	{"host", HeaderHost, func(v canonicalValues) string { return v.host }},
	{"x-date", HeaderDate, func(v canonicalValues) string { return v.date }},
	{"x-content-sha256", HeaderContentSHA256, func(v canonicalValues) string { return v.payloadHash }},
	{"content-type", HeaderContentType, func(v canonicalValues) string { return v.contentType }},
}

// SignedHeaders は署名対象ヘッダー名を ';' 区切りで返します。
func SignedHeaders() string {
	names := make([]string, len(signedHeaderList))
	for i, h := range signedHeaderList {
		names[i] = h.canonical
	}
	return strings.Join(names, ";")
}

func canonicalHeaders(v canonicalValues) string {
	var b strings.Builder
	for _, h := range signedHeaderList {
		b.WriteString(h.canonical)
		b.WriteByte(':')
		b.WriteString(h.value(v))
		b.WriteByte('\n')
	}
	return b.String()
}

// CanonicalQuery はキーを辞書順に並べて key=value を '&' で連結します。
// ヘッダーと違い、こちらはアルファベット順です。
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	return strings.Join(pairs, "&")
}

// SHA256Hex は data の SHA256 を16進文字列で返します。
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// deriveSigningKey は secret -> date -> region -> service -> "request" の順に HMAC を重ねます。
func deriveSigningKey(secret string, c signingContext) []byte {
	kDate := hmacSHA256([]byte(secret), c.dateStamp)
	kRegion := hmacSHA256(kDate, c.region)
	kService := hmacSHA256(kRegion, c.service)
	return hmacSHA256(kService, scopeTerminator)
}

// Sign は入力から署名済みヘッダーを計算します。時刻は in.Timestamp のみを参照する純粋関数です。
func Sign(in Input) (*Output, error) {
	if err := in.Credentials.Validate(); err != nil {
		return nil, err
	}
	if in.Host == "" {
		return nil, fmt.Errorf("%w: host is required", domain.ErrConfiguration)
	}
	if in.Scope.Service == "" || in.Scope.Region == "" {
		return nil, fmt.Errorf("%w: service and region are required", domain.ErrConfiguration)
	}

	ctx := newSigningContext(in.Scope, in.Timestamp)
	values := canonicalValues{
		host:        in.Host,
		date:        ctx.timestamp,
		payloadHash: SHA256Hex(in.Body),
		contentType: ContentTypeJSON,
	}
	signedHeaders := SignedHeaders()

	canonicalRequest := strings.Join([]string{
		in.Method,
		in.Path,
		in.Query,
		canonicalHeaders(values),
		signedHeaders,
		values.payloadHash,
	}, "\n")

	scope := ctx.credentialScope()
	stringToSign := strings.Join([]string{
		Algorithm,
		ctx.timestamp,
		scope,
		SHA256Hex([]byte(canonicalRequest)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(deriveSigningKey(in.Credentials.SecretAccessKey, ctx), stringToSign))
	authorization := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, in.Credentials.AccessKeyID, scope, signedHeaders, signature)

	headers := make([]Header, 0, len(signedHeaderList)+1)
	for _, h := range signedHeaderList {
		headers = append(headers, Header{Name: h.header, Value: h.value(values)})
	}
	headers = append(headers, Header{Name: HeaderAuthorization, Value: authorization})

	return &Output{
		Headers:          headers,
		RequestURL:       strings.TrimRight(in.Endpoint, "/") + "/?" + in.Query,
		CanonicalRequest: canonicalRequest,
		StringToSign:     stringToSign,
		Signature:        signature,
	}, nil
}

// Signer は認証情報とスコープを保持し、呼び出しごとに時刻を1回だけ取得して署名します。
// 内部状態を変更しないため、複数のゴルーチンから同時に利用できます。
type Signer struct {
	creds    Credentials
	scope    Scope
	endpoint string
	host     string
	now      func() time.Time
}

// Option は Signer の設定を変更します。
type Option func(*Signer)

// WithClock は時刻の取得元を差し替えます。テスト用です。
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// New は Signer を初期化します。認証情報が不足している場合は domain.ErrConfiguration を返します。
func New(creds Credentials, scope Scope, endpoint string, opts ...Option) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if scope.Service == "" || scope.Region == "" {
		return nil, fmt.Errorf("%w: service and region are required", domain.ErrConfiguration)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint %q", domain.ErrConfiguration, endpoint)
	}

	s := &Signer{
		creds:    creds,
		scope:    scope,
		endpoint: u.Scheme + "://" + u.Host,
		host:     u.Host,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Host は署名対象の Host ヘッダー値を返します。
func (s *Signer) Host() string {
	return s.host
}

// Sign は POST / のリクエストを署名します。
func (s *Signer) Sign(query map[string]string, body []byte) (*Output, error) {
	return Sign(Input{
		Credentials: s.creds,
		Scope:       s.scope,
		Host:        s.host,
		Endpoint:    s.endpoint,
		Method:      http.MethodPost,
		Path:        "/",
		Query:       CanonicalQuery(query),
		Body:        body,
		Timestamp:   s.now(),
	})
}
