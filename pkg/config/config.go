// Package config は環境変数と .env ファイルから設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/jimeng-image-kit/pkg/adapters"
	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/generator"
	"github.com/shouni/jimeng-image-kit/pkg/jimeng"
	"github.com/shouni/jimeng-image-kit/pkg/signer"
)

const (
	EnvAccessKeyID       = "JIMENG_ACCESS_KEY_ID"
	EnvSecretAccessKey   = "JIMENG_SECRET_ACCESS_KEY"
	EnvEndpoint          = "JIMENG_ENDPOINT"
	EnvReqKey            = "JIMENG_REQ_KEY"
	EnvMaxConcurrent     = "JIMENG_MAX_CONCURRENT"
	EnvMinSubmitInterval = "JIMENG_MIN_SUBMIT_INTERVAL"
	EnvPollInterval      = "JIMENG_POLL_INTERVAL"
	EnvMaxPollAttempts   = "JIMENG_MAX_POLL_ATTEMPTS"
	EnvGeminiModel       = "GEMINI_IMAGE_MODEL"
)

// Config はキット全体の設定です。各コンストラクタにはここから値を渡します。
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	ReqKey          string

	MaxConcurrent     int
	MinSubmitInterval time.Duration
	PollInterval      time.Duration
	MaxPollAttempts   int

	GeminiModel string
}

// Load は envFiles を順に読み込んだうえで環境変数から Config を組み立てます。
// 存在しないファイルは無視し、既に設定済みの環境変数は上書きしません。
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s の読み込みに失敗しました: %w", domain.ErrConfiguration, f, err)
		}
	}

	c := Config{
		AccessKeyID:     get(EnvAccessKeyID, ""),
		SecretAccessKey: get(EnvSecretAccessKey, ""),
		Endpoint:        get(EnvEndpoint, jimeng.DefaultEndpoint),
		ReqKey:          get(EnvReqKey, jimeng.DefaultReqKey),
		GeminiModel:     get(EnvGeminiModel, adapters.DefaultGeminiModel),
	}

	var err error
	if c.MaxConcurrent, err = getInt(EnvMaxConcurrent, generator.DefaultMaxConcurrent); err != nil {
		return Config{}, err
	}
	if c.MaxPollAttempts, err = getInt(EnvMaxPollAttempts, generator.DefaultMaxPollAttempts); err != nil {
		return Config{}, err
	}
	if c.MinSubmitInterval, err = getDuration(EnvMinSubmitInterval, generator.DefaultMinSubmitInterval); err != nil {
		return Config{}, err
	}
	if c.PollInterval, err = getDuration(EnvPollInterval, generator.DefaultPollInterval); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Credentials は署名用の認証情報を返します。
func (c Config) Credentials() signer.Credentials {
	return signer.Credentials{AccessKeyID: c.AccessKeyID, SecretAccessKey: c.SecretAccessKey}
}

// Scope は即梦 API の署名スコープを返します。
func (c Config) Scope() signer.Scope {
	return signer.Scope{Service: jimeng.Service, Region: jimeng.Region}
}

// Orchestrator はオーケストレーターの設定を返します。
func (c Config) Orchestrator() generator.Config {
	return generator.Config{
		MaxConcurrent:     c.MaxConcurrent,
		MinSubmitInterval: c.MinSubmitInterval,
		PollInterval:      c.PollInterval,
		MaxPollAttempts:   c.MaxPollAttempts,
	}
}

// NewSigner は設定から即梦用の Signer を作成します。認証情報が不足していれば domain.ErrConfiguration です。
func (c Config) NewSigner() (*signer.Signer, error) {
	return signer.New(c.Credentials(), c.Scope(), c.Endpoint)
}

// NewJimengClient は設定の認証情報と req_key で即梦クライアントを作成します。
func (c Config) NewJimengClient(httpClient httpkit.ClientInterface, opts ...jimeng.Option) (*jimeng.Client, error) {
	s, err := c.NewSigner()
	if err != nil {
		return nil, err
	}
	opts = append([]jimeng.Option{jimeng.WithReqKey(c.ReqKey)}, opts...)
	return jimeng.NewClient(s, httpClient, opts...)
}

// get は環境変数 k の値を返します。未設定なら def です。
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s は正の整数で指定してください: %q", domain.ErrConfiguration, k, v)
	}
	return n, nil
}

// getDuration は "1s" や "500ms" 形式の値を読みます。
func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s は時間の形式 (例: 1s) で指定してください: %q", domain.ErrConfiguration, k, v)
	}
	return d, nil
}
