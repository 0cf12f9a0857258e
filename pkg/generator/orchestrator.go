package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/jimeng"
	"github.com/shouni/jimeng-image-kit/pkg/utils"
)

const (
	DefaultMaxConcurrent     = 5
	DefaultMinSubmitInterval = time.Second
	DefaultPollInterval      = 3 * time.Second
	DefaultMaxPollAttempts   = 60 // 約2分
)

// Config はバッチの投入制限とポーリング設定です。
type Config struct {
	MaxConcurrent     int
	MinSubmitInterval time.Duration
	PollInterval      time.Duration
	MaxPollAttempts   int
}

// DefaultConfig はデフォルト値の Config を返します。
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     DefaultMaxConcurrent,
		MinSubmitInterval: DefaultMinSubmitInterval,
		PollInterval:      DefaultPollInterval,
		MaxPollAttempts:   DefaultMaxPollAttempts,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MinSubmitInterval < 0 {
		c.MinSubmitInterval = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = DefaultMaxPollAttempts
	}
	return c
}

// GenerateRequest は1回のバッチ生成要求です。
type GenerateRequest struct {
	Prompt        string
	ReferenceURLs []string
	Count         int // 0 以下なら何も投入せず domain.ErrAllTasksFailed になる
	AspectRatio   string
	Scale         *float64 // 以图生图の変化量。nil なら jimeng.DefaultScale
	Seed          *int64   // 文生图のシード。nil ならタスクごとにランダム
}

// Orchestrator は投入→ポーリングのワークフローを、投入間隔と同時実行数の上限を守って実行します。
type Orchestrator struct {
	client TaskClient
	cfg    Config
	clock  Clock
	logger *slog.Logger
	seeds  func() int64
}

// Option は Orchestrator の設定を変更します。
type Option func(*Orchestrator)

// WithClock は時刻と待機の実装を差し替えます。
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger はロガーを差し替えます。
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSeedSource は文生图のシード採番を差し替えます。
func WithSeedSource(f func() int64) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.seeds = f
		}
	}
}

// NewOrchestrator は依存関係を注入して Orchestrator を初期化します。
func NewOrchestrator(client TaskClient, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("client (TaskClient) is required")
	}
	o := &Orchestrator{
		client: client,
		cfg:    cfg.withDefaults(),
		clock:  WallClock(),
		logger: slog.Default(),
		seeds:  func() int64 { return rand.Int64N(jimeng.MaxRandomSeed) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Generate はバッチを実行し、成功したタスクの画像 (URL または data URL) を完了順に返します。
// すべてのタスクが失敗した場合は domain.ErrAllTasksFailed を返します。
// ctx がキャンセルされた場合はエラーにせず、それまでに得られた結果を返します。
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	job, err := o.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return job.Images(), nil
}

// Run はバッチを実行し、タスクごとの結果を含む BatchJob を返します。
func (o *Orchestrator) Run(ctx context.Context, req GenerateRequest) (*BatchJob, error) {
	count := max(req.Count, 0)

	job := &BatchJob{
		ID:                uuid.NewString(),
		RequestedCount:    count,
		MaxConcurrent:     o.cfg.MaxConcurrent,
		MinSubmitInterval: o.cfg.MinSubmitInterval,
		Tasks:             make([]*Task, 0, count),
	}
	logger := o.logger.With("batch_id", job.ID)
	logger.InfoContext(ctx, "即梦バッチを開始します",
		"count", count, "references", len(req.ReferenceURLs), "max_concurrent", o.cfg.MaxConcurrent)

	dims := jimeng.DimensionsFor(req.AspectRatio)
	slots := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	throttle := newSubmitThrottle(o.clock, o.cfg.MinSubmitInterval)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		if err := slots.Acquire(ctx, 1); err != nil {
			break
		}
		if err := throttle.wait(ctx); err != nil {
			slots.Release(1)
			break
		}

		task := &Task{Index: i}
		params := o.submitParams(ctx, logger, req, dims)
		id, err := o.client.Submit(ctx, params)
		if err != nil {
			slots.Release(1)
			if ctx.Err() != nil {
				break
			}
			task.fail(fmt.Errorf("投入に失敗しました: %w", err))
			job.Tasks = append(job.Tasks, task)
			logger.WarnContext(ctx, "即梦タスクの投入に失敗しました", "index", i, "error", err)
			continue
		}

		task.ID = id
		task.SubmittedAt = o.clock.Now()
		task.State = StatePending
		job.Tasks = append(job.Tasks, task)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer slots.Release(1)
			o.poll(ctx, logger.With("task_id", task.ID, "index", task.Index), job, task)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		job.Cancelled = true
		logger.InfoContext(ctx, "即梦バッチはキャンセルされました", "done", job.SuccessCount(), "submitted", len(job.Tasks))
		return job, nil
	}
	if job.SuccessCount() == 0 {
		if cause := errors.Join(job.taskErrors()...); cause != nil {
			return nil, fmt.Errorf("%w (%d tasks): %w", domain.ErrAllTasksFailed, count, cause)
		}
		return nil, fmt.Errorf("%w (%d tasks)", domain.ErrAllTasksFailed, count)
	}

	logger.InfoContext(ctx, "即梦バッチが完了しました", "done", job.SuccessCount(), "requested", count)
	return job, nil
}

func (o *Orchestrator) submitParams(ctx context.Context, logger *slog.Logger, req GenerateRequest, dims jimeng.Dimensions) jimeng.SubmitParams {
	params := jimeng.SubmitParams{
		Prompt: req.Prompt,
		Width:  dims.Width,
		Height: dims.Height,
	}
	if len(req.ReferenceURLs) > 0 {
		params.ImageURLs = req.ReferenceURLs
		params.Scale = jimeng.ClampScale(req.Scale)
		if req.Scale != nil && *req.Scale != params.Scale {
			logger.WarnContext(ctx, "scale が範囲 [0, 1] 外のため調整しました", "requested", *req.Scale, "applied", params.Scale)
		}
		return params
	}
	if req.Seed != nil {
		params.Seed = utils.DereferenceSeed(req.Seed)
	} else {
		params.Seed = o.seeds()
	}
	return params
}
