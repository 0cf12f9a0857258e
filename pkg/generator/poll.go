package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/jimeng-image-kit/pkg/domain"
	"github.com/shouni/jimeng-image-kit/pkg/jimeng"
	"github.com/shouni/jimeng-image-kit/pkg/utils"
)

// classifyStatus はプロバイダーの状態文字列をタスク状態に対応付けます。
// 未知の文字列は Running として扱い、known=false を返します。
func classifyStatus(status string) (state TaskState, known bool) {
	switch status {
	case jimeng.StatusDone, jimeng.StatusSuccess:
		return StateDone, true
	case jimeng.StatusFailed:
		return StateFailed, true
	case jimeng.StatusProcessing, jimeng.StatusRunning:
		return StateRunning, true
	default:
		return StateRunning, false
	}
}

// resultImages は照会結果から画像を取り出します。base64 があればそちらを優先します。
func resultImages(res *jimeng.TaskResult) []string {
	if len(res.BinaryDataBase64) > 0 {
		out := make([]string, 0, len(res.BinaryDataBase64))
		for _, b64 := range res.BinaryDataBase64 {
			out = append(out, "data:image/png;base64,"+b64)
		}
		return out
	}
	out := make([]string, 0, len(res.ImageURLs))
	for _, u := range res.ImageURLs {
		out = append(out, utils.UnescapeAmpersand(u))
	}
	return out
}

// poll は MaxPollAttempts 回を上限にタスクを照会し、終端状態か上限到達まで状態を進めます。
// 通信エラーは同じ上限の範囲で再試行し、プロバイダーの失敗は再試行しません。
// ctx が終了した場合はタスクを放棄して戻ります。
func (o *Orchestrator) poll(ctx context.Context, logger *slog.Logger, job *BatchJob, task *Task) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxPollAttempts; attempt++ {
		res, err := o.client.GetResult(ctx, task.ID)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil && domain.IsTransient(err):
			lastErr = err
			logger.WarnContext(ctx, "即梦タスクの照会に失敗しました。再試行します", "attempt", attempt, "error", err)
		case err != nil:
			task.fail(fmt.Errorf("照会に失敗しました: %w", err))
			logger.ErrorContext(ctx, "即梦タスクの照会でエラーが返されました", "attempt", attempt, "error", err)
			return
		default:
			state, known := classifyStatus(res.Status)
			switch state {
			case StateDone:
				images := resultImages(res)
				if len(images) == 0 {
					task.fail(fmt.Errorf("%w: task succeeded but returned no images", domain.ErrTaskFailed))
					logger.ErrorContext(ctx, "即梦タスクは成功しましたが画像がありません")
					return
				}
				task.State = StateDone
				task.Images = images
				job.collect(images)
				logger.InfoContext(ctx, "即梦タスクが完了しました", "attempt", attempt, "images", len(images))
				return
			case StateFailed:
				msg := res.Message
				if msg == "" {
					msg = "unknown error"
				}
				task.fail(fmt.Errorf("%w: %s", domain.ErrTaskFailed, msg))
				logger.ErrorContext(ctx, "即梦タスクが失敗しました", "message", msg)
				return
			default:
				// TODO: 未知の状態が続く場合に早期に失敗させるかは、プロバイダー側の状態一覧が確定してから決める
				if !known {
					logger.WarnContext(ctx, "即梦タスクの状態が不明です。処理中として待機します", "status", res.Status, "attempt", attempt)
				}
				task.State = StateRunning
			}
		}

		if attempt == o.cfg.MaxPollAttempts {
			break
		}
		if err := o.clock.Sleep(ctx, o.cfg.PollInterval); err != nil {
			return
		}
	}

	if lastErr != nil {
		task.fail(fmt.Errorf("%w after %d attempts: %w", domain.ErrTaskTimeout, o.cfg.MaxPollAttempts, lastErr))
	} else {
		task.fail(fmt.Errorf("%w after %d attempts", domain.ErrTaskTimeout, o.cfg.MaxPollAttempts))
	}
	logger.ErrorContext(ctx, "即梦タスクの照会がタイムアウトしました", "attempts", o.cfg.MaxPollAttempts)
}
