package generator

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Clock は現在時刻の取得とキャンセル可能な待機を抽象化します。
// テストでは実時間を使わない実装に差し替えます。
type Clock interface {
	Now() time.Time
	// Sleep は d だけ待機します。ctx が先に終了した場合は ctx.Err() を返します。
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

// WallClock は実時間の Clock を返します。
func WallClock() Clock {
	return wallClock{}
}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// submitThrottle は投入呼び出しの開始時刻どうしが interval 以上離れるよう待たせます。
// トークンの管理は rate.Limiter に任せ、待機だけを Clock で行います。
type submitThrottle struct {
	clock   Clock
	limiter *rate.Limiter
}

func newSubmitThrottle(clock Clock, interval time.Duration) *submitThrottle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &submitThrottle{clock: clock, limiter: rate.NewLimiter(limit, 1)}
}

// wait は投入してよい時刻まで待ち、戻った時点でトークンを1つ消費済みにします。
func (t *submitThrottle) wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := t.clock.Now()
		if t.limiter.AllowN(now, 1) {
			return nil
		}
		r := t.limiter.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		r.CancelAt(now)
		if delay <= 0 {
			delay = time.Millisecond
		}
		if err := t.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
