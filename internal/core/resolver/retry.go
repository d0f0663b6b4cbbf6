package resolver

import (
	"context"
	"errors"
	"time"

	"drug-crossref/internal/infrastructure/config"
)

const defaultInitialBackoff = time.Second

// Sleeper 等待指定時間，測試時可替換
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 可被 context 中斷的等待
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy 指數退避：1s、2s、4s、8s，最多 5 次
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxAttempts    int
	Sleep          Sleeper
}

// NewRetryPolicy 由設定建立重試策略
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		InitialBackoff: cfg.InitialBackoff,
		MaxAttempts:    cfg.MaxAttempts,
		Sleep:          SleepContext,
	}
}

// Do 執行 fn，只有 TransientError 會重試；用盡次數後回傳最後一次的錯誤
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 || attempts > config.MaxRetryAttempts {
		attempts = config.MaxRetryAttempts
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		var transient *TransientError
		if err == nil || !errors.As(err, &transient) {
			return err
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
	}
	return err
}
