package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxRetries はデフォルトの最大リトライ回数
	DefaultMaxRetries = 5

	// DefaultInitialDelay はリトライ間隔の初期値
	DefaultInitialDelay = 8 * time.Second

	// DefaultMaxDelay はリトライ間隔の上限
	DefaultMaxDelay = 80 * time.Second

	// DefaultBackoffFactor はリトライごとの間隔倍率
	DefaultBackoffFactor = 2.0
)

// Config はリトライポリシーの設定
type Config struct {
	// MaxRetries は初回試行を除いたリトライ回数の上限
	MaxRetries int
	// InitialDelay は最初のリトライまでの待機時間
	InitialDelay time.Duration
	// MaxDelay は待機時間の上限
	MaxDelay time.Duration
	// BackoffFactor はリトライごとに待機時間へ掛ける倍率
	BackoffFactor float64
}

// DefaultConfig はデフォルトのリトライ設定を返す
func DefaultConfig() Config {
	return Config{
		MaxRetries:    DefaultMaxRetries,
		InitialDelay:  DefaultInitialDelay,
		MaxDelay:      DefaultMaxDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Limiter は試行前に取得するレートリミッターのインターフェース
type Limiter interface {
	Acquire(ctx context.Context) error
}

// StatusError はHTTPステータスコードを伴う上流エラー
// 各インフラアダプタが上流SDKのエラーをこの型に写像する
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error はエラーメッセージを返す
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error (status %d)", e.StatusCode)
}

// Unwrap はラップされた元エラーを返す
func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsRetryable はエラーがリトライ対象かどうかを判定する
// ステータス429、または500〜599のみリトライ対象とする
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	if statusErr.StatusCode == 429 {
		return true
	}
	return statusErr.StatusCode >= 500 && statusErr.StatusCode < 600
}

// Do は操作を有界な指数バックオフ付きで実行する
// 各試行の前に limiter.Acquire でトークンを取得する。リトライ対象外の
// エラーは即座に伝播し、リトライ回数を使い切った場合は最後のエラーを返す
func Do[T any](ctx context.Context, limiter Limiter, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Acquire(ctx); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == cfg.MaxRetries {
			return zero, err
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}

// sleep はcontextのキャンセルを考慮して待機する
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
