package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bucket はトークンバケット方式のレートリミッターです。
// 生成系・Embedding系など、外部AI APIの能力ごとに1つずつ作成して共有します。
// トークンの補充はバックグラウンドタイマーではなく、Acquire時に経過時間から
// 遅延計算します（容量でキャップ）。
type Bucket struct {
	mu sync.Mutex

	// capacity はバケットの最大トークン数
	capacity float64

	// refillPerSec は1秒あたりのトークン補充量
	refillPerSec float64

	// tokens は現在のトークン数（端数を持つ）
	tokens float64

	// lastRefill は最後に補充計算を行った時刻
	lastRefill time.Time
}

// NewBucket は新しいBucketを作成する
// refillPerMinute は1分あたりの補充量（例: 生成系 50、Embedding系 100）
func NewBucket(capacity int, refillPerMinute float64) *Bucket {
	return &Bucket{
		capacity:     float64(capacity),
		refillPerSec: refillPerMinute / 60.0,
		tokens:       float64(capacity),
		lastRefill:   time.Now(),
	}
}

// Acquire はトークンが1つ確保できるまで待機し、確保したら消費する
// contextがキャンセルされた場合は待機を中断してエラーを返す
func (b *Bucket) Acquire(ctx context.Context) error {
	b.mu.Lock()
	for {
		b.refill()

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		// 次の1トークンが補充されるまでの時間を計算して待つ
		wait := time.Duration((1 - b.tokens) / b.refillPerSec * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		// 待機中に他のゴルーチンがトークンを消費している可能性があるため再確認
		b.mu.Lock()
	}
}

// refill は経過時間からトークンを補充する（内部用）
// 呼び出し側でロックを取得していることを前提とする
func (b *Bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillPerSec)
	b.lastRefill = now
}

// Status は現在の状態を返す（デバッグ・監視用）
func (b *Bucket) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	return Status{
		Capacity:        int(b.capacity),
		AvailableTokens: b.tokens,
	}
}

// Status はレートリミッターの状態
type Status struct {
	Capacity        int
	AvailableTokens float64
}

// String はステータスを文字列表現で返す
func (s Status) String() string {
	return fmt.Sprintf("RateLimiter: capacity=%d, available=%.2f", s.Capacity, s.AvailableTokens)
}
