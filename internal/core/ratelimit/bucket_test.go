package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBucket(t *testing.T) {
	b := NewBucket(50, 50)
	require.NotNil(t, b)

	status := b.Status()
	assert.Equal(t, 50, status.Capacity)
	assert.InDelta(t, 50, status.AvailableTokens, 0.1)
}

func TestBucket_AcquireConsumesToken(t *testing.T) {
	b := NewBucket(10, 10)
	ctx := context.Background()

	err := b.Acquire(ctx)
	require.NoError(t, err)

	status := b.Status()
	assert.InDelta(t, 9, status.AvailableTokens, 0.1)
}

func TestBucket_ExhaustionBlocksNextAcquire(t *testing.T) {
	// 容量2・補充6000/分（毎秒100トークン）のバケットで3回目の取得は
	// 少なくとも 1/refillRate = 10ms 待機するはず
	b := NewBucket(2, 6000)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))

	start := time.Now()
	require.NoError(t, b.Acquire(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 9*time.Millisecond, "should wait for at least one refill interval")
}

func TestBucket_ContextCancellation(t *testing.T) {
	// 補充が極端に遅いバケットでキャンセルが効くことを確認
	b := NewBucket(1, 1)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBucket_LazyRefillCappedAtCapacity(t *testing.T) {
	b := NewBucket(5, 300)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Acquire(ctx))
	}

	// 時刻を進める（テスト用に内部状態を操作）
	b.mu.Lock()
	b.lastRefill = time.Now().Add(-10 * time.Minute)
	b.mu.Unlock()

	// 10分経過していても容量を超えて補充されないこと
	status := b.Status()
	assert.InDelta(t, 5, status.AvailableTokens, 0.1)
}

func TestBucket_ConcurrentAcquire(t *testing.T) {
	b := NewBucket(10, 6000)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Acquire(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
