package github

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repogpt/internal/core/retry"
)

func TestWrapError(t *testing.T) {
	t.Run("APIエラーはステータスコード付きエラーへ変換される", func(t *testing.T) {
		src := &gh.ErrorResponse{
			Response: &http.Response{StatusCode: http.StatusBadGateway},
			Message:  "upstream failure",
		}

		wrapped := wrapError(fmt.Errorf("取得に失敗: %w", src))

		var statusErr *retry.StatusError
		require.ErrorAs(t, wrapped, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.True(t, retry.IsRetryable(wrapped))
	})

	t.Run("レート制限エラーは429として扱われる", func(t *testing.T) {
		src := &gh.RateLimitError{Message: "rate limit exceeded"}

		wrapped := wrapError(src)

		var statusErr *retry.StatusError
		require.ErrorAs(t, wrapped, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
		assert.True(t, retry.IsRetryable(wrapped))
	})

	t.Run("404はリトライ対象にならない", func(t *testing.T) {
		src := &gh.ErrorResponse{
			Response: &http.Response{StatusCode: http.StatusNotFound},
			Message:  "not found",
		}

		wrapped := wrapError(src)

		assert.False(t, retry.IsRetryable(wrapped))
	})

	t.Run("API以外のエラーはそのまま返す", func(t *testing.T) {
		src := errors.New("network down")

		assert.Same(t, src, wrapError(src))
	})
}
