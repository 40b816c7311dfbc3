package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{6, 60 * time.Second}, // 2^6=64, capped at 60s
		{10, 60 * time.Second},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, backoffFor(tc.retryCount, 60*time.Second))
	}

	// Нулевой maxBackoff означает значение по умолчанию 60s.
	assert.Equal(t, 60*time.Second, backoffFor(10, 0))
}

func TestRetryCountOf(t *testing.T) {
	assert.Equal(t, 0, retryCountOf(nil))
	assert.Equal(t, 2, retryCountOf(map[string]any{HeaderRetryCount: int32(2)}))
	assert.Equal(t, 3, retryCountOf(map[string]any{HeaderRetryCount: int64(3)}))
	assert.Equal(t, 0, retryCountOf(map[string]any{"other": "value"}))
}
