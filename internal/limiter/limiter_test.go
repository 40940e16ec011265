package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBucketsByWindow(t *testing.T) {
	w := New(nil, Options{Limit: 3, Window: time.Minute})
	t0 := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)

	assert.Equal(t, w.key("10.0.0.1", t0), w.key("10.0.0.1", t0.Add(59*time.Second)))
	assert.NotEqual(t, w.key("10.0.0.1", t0), w.key("10.0.0.1", t0.Add(time.Minute)))
	assert.Contains(t, w.key("ABC", t0), "rl:generate:abc:")
}

func TestDisabledLimitAdmitsWithoutRedis(t *testing.T) {
	w := New(nil, Options{})
	ok, err := w.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}
