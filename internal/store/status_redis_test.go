package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatus(t *testing.T) {
	st := decodeStatus(map[string]string{
		"status":   "success",
		"progress": "100",
		"message":  "Worksheet ready.",
		"start":    "2026-01-02T03:04:05.123Z",
		"end":      "not a time",
		"metadata": `{"result_ref":"file://results/a_worksheet.json","sections_kept":3}`,
	})
	assert.Equal(t, StateSuccess, st.Status)
	assert.Equal(t, 100, st.Progress)
	require.NotNil(t, st.Start)
	assert.Equal(t, 123*time.Millisecond, time.Duration(st.Start.Nanosecond()))
	assert.Nil(t, st.End)
	assert.Equal(t, "file://results/a_worksheet.json", st.MetaString("result_ref"))
	assert.EqualValues(t, 3, st.Metadata["sections_kept"])
	assert.True(t, st.Done())

	st = decodeStatus(map[string]string{"status": "queued", "progress": "x"})
	assert.Zero(t, st.Progress)
	assert.False(t, st.Done())
	assert.Empty(t, st.MetaString("result_ref"))
}

// Runs against a real Redis when REDIS_TEST_URL is set.
func TestRedisStatusRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	s, err := NewRedisStatus(url)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id := uuid.NewString()
	_, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Now().UTC()
	require.NoError(t, s.Set(ctx, id, Status{Status: StateQueued, Start: &start, Metadata: map[string]any{"dataset": "ww3"}}))
	require.NoError(t, s.Set(ctx, id, Status{Status: StateProcessing, Progress: 10}))

	got, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateProcessing, got.Status)
	assert.Equal(t, "ww3", got.MetaString("dataset"), "nil metadata leaves stored value")
	require.NotNil(t, got.Start)
	assert.True(t, start.Equal(*got.Start))

	ttl, err := s.client.TTL(ctx, s.key(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
