package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.RecordPost(ctx, KindPost, "defi", "a take on defi")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.RecordPost(ctx, KindComment, "https://twitter.com/a/status/1", "nice thread")
	require.NoError(t, err)

	recent, err := s.RecentPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestHasCommented(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	url := "https://twitter.com/a/status/42"

	got, err := s.HasCommented(ctx, url)
	require.NoError(t, err)
	assert.False(t, got, "fresh store should have no comment history")

	_, err = s.RecordPost(ctx, KindComment, url, "gm")
	require.NoError(t, err)

	got, err = s.HasCommented(ctx, url)
	require.NoError(t, err)
	assert.True(t, got, "comment should be remembered")

	// A post row on the same target must not count as a comment.
	other := "https://twitter.com/b/status/7"
	_, err = s.RecordPost(ctx, KindPost, other, "text")
	require.NoError(t, err)

	got, err = s.HasCommented(ctx, other)
	require.NoError(t, err)
	assert.False(t, got, "post row counted as comment")
}

func TestCountSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.RecordPost(ctx, KindPost, "", "p")
		require.NoError(t, err)
	}

	n, err := s.CountSince(ctx, KindPost, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountSince(ctx, KindPost, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "future window should be empty")

	n, err = s.CountSince(ctx, KindComment, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "no comments were recorded")
}

func TestLastPostTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts, err := s.LastPostTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero(), "empty store should report zero time")

	before := time.Now().UTC().Add(-time.Second)
	_, err = s.RecordPost(ctx, KindPost, "", "p")
	require.NoError(t, err)

	ts, err = s.LastPostTime(ctx)
	require.NoError(t, err)
	assert.False(t, ts.Before(before), "last post time %s is older than the insert", ts)
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	s.Close()
}
