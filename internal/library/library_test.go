package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipwatch/clipwatch/internal/session"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "clips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func record(path string, start time.Time, seconds float64, size int64) *session.ClipRecord {
	return &session.ClipRecord{
		Path:      path,
		StartedAt: start,
		Seconds:   seconds,
		SizeBytes: size,
	}
}

func TestAddAndList(t *testing.T) {
	l := openTestLibrary(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.Add(record("/clips/clip_a.mp4", base, 12.5, 1000))
	require.NoError(t, err)
	_, err = l.Add(record("/clips/clip_b.mp4", base.Add(time.Hour), 30, 5000))
	require.NoError(t, err)

	clips, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, clips, 2)

	// Newest first.
	assert.Equal(t, "clip_b.mp4", clips[0].Filename)
	assert.Equal(t, "clip_a.mp4", clips[1].Filename)
	assert.Equal(t, 12.5, clips[1].Seconds)
	assert.Equal(t, int64(5000), clips[0].SizeBytes)

	limited, err := l.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "clip_b.mp4", limited[0].Filename)
}

func TestDuplicatePathRejected(t *testing.T) {
	l := openTestLibrary(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.Add(record("/clips/clip_a.mp4", base, 10, 100))
	require.NoError(t, err)
	_, err = l.Add(record("/clips/clip_a.mp4", base, 10, 100))
	assert.Error(t, err)
}

func TestRemoveDeletesRowAndFile(t *testing.T) {
	l := openTestLibrary(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "clip_x.mp4")
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	id, err := l.Add(record(path, time.Now().UTC(), 8, 5))
	require.NoError(t, err)

	require.NoError(t, l.Remove(id))

	clips, err := l.List(0)
	require.NoError(t, err)
	assert.Empty(t, clips)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// File already gone is fine on a second removal attempt of another row.
	id2, err := l.Add(record(filepath.Join(dir, "ghost.mp4"), time.Now().UTC(), 8, 5))
	require.NoError(t, err)
	assert.NoError(t, l.Remove(id2))
}

func TestAggregate(t *testing.T) {
	l := openTestLibrary(t)

	s, err := l.Aggregate()
	require.NoError(t, err)
	assert.Zero(t, s.TotalClips)
	assert.Empty(t, s.LastClipAt)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = l.Add(record("/clips/a.mp4", base, 10, 100))
	require.NoError(t, err)
	_, err = l.Add(record("/clips/b.mp4", base.Add(time.Minute), 20, 300))
	require.NoError(t, err)

	s, err = l.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalClips)
	assert.Equal(t, int64(400), s.TotalBytes)
	assert.Equal(t, 30.0, s.TotalSeconds)
	assert.NotEmpty(t, s.LastClipAt)
}
