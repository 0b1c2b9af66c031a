package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestRecordAndList(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.nowFn = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Record(ctx, Entry{Environment: "DEV1", Action: "undeploy", Target: "project p1", Status: "Removed"}))
	require.NoError(t, s.Record(ctx, Entry{Environment: "DEV1", Action: "undeploy", Target: "queue OrderQueue", Status: "Failed", Detail: "edit lock"}))
	require.NoError(t, s.Record(ctx, Entry{Environment: "QA1", Action: "disable", Target: "p1/ps/A", Status: "Disabled"}))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p1/ps/A", all[0].Target, "newest first")
	assert.Equal(t, "edit lock", all[1].Detail)
	assert.Equal(t, base.Add(time.Second), all[2].Time)
	assert.NotEmpty(t, all[2].ID)

	last, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "QA1", last[0].Environment)
}

func TestReopenKeepsEntries(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{ID: "fixed", Environment: "DEV1", Action: "enable", Target: "p/ps/X", Status: "Enabled"}))
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	entries, err := again.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed", entries[0].ID)
}
