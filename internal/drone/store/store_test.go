package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drone.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendThenUnsyncedReturnsRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("job1", []byte(`{"ok":true}`)))

	recs, err := s.Unsynced()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "job1", recs[0].JobID)
	assert.Equal(t, StatusLocal, recs[0].Status)
}

func TestMarkStatusTransitionsExistingRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("job1", []byte(`{}`)))
	require.NoError(t, s.MarkStatus("job1", StatusPending))

	recs, err := s.Unsynced()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusPending, recs[0].Status)
}

func TestMarkStatusOnMissingKeyIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.MarkStatus("missing", StatusSynced))
}

func TestUnsyncedExcludesSyncedRecords(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("job1", []byte(`{}`)))
	require.NoError(t, s.Append("job2", []byte(`{}`)))
	require.NoError(t, s.MarkStatus("job1", StatusSynced))

	recs, err := s.Unsynced()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "job2", recs[0].JobID)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("job1", []byte(`{}`)))
	require.NoError(t, s.Delete("job1"))

	recs, err := s.Unsynced()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAppendDoesNotOverwriteExistingRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("job1", []byte(`{"v":1}`)))
	require.NoError(t, s.MarkStatus("job1", StatusSynced))
	require.NoError(t, s.Append("job1", []byte(`{"v":2}`)))

	recs, err := s.Unsynced()
	require.NoError(t, err)
	assert.Empty(t, recs, "re-appending a synced key must not resurrect it or change its payload")
}
