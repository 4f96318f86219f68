package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "interactions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStore_AppendLoadOrder(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	for _, ts := range []string{"2024-01-02T00:00:00.000000", "2024-01-01T00:00:00.000000", "2024-01-03T00:00:00.000000"} {
		require.NoError(t, st.Append(ctx, Record{Timestamp: ts, User: "alice", Challenge: "c", Suggestions: []string{"a", "b"}}))
	}

	records, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// append order, not timestamp order
	assert.Equal(t, "2024-01-02T00:00:00.000000", records[0].Timestamp)
	assert.Equal(t, "2024-01-01T00:00:00.000000", records[1].Timestamp)
	assert.Equal(t, []string{"a", "b"}, records[2].Suggestions)
	assert.False(t, records[0].Feedback.IsSet())
}

func TestSQLiteStore_DuplicateTimestampRejected(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, Record{Timestamp: "t1"}))
	err := st.Append(ctx, Record{Timestamp: "t1"})

	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestSQLiteStore_SetFeedback(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, Record{Timestamp: "t1", User: "bob"}))

	n, err := st.SetFeedback(ctx, "t1", "5")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = st.SetFeedback(ctx, "nope", "5")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	records, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Rating("5"), records[0].Feedback)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.db")
	ctx := context.Background()

	st, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, Record{Timestamp: "t1", Challenge: "grief"}))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	records, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "grief", records[0].Challenge)

	ok, err := st.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
