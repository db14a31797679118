package restore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadOnMissingFileReturnsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "restore.yaml"))
	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorePutThenLoadRoundTrips(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "sub", "restore.yaml"))
	require.NoError(t, s.Put("p1", "sess-1"))
	require.NoError(t, s.Put("p2", "sess-2"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byPartition := map[string]string{}
	for _, e := range entries {
		byPartition[e.PartitionID] = e.SessionID
	}
	assert.Equal(t, "sess-1", byPartition["p1"])
	assert.Equal(t, "sess-2", byPartition["p2"])
}

func TestStorePutUpsertsExistingPartition(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "restore.yaml"))
	require.NoError(t, s.Put("p1", "sess-1"))
	require.NoError(t, s.Put("p1", "sess-2"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-2", entries[0].SessionID)
}

func TestStoreRemoveDropsOnlyThatPartition(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "restore.yaml"))
	require.NoError(t, s.Put("p1", "sess-1"))
	require.NoError(t, s.Put("p2", "sess-2"))
	require.NoError(t, s.Remove("p1"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].PartitionID)
}

func TestHistoryAppendAndLatest(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.yaml"))

	require.NoError(t, h.Append(HistoryRecord{PartitionID: "p1", SessionID: "s1", TopologyPath: "a.yaml"}))
	require.NoError(t, h.Append(HistoryRecord{PartitionID: "p1", SessionID: "s2", TopologyPath: "b.yaml"}))
	require.NoError(t, h.Append(HistoryRecord{PartitionID: "p2", SessionID: "s3", TopologyPath: "c.yaml"}))

	latest, found, err := h.Latest("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "s2", latest.SessionID)
	assert.Equal(t, "b.yaml", latest.TopologyPath)
}

func TestHistoryLatestOnUnknownPartitionNotFound(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.yaml"))
	require.NoError(t, h.Append(HistoryRecord{PartitionID: "p1", SessionID: "s1"}))

	_, found, err := h.Latest("p9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHistoryAppendIsNoOpWhenPathEmpty(t *testing.T) {
	h := NewHistory("")
	assert.NoError(t, h.Append(HistoryRecord{PartitionID: "p1"}))
}
