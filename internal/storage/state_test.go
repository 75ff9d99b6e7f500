package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManager_FirstRunUsesNow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.json")
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

	sm := NewFileStateManager(path)
	sm.SetNowFunc(func() time.Time { return now })
	require.NoError(t, sm.Load())

	assert.True(t, sm.LastTick().Equal(now))
	_, err := os.Stat(path)
	assert.NoError(t, err, "state file is created on first load")
}

func TestStateManager_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tick := time.Date(2025, 10, 6, 13, 50, 0, 0, time.UTC)

	sm := NewFileStateManager(path)
	require.NoError(t, sm.Load())
	require.NoError(t, sm.SetLastTick(tick))
	require.NoError(t, sm.MarkSent("evt-1@10", tick))

	reloaded := NewFileStateManager(path)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.LastTick().Equal(tick))
	assert.True(t, reloaded.WasSent("evt-1@10"))
	assert.False(t, reloaded.WasSent("evt-2@10"))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")
}

func TestStateManager_CorruptedFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

	sm := NewFileStateManager(path)
	sm.SetNowFunc(func() time.Time { return now })
	require.NoError(t, sm.Load())

	assert.True(t, sm.LastTick().Equal(now))
	assert.False(t, sm.WasSent("anything"))
	assert.NoError(t, sm.MarkSent("anything", now))
}

func TestStateManager_Prune(t *testing.T) {
	sm := NewFileStateManager(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, sm.Load())

	base := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sm.MarkSent("old", base))
	require.NoError(t, sm.MarkSent("new", base.Add(48*time.Hour)))

	require.NoError(t, sm.Prune(base.Add(24*time.Hour)))
	assert.False(t, sm.WasSent("old"))
	assert.True(t, sm.WasSent("new"))
	assert.Equal(t, sm.StateFilePath(), sm.filePath)
}
