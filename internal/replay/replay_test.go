package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSample(t *testing.T) *Recorder {
	t.Helper()
	r := NewRecorder(2, 12345)
	r.StartRecording([]uint16{0, 1}, map[string]any{"map": "arena"})
	r.RecordFrame(0, map[uint16][]byte{0: {1, 2, 3}, 1: {}})
	r.RecordFrame(1, map[uint16][]byte{0: {4}, 1: {5, 6}})
	r.StopRecording()
	return r
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	r := recordSample(t)
	path := filepath.Join(t.TempDir(), "session.fsrp")
	require.NoError(t, r.Save(path, true))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, r.header.Seed, loaded.header.Seed)
	assert.Equal(t, r.header.PlayerIDs, loaded.header.PlayerIDs)
	require.Len(t, loaded.Frames(), 2)
	assert.Equal(t, []byte{1, 2, 3}, loaded.Frames()[0].Inputs[0])
	assert.Equal(t, []byte{5, 6}, loaded.Frames()[1].Inputs[1])
}

func TestSaveLoadRoundTripUncompressed(t *testing.T) {
	r := recordSample(t)
	path := filepath.Join(t.TempDir(), "session.fsrj")
	require.NoError(t, r.Save(path, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Frames(), loaded.Frames())
}

func TestLoadRejectsUnknownMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.replay")
	require.NoError(t, os.WriteFile(path, []byte("XXXXnotarealreplay"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRecordFrameNoopBeforeStart(t *testing.T) {
	r := NewRecorder(1, 1)
	r.RecordFrame(0, map[uint16][]byte{0: {9}})
	assert.Empty(t, r.Frames())
}

func TestStatsReflectRecording(t *testing.T) {
	r := recordSample(t)
	stats := r.Stats()
	assert.Equal(t, 2, stats.FrameCount)
	assert.Equal(t, 2, stats.PlayerCount)
}

