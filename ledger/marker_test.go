package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMarker(filepath.Join(t.TempDir(), "hardstop.real.json"))

	_, found, err := m.Load()
	assert.NoError(t, err)
	assert.False(t, found)

	rec := MarkerRecord{
		TrippedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Pipeline:  PipelineReal,
		Code:      "LIFETIME_LOSS",
		Reason:    "lifetime loss $30.00 reached 30% of starting bankroll $100.00",
		ResetCode: "01JXAMPLEULID",
	}
	require.NoError(t, m.Write(rec))

	got, found, err := m.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)

	require.NoError(t, m.Clear())
	_, found, err = m.Load()
	assert.NoError(t, err)
	assert.False(t, found)

	// Clearing an absent marker is not an error.
	assert.NoError(t, m.Clear())
}

func TestMarkerLoadCorrupt(t *testing.T) {
	t.Parallel()

	m := NewMarker(filepath.Join(t.TempDir(), "hardstop.json"))
	require.NoError(t, os.WriteFile(m.Path(), []byte("{truncated"), 0o600))

	_, found, err := m.Load()
	// A corrupt marker is still a marker: ok reports presence, err the damage.
	assert.True(t, found)
	assert.Error(t, err)
}

func TestMarkerWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewMarker(filepath.Join(dir, "hardstop.json"))
	require.NoError(t, m.Write(MarkerRecord{Pipeline: PipelineSim, Code: "BANKROLL_FLOOR"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hardstop.json", entries[0].Name())
}
