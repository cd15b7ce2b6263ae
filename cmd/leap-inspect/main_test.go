package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-relay-go/internal/types"
)

func TestInspectCountsStatesAndSpan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	content := `{"state":"initialized"}
{"state":"connected"}
{"state":"frame","frame":{"id":1,"timestamp":1000,"hands":[{"id":1,"fingers":[{"id":2}]}]}}
not json
{"state":"frame","frame":{"id":2,"timestamp":501000,"hands":[]}}
{"state":"disconnected"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	summary, err := inspect(path, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.states[types.StateInitialized])
	assert.Equal(t, 2, summary.states[types.StateFrame])
	assert.Equal(t, 1, summary.malformed)
	assert.Equal(t, 1, summary.maxHands)
	assert.Equal(t, int64(1000), summary.firstStamp)
	assert.Equal(t, int64(501000), summary.lastStamp)
	assert.Equal(t, []string{"id=1 timestamp=1000 hands=1 fingers=1"}, summary.frames)
}

func TestListFilesFiltersRecordings(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.ndjson", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := listFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.ndjson"), filepath.Join(dir, "b.json")}, files)
}
