package tracking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
		return path
	}

	linkedSrc := write("linked-src")
	linkedDst := filepath.Join(dir, "linked-dst")
	require.NoError(t, os.Link(linkedSrc, linkedDst))

	copiedSrc := write("copied-src")
	copiedDst := write("copied-dst")

	orphanDst := write("orphan-dst")
	danglingSrc := write("dangling-src")

	store, err := Open(filepath.Join(dir, "tracking.json"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(linkedSrc, linkedDst))
	require.NoError(t, store.Record(copiedSrc, copiedDst))
	require.NoError(t, store.Record(filepath.Join(dir, "gone-src"), orphanDst))
	require.NoError(t, store.Record(danglingSrc, filepath.Join(dir, "gone-dst")))

	byTarget := make(map[string]Status)
	for _, f := range store.Verify() {
		byTarget[f.Record.TargetPath] = f.Status
	}

	assert.Equal(t, StatusOK, byTarget[linkedDst])
	assert.Equal(t, StatusDiverged, byTarget[copiedDst])
	assert.Equal(t, StatusMissingSource, byTarget[orphanDst])
	assert.Equal(t, StatusMissingTarget, byTarget[filepath.Join(dir, "gone-dst")])

	counts := CountByStatus(store.Verify())
	assert.Equal(t, 1, counts[StatusOK])
	assert.Equal(t, 1, counts[StatusDiverged])
	assert.Equal(t, 4, store.Len(), "verification must not prune records")
}
