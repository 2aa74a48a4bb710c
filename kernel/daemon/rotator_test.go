package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "kerneld.log")
	r := NewLogRotator(LogRotationConfig{BasePath: path, MaxSize: 1024, MaxFiles: 3})

	require.NoError(t, r.Open())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteRotatesWhenSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kerneld.log")
	r := NewLogRotator(LogRotationConfig{BasePath: path, MaxSize: 16, MaxFiles: 5})
	require.NoError(t, r.Open())

	require.NoError(t, r.Write([]byte("0123456789")))
	require.NoError(t, r.Write([]byte("0123456789"))) // exceeds MaxSize, forces rotation

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "expected the active file plus at least one rotated file")
}

func TestCleanupOldFilesKeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kerneld.log")
	require.NoError(t, os.WriteFile(path, []byte("current"), 0o644))

	for i := 0; i < 4; i++ {
		rotatedName := filepath.Join(dir, "kerneld.log.2026010"+string(rune('0'+i))+"_000000")
		require.NoError(t, os.WriteFile(rotatedName, []byte("old"), 0o644))
	}

	r := NewLogRotator(LogRotationConfig{BasePath: path, MaxSize: 1024, MaxFiles: 2})
	require.NoError(t, r.CleanupOldFiles())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// current file + at most MaxFiles rotated files.
	assert.LessOrEqual(t, len(entries), 3)
}
