package fileops

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/domain"
)

func newTestFileOps() *FileOps {
	return New(zerowrap.Default())
}

func TestCreateBackupDirCreatesNestedDirectories(t *testing.T) {
	f := newTestFileOps()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, f.CreateBackupDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteWritesContentAndSyncsAndCloses(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "out.sql")

	err := f.Write(path, func(w io.Writer) error {
		_, werr := w.Write([]byte("dump contents"))
		return werr
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dump contents", string(data))
}

func TestVerifyCreatedReturnsSizeForNonEmptyFile(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "out.sql")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0600))

	size, err := f.VerifyCreated(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestVerifyCreatedRejectsEmptyFile(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "empty.sql")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := f.VerifyCreated(path)
	require.Error(t, err)
	var integ *domain.IntegrityError
	assert.ErrorAs(t, err, &integ)
}

func TestVerifyCreatedRejectsMissingFile(t *testing.T) {
	f := newTestFileOps()
	_, err := f.VerifyCreated(filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)
	var ioErr *domain.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRenameMovesFileWithinSameFilesystem(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sql")
	dst := filepath.Join(dir, "dst.sql")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0600))

	require.NoError(t, f.Rename(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestCompressGzipsSourceAndRemovesIt(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	dst := filepath.Join(dir, "dump.sql.gz")
	require.NoError(t, os.WriteFile(src, []byte(strings.Repeat("x", 1000)), 0600))

	require.NoError(t, f.Compress(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestChecksumIsStableForSameContent(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(path, []byte("deterministic content"), 0600))

	sum1, err := f.Checksum(path)
	require.NoError(t, err)
	sum2, err := f.Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)
	assert.Len(t, sum1, 64)
}

func TestVerifyIntegrityRejectsUndersizedUncompressedArtifact(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "tiny.sql")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))

	_, err := f.VerifyIntegrity(path, false)
	require.Error(t, err)
}

func TestVerifyIntegrityAcceptsArtifactAtOrAboveMinimumSize(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "ok.sql")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 10)), 0600))

	integ, err := f.VerifyIntegrity(path, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), integ.Size)
	assert.NotEmpty(t, integ.Checksum)
}

func TestVerifyIntegrityUsesHigherMinimumForCompressedArtifacts(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "ok.sql.gz")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 15)), 0600))

	_, err := f.VerifyIntegrity(path, true)
	require.Error(t, err)
}

func TestCleanupRemovesAllGivenPathsAndToleratesMissingOnes(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a")
	p2 := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(p1, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(p2, []byte("y"), 0600))

	f.Cleanup(p1, p2, filepath.Join(dir, "does-not-exist"), "")

	_, err1 := os.Stat(p1)
	_, err2 := os.Stat(p2)
	assert.True(t, os.IsNotExist(err1))
	assert.True(t, os.IsNotExist(err2))
}

func TestWriteMetadataWritesSidecarJSONFile(t *testing.T) {
	f := newTestFileOps()
	path := filepath.Join(t.TempDir(), "dump.sql")
	f.WriteMetadata(path, map[string]string{"container": "app"})

	data, err := os.ReadFile(path + ".meta")
	require.NoError(t, err)
	assert.Contains(t, string(data), "app")
}

func TestFreeSpaceReturnsPositiveValueForRealPath(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestDateDirFormatsUsingISODate(t *testing.T) {
	ts := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("/backups", "2026-08-06"), DateDir("/backups", ts))
}
