// Package fileops implements the filesystem primitives the orchestrator's
// pipeline is built on: directory creation, atomic rename with
// cross-device fallback, gzip, checksum, metadata sidecars, and a
// disk-space probe.
package fileops

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/domain"
)

const minFreeBytesForDir = 100 * 1024 * 1024 // 100 MiB

// FileOps groups the filesystem operations the pipeline depends on. It is
// a thin, stateless wrapper (no fields beyond the logger) so every method
// can be called concurrently from worker goroutines.
type FileOps struct {
	log zerowrap.Logger
}

// New returns a FileOps bound to log.
func New(log zerowrap.Logger) *FileOps {
	return &FileOps{log: log}
}

// CreateBackupDir creates path recursively and probes for at least 100
// MiB of free space. A probe failure is logged and treated as "enough".
func (f *FileOps) CreateBackupDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return domain.NewIOError(path, "failed to create backup directory", err)
	}

	free, err := FreeSpace(path)
	if err != nil {
		f.log.Warn().Err(err).Str("path", path).Msg("disk space probe failed, assuming enough free space")
		return nil
	}
	if free < minFreeBytesForDir {
		return domain.NewIOError(path, fmt.Sprintf("only %d bytes free, need at least %d", free, minFreeBytesForDir), nil)
	}
	return nil
}

// Write opens path for writing and hands the handle to fn, guaranteeing
// Close/Sync on every exit path including errors.
func (f *FileOps) Write(path string, fn func(w io.Writer) error) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return domain.NewIOError(path, "failed to open file for writing", err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	if err := fn(file); err != nil {
		return domain.NewIOError(path, "failed to write file", err)
	}
	return nil
}

// VerifyCreated checks path exists and is non-empty, returning its size.
func (f *FileOps) VerifyCreated(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, domain.NewIOError(path, "file was not created", err)
	}
	if info.Size() == 0 {
		return 0, domain.NewIntegrityError(path, "file is empty")
	}
	return info.Size(), nil
}

// Rename moves src to dst atomically within a filesystem. On a cross-device
// error it falls back to copy-then-unlink, preserving the same visible
// semantics (dst either fully exists or does not exist).
func (f *FileOps) Rename(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, syscall.EXDEV) {
		return domain.NewIOError(dst, "failed to rename file", err)
	}

	if err := copyThenUnlink(src, dst); err != nil {
		return domain.NewIOError(dst, "failed to copy across devices", err)
	}
	return nil
}

func copyThenUnlink(src, dst string) error {
	tmp := dst + ".copying"
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// Compress streams gzip(src) into dst and unlinks src on success.
func (f *FileOps) Compress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return domain.NewIOError(src, "failed to open source for compression", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return domain.NewIOError(dst, "failed to create compressed output", err)
	}

	gz := gzip.NewWriter(out)
	_, copyErr := io.Copy(gz, in)
	closeErr := gz.Close()
	syncErr := out.Sync()
	_ = out.Close()

	if copyErr != nil {
		_ = os.Remove(dst)
		return domain.NewIOError(src, "failed to stream gzip", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return domain.NewIOError(dst, "failed to finalize gzip stream", closeErr)
	}
	if syncErr != nil {
		_ = os.Remove(dst)
		return domain.NewIOError(dst, "failed to sync compressed output", syncErr)
	}

	if err := os.Remove(src); err != nil {
		f.log.Warn().Err(err).Str("path", src).Msg("failed to remove uncompressed source after compression")
	}
	return nil
}

// Checksum returns the sha256 hex digest of path.
func (f *FileOps) Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", domain.NewIOError(path, "failed to open file for checksum", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", domain.NewIOError(path, "failed to read file for checksum", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Integrity is the result of VerifyIntegrity.
type Integrity struct {
	Size       int64
	Checksum   string
	Compressed bool
}

// VerifyIntegrity enforces the minimum-size invariant (10 B uncompressed,
// 20 B compressed) and returns the artifact's size and checksum.
func (f *FileOps) VerifyIntegrity(path string, compressed bool) (Integrity, error) {
	minSize := int64(10)
	if compressed {
		minSize = 20
	}

	info, err := os.Stat(path)
	if err != nil {
		return Integrity{}, domain.NewIOError(path, "artifact not found", err)
	}
	if info.Size() < minSize {
		return Integrity{}, domain.NewIntegrityError(path, fmt.Sprintf("artifact is %d bytes, below the %d byte minimum", info.Size(), minSize))
	}

	sum, err := f.Checksum(path)
	if err != nil {
		return Integrity{}, err
	}
	return Integrity{Size: info.Size(), Checksum: sum, Compressed: compressed}, nil
}

// Cleanup best-effort deletes every path, warning (never failing) on
// error.
func (f *FileOps) Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			f.log.Warn().Err(err).Str("path", p).Msg("cleanup failed to remove file")
		}
	}
}

// WriteMetadata writes obj as one-line JSON to path+".meta". Failure is a
// warning, never fatal.
func (f *FileOps) WriteMetadata(path string, obj any) {
	data, err := json.Marshal(obj)
	if err != nil {
		f.log.Warn().Err(err).Str("path", path).Msg("failed to marshal sidecar metadata")
		return
	}
	metaPath := path + ".meta"
	if err := os.WriteFile(metaPath, data, 0600); err != nil {
		f.log.Warn().Err(err).Str("path", metaPath).Msg("failed to write sidecar metadata")
	}
}

// FreeSpace probes the free space available at path's filesystem,
// statfs-based with no external-command fallback needed on the platforms
// this process targets (linux/darwin both support statfs).
func FreeSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// DateDir returns backupDir/<YYYY-MM-DD> for t.
func DateDir(backupDir string, t time.Time) string {
	return filepath.Join(backupDir, t.Format("2006-01-02"))
}
