// Package rotation applies the age, count, and free-space retention
// passes over published artifacts, then sweeps empty date directories.
package rotation

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/fileops"
)

// filenamePattern extracts the backup name and unix timestamp from a
// published artifact's base name, per the data model's naming scheme.
var filenamePattern = regexp.MustCompile(`^(.+)-(\d{10})\.(sql|sql\.gz)$`)

// Policy carries the process-wide retention configuration. Run applies it
// to every container's artifacts alike; per-container retention label
// overrides are not consulted.
type Policy struct {
	RetentionDays  int
	RetentionCount int
	MinFreeSpaceGB int
}

// Result is the outcome of one rotation pass.
type Result struct {
	DeletedCount int
	DeletedSize  int64
	Errors       []error
}

type artifact struct {
	path      string
	container string
	unixTS    int64
	mtime     time.Time
	size      int64
}

// Notifier is the minimal surface Run needs for the free-space pass's
// best-effort warning.
type Notifier interface {
	NotifyDiskSpace(availableBytes int64, directory, message string)
}

// Run walks backupDir and applies age, count, free-space, then empty-dir
// passes in that order. Failures are counted, never raised.
func Run(backupDir string, policy Policy, log zerowrap.Logger, notifier Notifier) Result {
	var result Result

	artifacts, err := scan(backupDir)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	if policy.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(policy.RetentionDays) * 24 * time.Hour)
		var survivors []artifact
		for _, a := range artifacts {
			if a.mtime.Before(cutoff) {
				deleteArtifact(a, &result)
			} else {
				survivors = append(survivors, a)
			}
		}
		artifacts = survivors
	}

	if policy.RetentionCount > 0 {
		byContainer := make(map[string][]artifact)
		for _, a := range artifacts {
			byContainer[a.container] = append(byContainer[a.container], a)
		}
		var survivors []artifact
		for _, group := range byContainer {
			sort.Slice(group, func(i, j int) bool { return group[i].mtime.After(group[j].mtime) })
			for i, a := range group {
				if i < policy.RetentionCount {
					survivors = append(survivors, a)
				} else {
					deleteArtifact(a, &result)
				}
			}
		}
		artifacts = survivors
	}

	if policy.MinFreeSpaceGB > 0 {
		needed := uint64(policy.MinFreeSpaceGB) * (1 << 30)
		free, err := fileops.FreeSpace(backupDir)
		if err != nil {
			log.Warn().Err(err).Str("path", backupDir).Msg("free-space probe failed during rotation, skipping free-space pass")
		} else if free < needed {
			sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].mtime.Before(artifacts[j].mtime) })
			for _, a := range artifacts {
				if free >= needed {
					break
				}
				freedBefore := free
				deleteArtifact(a, &result)
				free += uint64(a.size)
				if notifier != nil {
					notifier.NotifyDiskSpace(int64(freedBefore), backupDir, "reclaiming space via rotation's free-space pass")
				}
			}
		}
	}

	sweepEmptyDirs(backupDir, log)

	return result
}

func scan(backupDir string) ([]artifact, error) {
	var artifacts []artifact
	err := filepath.WalkDir(backupDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".meta") || strings.HasSuffix(name, ".tmp") {
			return nil
		}
		matches := filenamePattern.FindStringSubmatch(name)
		if matches == nil {
			return nil
		}
		ts, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		artifacts = append(artifacts, artifact{
			path:      path,
			container: matches[1],
			unixTS:    ts,
			mtime:     info.ModTime(),
			size:      info.Size(),
		})
		return nil
	})
	return artifacts, err
}

func deleteArtifact(a artifact, result *Result) {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		result.Errors = append(result.Errors, err)
		return
	}
	_ = os.Remove(a.path + ".meta")
	result.DeletedCount++
	result.DeletedSize += a.size
}

func sweepEmptyDirs(backupDir string, log zerowrap.Logger) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(backupDir, entry.Name())
		remaining, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(remaining) == 0 {
			if err := os.Remove(dir); err != nil {
				log.Warn().Err(err).Str("path", dir).Msg("failed to remove empty backup date directory")
			}
		}
	}
}

// Statistics is the per-container/per-date aggregate rotation exposes for
// dashboards.
type Statistics struct {
	PerContainer map[string]ContainerStats
	PerDate      map[string]DateStats
}

// ContainerStats aggregates one container's surviving artifacts.
type ContainerStats struct {
	Count   int
	Oldest  time.Time
	Newest  time.Time
	SizeSum int64
}

// DateStats aggregates one date directory's surviving artifacts.
type DateStats struct {
	Count   int
	SizeSum int64
}

// StatisticsFor scans backupDir and computes Statistics without deleting
// anything.
func StatisticsFor(backupDir string) (Statistics, error) {
	artifacts, err := scan(backupDir)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{PerContainer: map[string]ContainerStats{}, PerDate: map[string]DateStats{}}
	for _, a := range artifacts {
		cs, ok := stats.PerContainer[a.container]
		if !ok || a.mtime.Before(cs.Oldest) || cs.Oldest.IsZero() {
			if !ok {
				cs.Oldest = a.mtime
			} else if a.mtime.Before(cs.Oldest) {
				cs.Oldest = a.mtime
			}
		}
		if a.mtime.After(cs.Newest) {
			cs.Newest = a.mtime
		}
		cs.Count++
		cs.SizeSum += a.size
		stats.PerContainer[a.container] = cs

		dateKey := filepath.Base(filepath.Dir(a.path))
		ds := stats.PerDate[dateKey]
		ds.Count++
		ds.SizeSum += a.size
		stats.PerDate[dateKey] = ds
	}
	return stats, nil
}
