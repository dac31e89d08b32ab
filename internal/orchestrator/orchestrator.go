// Package orchestrator implements the per-container backup pipeline and
// the cycle that drives it: prepare → exec → stage → finalize → verify →
// record.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/boundaries/out"
	"github.com/baktainer/baktainer/internal/config"
	"github.com/baktainer/baktainer/internal/discovery"
	"github.com/baktainer/baktainer/internal/domain"
	"github.com/baktainer/baktainer/internal/encryption"
	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/labelschema"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/notifier"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/strategy"
	"github.com/baktainer/baktainer/internal/validator"
	"github.com/baktainer/baktainer/internal/workerpool"
)

var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Orchestrator wires the components of one backup cycle together.
type Orchestrator struct {
	cfg        *config.Config
	runtime    out.ContainerRuntime
	fops       *fileops.FileOps
	strategies *strategy.Registry
	cipher     *encryption.Cipher
	mon        *monitor.Monitor
	notif      *notifier.Notifier
	pool       *workerpool.Pool
	log        zerowrap.Logger
	nowFn      func() time.Time
}

// New builds an Orchestrator. cipher may be nil when encryption is
// disabled.
func New(cfg *config.Config, runtime out.ContainerRuntime, fops *fileops.FileOps, strategies *strategy.Registry, cipher *encryption.Cipher, mon *monitor.Monitor, notif *notifier.Notifier, log zerowrap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		runtime:    runtime,
		fops:       fops,
		strategies: strategies,
		cipher:     cipher,
		mon:        mon,
		notif:      notif,
		pool:       workerpool.New(cfg.Threads),
		log:        log,
		nowFn:      time.Now,
	}
}

// CycleResult summarizes one RunOnce invocation.
type CycleResult struct {
	Aborted      bool
	Reason       string
	Attempted    int
	Succeeded    int
	Failed       int
	RotationDone bool
	Rotation     rotation.Result
}

// RunOnce runs one full cycle: pre-flight health probe, discovery,
// fan-out through the pool, join, rotation, and a summary log. It is the
// single entry point both the Scheduler's per-tick cycle and the CLI's
// --now flag use.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleResult, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:  "usecase",
		zerowrap.FieldAction: "RunOnce",
	})
	log := zerowrap.FromCtx(ctx)

	if err := o.runtime.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("pre-flight ping failed, aborting cycle")
		o.notif.NotifyHealth(false, "runtime ping failed, cycle aborted")
		return CycleResult{Aborted: true, Reason: "runtime ping failed"}, nil
	}
	if _, err := o.runtime.Version(ctx); err != nil {
		log.Warn().Err(err).Msg("pre-flight version probe failed, aborting cycle")
		o.notif.NotifyHealth(false, "runtime version probe failed, cycle aborted")
		return CycleResult{Aborted: true, Reason: "runtime version probe failed"}, nil
	}

	candidates, err := discovery.Discover(ctx, o.runtime, log)
	if err != nil {
		return CycleResult{}, err
	}

	futures := make([]*workerpool.Future, 0, len(candidates))
	eligible := 0

	for i := range candidates {
		c := candidates[i]

		schemaResult := labelschema.Validate(c.ID, c.Name, c.Labels, c.State)
		labelschema.RequireEncryptionConfigured(&schemaResult, o.cfg.EncryptionEnabled)

		if err := validator.Validate(&c, &schemaResult); err != nil {
			log.Warn().Err(err).Str("container", c.Name).Msg("skipping container that failed validation")
			o.mon.Start(c.Name, c.Engine)
			o.mon.Fail(c.Name, c.Engine, err)
			continue
		}
		container := c
		if schemaResult.Normalized != nil {
			container = *schemaResult.Normalized
		}

		eligible++
		futures = append(futures, o.pool.Submit(func() (any, error) {
			return nil, o.runContainer(ctx, container)
		}))
	}

	result := CycleResult{Attempted: eligible}
	for _, f := range futures {
		if _, err := f.Await(); err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	if o.cfg.RotationEnabled {
		result.Rotation = rotation.Run(o.cfg.BackupDir, rotation.Policy{
			RetentionDays:  o.cfg.RetentionDays,
			RetentionCount: o.cfg.RetentionCount,
			MinFreeSpaceGB: o.cfg.MinFreeSpaceGB,
		}, log, o.notif)
		result.RotationDone = true
	}

	summary := o.mon.Summary()
	o.notif.NotifySummary(fmt.Sprintf("cycle complete: %d succeeded, %d failed, success_rate=%.1f%%",
		result.Succeeded, result.Failed, summary.SuccessRate))
	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("deleted_count", result.Rotation.DeletedCount).
		Msg("backup cycle complete")

	return result, nil
}

// runContainer wraps the per-container pipeline in retry_with_backoff: up
// to 3 attempts, waiting 1s before the second and 2s before the third,
// retrying only IOError, RuntimeError, and RuntimeTimeout.
func (o *Orchestrator) runContainer(ctx context.Context, c domain.Container) error {
	o.mon.Start(c.Name, c.Engine)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(retryDelays[attempt-1])
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
				o.mon.Fail(c.Name, c.Engine, lastErr)
				return lastErr
			case <-timer.C:
			}
		}

		path, size, err := o.attemptBackup(ctx, c)
		if err == nil {
			o.mon.Complete(c.Name, c.Engine, path, size)
			return nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			break
		}
		o.log.Warn().Err(err).Str("container", c.Name).Int("attempt", attempt+1).Msg("retryable backup failure")
	}

	o.mon.Fail(c.Name, c.Engine, lastErr)
	return lastErr
}

// attemptBackup runs the full single-attempt pipeline described in the
// component design and returns the published path and its size.
func (o *Orchestrator) attemptBackup(ctx context.Context, c domain.Container) (string, int64, error) {
	now := o.nowFn().UTC()
	dateDir := fileops.DateDir(o.cfg.BackupDir, now)
	if err := o.fops.CreateBackupDir(dateDir); err != nil {
		return "", 0, err
	}

	base := fmt.Sprintf("%s-%d", c.BackupName, now.Unix())
	compress := c.EffectiveCompress(o.cfg.Compress)
	encrypt := c.EffectiveEncrypt(o.cfg.EncryptionEnabled)

	tempPath := filepath.Join(dateDir, "."+base+".sql.tmp")
	stagedPath := filepath.Join(dateDir, base+".sql")

	var cleanupPaths []string
	cleanup := func() { o.fops.Cleanup(cleanupPaths...) }
	cleanupPaths = append(cleanupPaths, tempPath)

	strat, err := o.strategies.Get(c.Engine)
	if err != nil {
		return "", 0, domain.NewValidationError(c.Name, []string{err.Error()}, err)
	}
	cmd, err := strat.Command(strategy.Options{
		User:         c.User,
		Password:     c.Password,
		Database:     c.Database,
		AllDatabases: c.AllDatabases,
	})
	if err != nil {
		return "", 0, err
	}

	var stderrBuf strings.Builder
	var sniffLines []string
	var currentLine strings.Builder

	var exitCode int
	writeErr := o.fops.Write(tempPath, func(w io.Writer) error {
		code, execErr := o.runtime.Exec(ctx, c.ID, cmd.Cmd, cmd.Env, func(kind out.StreamKind, chunk []byte) {
			switch kind {
			case out.StreamStdout:
				_, _ = w.Write(chunk)
				if len(sniffLines) < 5 {
					feedSniffBuffer(&currentLine, &sniffLines, chunk)
				}
			case out.StreamStderr:
				if stderrBuf.Len() < 64*1024 {
					stderrBuf.Write(chunk)
				}
			}
		})
		exitCode = code
		return execErr
	})
	if writeErr != nil {
		cleanup()
		return "", 0, writeErr
	}
	if exitCode != 0 {
		// The dump tool ran and failed; that is not a transport failure,
		// so it is reported as a non-retryable error.
		cleanup()
		return "", 0, domain.NewValidationError(c.Name, []string{fmt.Sprintf("dump command exited %d: %s", exitCode, stderrBuf.String())}, nil)
	}
	if stderrBuf.Len() > 0 {
		o.log.Warn().Str("container", c.Name).Str("stderr", stderrBuf.String()).Msg("backup command wrote to stderr")
	}

	if _, err := o.fops.VerifyCreated(tempPath); err != nil {
		cleanup()
		return "", 0, err
	}

	var finalPath string
	if compress {
		finalPath = stagedPath + ".gz"
		cleanupPaths = append(cleanupPaths, finalPath)
		if err := o.fops.Compress(tempPath, finalPath); err != nil {
			cleanup()
			return "", 0, err
		}
	} else {
		finalPath = stagedPath
		cleanupPaths = append(cleanupPaths, finalPath)
		if err := o.fops.Rename(tempPath, finalPath); err != nil {
			cleanup()
			return "", 0, err
		}
	}

	var compressionType *string
	if compress {
		gzip := "gzip"
		compressionType = &gzip
	}
	writeSidecar := func(path string, integ fileops.Integrity) {
		o.fops.WriteMetadata(path, domain.SidecarMetadata{
			Timestamp:       now,
			ContainerName:   c.Name,
			Engine:          c.Engine,
			Database:        c.Database,
			FileSize:        integ.Size,
			Checksum:        integ.Checksum,
			BackupFile:      path,
			Compressed:      compress,
			CompressionType: compressionType,
		})
	}

	publishedPath := finalPath
	if encrypt {
		if o.cipher == nil {
			cleanup()
			return "", 0, domain.NewEncryptionError("encryption requested but no cipher is configured", nil)
		}

		// Written beside finalPath before EncryptFile securely deletes it,
		// so the plain sidecar survives even though the plaintext doesn't.
		plainIntegrity, err := o.fops.VerifyIntegrity(finalPath, compress)
		if err != nil {
			cleanup()
			return "", 0, err
		}
		writeSidecar(finalPath, plainIntegrity)

		encryptedPath := finalPath + ".encrypted"
		cleanupPaths = append(cleanupPaths, encryptedPath)
		originalSize, encryptedSize, err := o.cipher.EncryptFile(finalPath, encryptedPath)
		if err != nil {
			cleanup()
			return "", 0, err
		}
		o.fops.WriteMetadata(encryptedPath, domain.EncryptedSidecarMetadata{
			Algorithm:      domain.EncryptionAlgorithm,
			OriginalFile:   finalPath,
			OriginalSize:   originalSize,
			EncryptedSize:  encryptedSize,
			EncryptedAt:    o.nowFn().UTC(),
			KeyFingerprint: o.cipher.KeyFingerprint(),
		})
		publishedPath = encryptedPath
	}

	integrity, err := o.fops.VerifyIntegrity(publishedPath, compress)
	if err != nil {
		cleanup()
		return "", 0, err
	}

	if !strat.Sniff(strategy.FirstNLines(sniffLines, 5)) {
		o.log.Warn().Str("container", c.Name).Msg("backup content sniff found no recognized tokens; continuing")
	}

	if !encrypt {
		writeSidecar(publishedPath, integrity)
	}

	return publishedPath, integrity.Size, nil
}

func feedSniffBuffer(currentLine *strings.Builder, lines *[]string, chunk []byte) {
	for _, b := range chunk {
		if b == '\n' {
			*lines = append(*lines, strings.ToLower(currentLine.String()))
			currentLine.Reset()
			if len(*lines) >= 5 {
				return
			}
			continue
		}
		currentLine.WriteByte(b)
	}
}

// Shutdown stops accepting new work and drains the pool.
func (o *Orchestrator) Shutdown() {
	o.pool.Shutdown()
}
