// Package app wires every component together into one running process:
// config → logger → runtime adapter → domain services → orchestrator →
// scheduler → optional health server. It is the only package that knows
// every concrete type in the system.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/adapters/out/docker"
	"github.com/baktainer/baktainer/internal/config"
	"github.com/baktainer/baktainer/internal/encryption"
	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/httpserver"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/notifier"
	"github.com/baktainer/baktainer/internal/orchestrator"
	"github.com/baktainer/baktainer/internal/scheduler"
	"github.com/baktainer/baktainer/internal/strategy"
)

const httpShutdownTimeout = 5 * time.Second

// App holds every wired component for one process lifetime.
type App struct {
	Config       *config.Config
	Log          zerowrap.Logger
	Runtime      *docker.Runtime
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	HTTPServer   *httpserver.Server

	logCleanup func()
}

// New loads configuration, builds the logger, and wires every component
// named by Config. It does not start anything — call Run for that.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, cleanup := initLogger(cfg)

	runtime, err := createRuntime(cfg, log)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, log.WrapErr(err, "failed to create container runtime")
	}
	if err := runtime.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("initial runtime ping failed; continuing, cycles will retry")
	}
	if v, err := runtime.Version(ctx); err == nil {
		log.Info().Str("runtime_version", v.Version).Str("api_version", v.APIVersion).Msg("connected to container runtime")
	}

	fops := fileops.New(log)
	strategies := strategy.DefaultRegistry()

	var cipher *encryption.Cipher
	if cfg.EncryptionEnabled {
		raw, isPassphrase, err := cfg.ResolveEncryptionKeyMaterial()
		if err != nil {
			return nil, fmt.Errorf("resolving encryption key material: %w", err)
		}
		cipher, err = encryption.New(raw, isPassphrase)
		if err != nil {
			return nil, err
		}
		log.Info().Str("key_fingerprint", cipher.KeyFingerprint()).Msg("encryption enabled")
	}

	notif := notifier.New(cfg.NotificationChannels, notifier.Gates{
		Success: cfg.NotifySuccess,
		Failure: cfg.NotifyFailures,
		Warning: cfg.NotifyWarnings,
		Health:  cfg.NotifyHealth,
		Summary: cfg.NotifySummary,
	}, log, notifier.ChannelURLs{
		Webhook: cfg.WebhookURL,
		Slack:   cfg.SlackWebhookURL,
		Discord: cfg.DiscordWebhookURL,
		Teams:   cfg.TeamsWebhookURL,
	})

	mon := monitor.New(notif)

	orch := orchestrator.New(cfg, runtime, fops, strategies, cipher, mon, notif, log)

	sched, err := scheduler.New(cfg.Cron, orch, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Log:          log,
		Runtime:      runtime,
		Orchestrator: orch,
		Scheduler:    sched,
		logCleanup:   cleanup,
	}

	if cfg.HealthServerEnabled {
		a.HTTPServer = httpserver.New(cfg.HealthBind, cfg.HealthPort, httpserver.Deps{
			Monitor:   mon,
			Scheduler: sched,
			Runtime:   runtime,
			BackupDir: cfg.BackupDir,
			Log:       log,
		})
	}

	return a, nil
}

// Run starts the health server (if enabled) and blocks running the
// scheduler until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a.HTTPServer != nil {
		go func() {
			if err := a.HTTPServer.Start(); err != nil {
				a.Log.Error().Err(err).Msg("health server stopped")
			}
		}()
	}

	err := a.Scheduler.Run(ctx)

	if a.HTTPServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if shutdownErr := a.HTTPServer.Shutdown(shutdownCtx); shutdownErr != nil {
			a.Log.Warn().Err(shutdownErr).Msg("health server shutdown did not complete cleanly")
		}
	}

	a.Orchestrator.Shutdown()
	return err
}

// Close runs the logger cleanup hook if one was installed; initLogger
// installs none, so Close currently does nothing.
func (a *App) Close() {
	if a.logCleanup != nil {
		a.logCleanup()
	}
}

func initLogger(cfg *config.Config) (zerowrap.Logger, func()) {
	logConfig := zerowrap.Config{Level: cfg.LogLevel, Format: "json"}
	return zerowrap.New(logConfig), nil
}

func createRuntime(cfg *config.Config, log zerowrap.Logger) (*docker.Runtime, error) {
	var tlsCfg *docker.TLSConfig
	if cfg.TLSEnabled {
		tlsCfg = &docker.TLSConfig{CA: cfg.CA, Cert: cfg.Cert, Key: cfg.Key}
	}
	return docker.New(cfg.RuntimeURL, tlsCfg, log)
}
