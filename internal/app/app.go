package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/semmidev/alipan-runner/internal/adapter/aliyundrive"
	"github.com/semmidev/alipan-runner/internal/adapter/reporter"
	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
	"github.com/semmidev/alipan-runner/internal/infrastructure/logger"
	"github.com/semmidev/alipan-runner/internal/infrastructure/scheduler"
	"github.com/semmidev/alipan-runner/internal/usecase"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.2.1"

const refreshTokenHelpURL = "https://aliyundriver-refresh-token.vercel.app/"

type App struct {
	config    *config.Config
	logger    *logger.Logger
	cleanupUC *usecase.Cleanup
}

func New(cfg *config.Config) (*App, error) {
	base, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := base.WithRun(uuid.NewString())

	driveLog := log.Named("drive")
	httpClient, err := aliyundrive.NewHTTPClient(&cfg.Drive, driveLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize http client: %w", err)
	}

	session := aliyundrive.NewSession(cfg.Drive.TokenURL, cfg.Drive.RefreshToken, httpClient, driveLog)

	client, err := aliyundrive.NewClient(&cfg.Drive, session, httpClient, driveLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize drive client: %w", err)
	}

	var sched usecase.Scheduler
	if cfg.Runner.Interval > 0 {
		sched = scheduler.NewInterval(cfg.IntervalDuration())
	}

	var rep usecase.Reporter
	if cfg.Telegram.Enabled() {
		tg, err := reporter.NewTelegram(&cfg.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			rep = tg
			log.Infof("✓ Telegram reports enabled")
		}
	}

	cleanupUC := usecase.NewCleanup(client, sched, rep, log, usecase.CleanupOptions{
		FolderID: cfg.Drive.FolderID,
		Interval: cfg.IntervalDuration(),
		DryRun:   cfg.Runner.DryRun,
	})

	return &App{
		config:    cfg,
		logger:    log,
		cleanupUC: cleanupUC,
	}, nil
}

// Run blocks until the cleanup loop stops. Every loop exit is logged and
// reported as success; only setup failures return an error.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting alipan resources runner ...")
	a.logger.Infof("cli v%s, run_mode: %s, dry_mode: %t", Version, a.config.RunMode(), a.config.Runner.DryRun)

	exit := a.cleanupUC.Run(ctx)
	logExit(a.logger, exit)
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down runner...")
	a.logger.Close()
}

func logExit(log usecase.Logger, exit usecase.Exit) {
	switch exit.Reason {
	case usecase.ExitEmptyListing:
		log.Infof("Folder is empty, runner finished after %d iteration(s)", exit.Iterations)

	case usecase.ExitOneShotComplete:
		log.Infof("Oneshot run finished")

	case usecase.ExitSignal:
		if exit.Signal != nil {
			log.Errorf("Received signal %s, exiting runner...", exit.Signal)
		} else {
			log.Errorf("Run cancelled, exiting runner...")
		}

	case usecase.ExitFatal:
		switch exit.Fatal {
		case usecase.FatalUnauthorized:
			log.Errorf("Invalid refresh token, try to fetch a new one: %s", refreshTokenHelpURL)
			log.Debugf("authorization failure: %v", exit.Err)
		case usecase.FatalEndpoint:
			log.Errorf("%s", EndpointHint(exit.Err))
		default:
			log.Errorf("Unknown response error: %v", exit.Err)
		}
	}
}

// EndpointHint describes the expected URI shape for an invalid endpoint
// error, or returns the error text unchanged for anything else.
func EndpointHint(err error) string {
	var endpointErr *domain.EndpointError
	if !errors.As(err, &endpointErr) {
		return err.Error()
	}
	return fmt.Sprintf("Invalid endpoint: %q. It must be a valid URI: http(s)://api.example.com or http(s)://127.0.0.1:9091", endpointErr.URL)
}
