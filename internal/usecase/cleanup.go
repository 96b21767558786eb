package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/semmidev/alipan-runner/internal/domain"
)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

type Scheduler interface {
	Wait(ctx context.Context) error
}

type Reporter interface {
	Report(ctx context.Context, summary domain.IterationSummary) error
}

type ExitReason int

const (
	ExitEmptyListing ExitReason = iota
	ExitOneShotComplete
	ExitFatal
	ExitSignal
)

func (r ExitReason) String() string {
	switch r {
	case ExitEmptyListing:
		return "empty listing"
	case ExitOneShotComplete:
		return "oneshot complete"
	case ExitFatal:
		return "fatal error"
	case ExitSignal:
		return "signal"
	default:
		return fmt.Sprintf("ExitReason(%d)", int(r))
	}
}

type FatalKind int

const (
	FatalNone FatalKind = iota
	FatalUnauthorized
	FatalResponse
	FatalEndpoint
)

// Exit is why the loop stopped. Err is set for ExitFatal and may be set for
// ExitSignal; Signal is set when the cancellation came from a SignalError.
type Exit struct {
	Reason     ExitReason
	Fatal      FatalKind
	Err        error
	Signal     os.Signal
	Iterations int
}

// SignalError is the cancellation cause installed by the entry point when
// the process receives a signal.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "received signal " + e.Signal.String()
}

type CleanupOptions struct {
	FolderID string
	// Interval between iterations; zero runs once.
	Interval time.Duration
	DryRun   bool
}

// Cleanup empties one folder on the drive, once or on a fixed interval.
// Everything runs sequentially on the caller's goroutine.
type Cleanup struct {
	drive     domain.Drive
	scheduler Scheduler
	reporter  Reporter
	logger    Logger

	folderID string
	interval time.Duration
	dryRun   bool

	driveID string
}

// NewCleanup wires the loop. scheduler may be nil for a zero interval and
// reporter may be nil to disable summaries.
func NewCleanup(
	drive domain.Drive,
	scheduler Scheduler,
	reporter Reporter,
	logger Logger,
	opts CleanupOptions,
) *Cleanup {
	return &Cleanup{
		drive:     drive,
		scheduler: scheduler,
		reporter:  reporter,
		logger:    logger,
		folderID:  opts.FolderID,
		interval:  opts.Interval,
		dryRun:    opts.DryRun,
	}
}

// Run resolves the drive and iterates until the folder is empty, a one-shot
// pass finishes, an error is fatal, or ctx is cancelled. Drive calls already
// in flight are allowed to finish; cancellation is observed between calls.
func (uc *Cleanup) Run(ctx context.Context) Exit {
	if err := interrupted(ctx); err != nil {
		return classify(err, 0)
	}

	driveID, err := uc.drive.ResolveDefaultDrive(context.WithoutCancel(ctx))
	if err != nil {
		return classify(err, 0)
	}
	uc.driveID = driveID

	for iteration := 1; ; iteration++ {
		summary, err := uc.Iterate(ctx, iteration)
		if err != nil {
			return classify(err, iteration)
		}
		if summary.Listed == 0 {
			return Exit{Reason: ExitEmptyListing, Iterations: iteration}
		}

		uc.report(ctx, summary)

		if uc.interval == 0 {
			return Exit{Reason: ExitOneShotComplete, Iterations: iteration}
		}

		uc.logger.Infof("Waiting next loop ... (%d seconds)", int(uc.interval.Seconds()))
		if err := uc.scheduler.Wait(ctx); err != nil {
			return classify(interruptCause(ctx, err), iteration)
		}
	}
}

// Iterate performs one pass: capacity report, listing, then deletion of each
// entry in listing order. Per-item delete failures are logged and counted;
// any other error aborts the pass.
func (uc *Cleanup) Iterate(ctx context.Context, iteration int) (domain.IterationSummary, error) {
	opCtx := context.WithoutCancel(ctx)
	summary := domain.IterationSummary{Iteration: iteration, DriveID: uc.driveID, DryRun: uc.dryRun}

	capacity, err := uc.drive.Capacity(opCtx)
	if err != nil {
		return summary, err
	}
	summary.Capacity = *capacity
	uc.logger.Infof("Drive disk in total: %s, used: %s, free: %s",
		HumanSize(capacity.TotalSize), HumanSize(capacity.UsedSize), HumanSize(capacity.FreeSize()))

	if err := interrupted(ctx); err != nil {
		return summary, err
	}

	uc.logger.Infof("Fetching files from drive_id %s", uc.driveID)
	entries, err := uc.drive.List(opCtx, uc.folderID, "")
	if err != nil {
		return summary, err
	}
	summary.Listed = len(entries)

	if len(entries) == 0 {
		uc.logger.Infof("Not found files, skipped.")
		return summary, nil
	}

	uc.logger.Infof("Prepare to delete %d file(s) ...", len(entries))
	for _, entry := range entries {
		if err := interrupted(ctx); err != nil {
			return summary, err
		}

		uc.logger.Infof("Deleting %s: %s (%s)", entry.Type, entry.Name, HumanSize(entry.Size))

		// The mobile client resolves the path before deleting; the result is unused.
		if _, err := uc.drive.PathOf(opCtx, entry.FileID, ""); err != nil {
			return summary, err
		}

		summary.RemovedBytes += entry.Size
		if uc.dryRun {
			continue
		}

		outcome, err := uc.drive.Delete(opCtx, entry.FileID, "")
		if err != nil {
			return summary, err
		}

		switch outcome.Status {
		case domain.DeleteUnknown:
			summary.Failed++
			uc.logger.Errorf("Delete file failed with unknown error: %s - %s", entry.FileID, entry.Name)
		case domain.DeleteFailed:
			summary.Failed++
			uc.logger.Errorf("Delete file failed with response: %s - %s - %s", entry.FileID, entry.Name, outcome.Details)
		}
	}

	uc.logger.Infof("Result: cleaned disk %s.", HumanSize(summary.RemovedBytes))
	return summary, nil
}

func (uc *Cleanup) report(ctx context.Context, summary domain.IterationSummary) {
	if uc.reporter == nil {
		return
	}
	if err := uc.reporter.Report(context.WithoutCancel(ctx), summary); err != nil {
		uc.logger.Warnf("Failed to send iteration report: %v", err)
	}
}

func classify(err error, iterations int) Exit {
	exit := Exit{Reason: ExitFatal, Err: err, Iterations: iterations}

	var sigErr *SignalError
	switch {
	case errors.As(err, &sigErr):
		exit.Reason = ExitSignal
		exit.Signal = sigErr.Signal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		exit.Reason = ExitSignal
	case errors.Is(err, domain.ErrUnauthorized):
		exit.Fatal = FatalUnauthorized
	case errors.Is(err, domain.ErrInvalidEndpoint):
		exit.Fatal = FatalEndpoint
	default:
		exit.Fatal = FatalResponse
	}

	return exit
}

func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

func interruptCause(ctx context.Context, err error) error {
	if cause := interrupted(ctx); cause != nil {
		return cause
	}
	return err
}

// HumanSize formats bytes with binary units, e.g. "1.5 GiB".
func HumanSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
