// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tradehelm/kitelaunch/internal/browser"
	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
	"github.com/tradehelm/kitelaunch/internal/reporting"
	"github.com/tradehelm/kitelaunch/internal/tracker"
)

// Result is the outcome of one account's attempt as reported by a Runner.
type Result struct {
	Err          error
	Stage        string
	PartnerTried bool
	PartnerOK    bool
}

// Runner executes the login flow for a single account. The production
// implementation drives a browser; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, acct credentials.Account) Result
}

// Orchestrator fans login attempts out across accounts, bounded by the
// configured concurrency and paced by the launch stagger. Every registered
// account reaches exactly one terminal state before Run returns, including
// on panic or cancellation.
type Orchestrator struct {
	cfg     *config.RunConfig
	runner  Runner
	tracker *tracker.Tracker
	sink    reporting.Sink
	logger  *zap.Logger
	dryRun  bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDryRun marks the run as a rehearsal in the final report.
func WithDryRun(dry bool) Option {
	return func(o *Orchestrator) { o.dryRun = dry }
}

// New creates an Orchestrator.
func New(cfg *config.RunConfig, runner Runner, tr *tracker.Tracker, sink reporting.Sink, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		tracker: tr,
		sink:    sink,
		logger:  logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes login attempts for all accounts and returns the final report.
// The error return covers orchestration problems only; individual account
// failures live in the report.
func (o *Orchestrator) Run(ctx context.Context, accounts []credentials.Account) (reporting.RunReport, error) {
	report := reporting.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    o.dryRun,
	}
	if len(accounts) == 0 {
		return report, fmt.Errorf("no accounts selected")
	}

	concurrency := int64(o.cfg.Concurrency)
	if concurrency <= 0 {
		concurrency = 1
	}
	o.logger.Info("Starting run.",
		zap.String("run_id", report.RunID),
		zap.Int("accounts", len(accounts)),
		zap.Int64("concurrency", concurrency),
		zap.Bool("dry_run", o.dryRun))

	for _, acct := range accounts {
		o.tracker.Register(acct.ID)
	}

	sem := semaphore.NewWeighted(concurrency)
	// Browser launches are staggered so a burst of Chrome processes does not
	// starve the host or trip the site's rate limits.
	limiter := rate.NewLimiter(rate.Every(o.cfg.LaunchStagger), 1)
	if o.cfg.LaunchStagger <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	var wg sync.WaitGroup
	for _, acct := range accounts {
		wg.Add(1)
		go func(acct credentials.Account) {
			defer wg.Done()
			o.attempt(ctx, sem, limiter, acct)
		}(acct)
	}
	wg.Wait()

	report.FinishedAt = time.Now()
	report.Attempts = o.tracker.Snapshot()
	report.Summary = o.tracker.Summarize()
	o.sink.Summary(report)

	o.logger.Info("Run finished.",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("failed", report.Summary.Failed))
	return report, nil
}

// attempt runs one account through the runner, settling its tracker entry
// exactly once no matter how the runner exits.
func (o *Orchestrator) attempt(ctx context.Context, sem *semaphore.Weighted, limiter *rate.Limiter, acct credentials.Account) {
	if err := sem.Acquire(ctx, 1); err != nil {
		o.settle(acct.ID, Result{Err: fmt.Errorf("run cancelled before start: %w", err), Stage: browser.StageUnexpected})
		return
	}
	defer sem.Release(1)

	if err := limiter.Wait(ctx); err != nil {
		o.settle(acct.ID, Result{Err: fmt.Errorf("run cancelled before start: %w", err), Stage: browser.StageUnexpected})
		return
	}

	o.tracker.Begin(acct.ID)
	reporting.Emit(o.sink, acct.ID, reporting.LevelInfo, "login attempt started")

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Login attempt panicked.", zap.String("account_id", acct.ID), zap.Any("panic", r))
			o.settle(acct.ID, Result{Err: fmt.Errorf("panic: %v", r), Stage: browser.StageUnexpected})
		}
	}()

	o.settle(acct.ID, o.runner.Run(ctx, acct))
}

func (o *Orchestrator) settle(accountID string, res Result) {
	if res.PartnerTried {
		o.tracker.SetPartnerResult(accountID, res.PartnerOK)
	}
	if res.Err != nil {
		o.tracker.Complete(accountID, tracker.StatusFailed, res.Stage, res.Err.Error())
		reporting.Emit(o.sink, accountID, reporting.LevelError,
			fmt.Sprintf("login failed at stage %s: %v", res.Stage, res.Err))
		return
	}
	o.tracker.Complete(accountID, tracker.StatusSuccess, res.Stage, "")
	msg := "login succeeded"
	if res.PartnerTried && !res.PartnerOK {
		msg = "login succeeded, partner-site login failed"
		reporting.Emit(o.sink, accountID, reporting.LevelWarning, msg)
		return
	}
	reporting.Emit(o.sink, accountID, reporting.LevelSuccess, msg)
}
