// internal/orchestrator/runner.go
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/browser"
	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
	"github.com/tradehelm/kitelaunch/internal/secondfactor"
)

// timeNow is swapped out in tests that pin TOTP codes to a timestamp.
var timeNow = time.Now

// loginFlow is what Run needs from one live browser attempt. The indirection
// keeps the window-ownership logic testable without launching Chrome.
type loginFlow interface {
	Login(ctx context.Context, acct credentials.Account) error
	PartnerLogin(ctx context.Context) error
	Capture(ctx context.Context, stage string)
	Detach()
}

// browserFlow is the real loginFlow: a session, its driver, and the
// artifact writer for failure captures.
type browserFlow struct {
	session   *browser.Session
	driver    *browser.Driver
	artifacts *browser.ArtifactWriter
}

func (f *browserFlow) Login(ctx context.Context, acct credentials.Account) error {
	return f.driver.Login(ctx, acct)
}

func (f *browserFlow) PartnerLogin(ctx context.Context) error {
	return f.driver.PartnerLogin(ctx)
}

func (f *browserFlow) Capture(ctx context.Context, stage string) {
	f.artifacts.CaptureFailure(ctx, f.session, stage)
}

func (f *browserFlow) Detach() {
	f.session.Detach()
}

// LoginRunner is the production Runner: it launches a browser per account,
// drives the login flow, and detaches the window. Windows are never closed,
// successful or not: a failed window stays open so the operator can inspect
// it or finish the login by hand.
type LoginRunner struct {
	cfg    *config.Config
	logger *zap.Logger

	open func(ctx context.Context, accountID string) (loginFlow, error)
}

// NewLoginRunner creates the production runner.
func NewLoginRunner(cfg *config.Config, manager *browser.Manager, artifacts *browser.ArtifactWriter, logger *zap.Logger) *LoginRunner {
	log := logger.Named("runner")
	return &LoginRunner{
		cfg:    cfg,
		logger: log,
		open: func(ctx context.Context, accountID string) (loginFlow, error) {
			session, err := manager.NewSession(ctx, accountID)
			if err != nil {
				return nil, err
			}
			return &browserFlow{
				session:   session,
				driver:    browser.NewDriver(session, cfg, log),
				artifacts: artifacts,
			}, nil
		},
	}
}

// Run performs one account's login end to end.
func (r *LoginRunner) Run(ctx context.Context, acct credentials.Account) Result {
	flow, err := r.open(ctx, acct.ID)
	if err != nil {
		return Result{Err: err, Stage: browser.StageLaunch}
	}

	if err := flow.Login(ctx, acct); err != nil {
		stage := browser.StageOf(err)
		flow.Capture(ctx, stage)
		// The half-logged-in window stays open: the operator can inspect
		// it or finish the login by hand.
		flow.Detach()
		return Result{Err: err, Stage: stage}
	}

	res := Result{Stage: browser.StageVerify}
	if r.cfg.Partner.Enabled {
		res.PartnerTried = true
		if err := flow.PartnerLogin(ctx); err != nil {
			// Partner failure does not fail the primary login; the window is
			// still fully usable and still gets handed over.
			r.logger.Warn("Partner-site login failed.", zap.String("account_id", acct.ID), zap.Error(err))
			flow.Capture(ctx, browser.StagePartner)
		} else {
			res.PartnerOK = true
		}
	}

	flow.Detach()
	return res
}

// DryRunner validates accounts without touching a browser: it classifies the
// second factor and reports what a real run would attempt. TOTP seeds are
// exercised (a code is generated and discarded) so malformed seeds surface
// before a live run.
type DryRunner struct {
	logger *zap.Logger
}

// NewDryRunner creates a rehearsal runner.
func NewDryRunner(logger *zap.Logger) *DryRunner {
	return &DryRunner{logger: logger.Named("dry_run")}
}

// Run checks the account's second factor without opening a browser.
func (r *DryRunner) Run(ctx context.Context, acct credentials.Account) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err, Stage: browser.StageUnexpected}
	}

	factor := secondfactor.Classify(acct.SecondFactor, acct.FactorHint)
	if factor.Configured() {
		if _, err := factor.Code(timeNow()); err != nil {
			return Result{Err: err, Stage: browser.StageSecondFactor}
		}
	}

	r.logger.Info("Dry run: account would attempt login.",
		zap.String("account_id", acct.ID),
		zap.String("second_factor", factor.Kind.String()),
		zap.Bool("second_factor_configured", factor.Configured()))
	return Result{Stage: browser.StageVerify}
}
