// internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
	"github.com/tradehelm/kitelaunch/internal/secondfactor"
)

const verifyPollInterval = 500 * time.Millisecond

// Driver walks one browser session through the login flow: navigate, submit
// credentials, complete the second factor, verify the landing page, and
// optionally log into the partner site in a second tab. Stages run once
// each; there are no per-stage retries, failures are reported and the next
// account is unaffected.
type Driver struct {
	session *Session
	site    *config.SiteConfig
	timing  *config.BrowserConfig
	partner *config.PartnerConfig
	logger  *zap.Logger
}

// NewDriver binds a session to the site configuration.
func NewDriver(session *Session, cfg *config.Config, logger *zap.Logger) *Driver {
	return &Driver{
		session: session,
		site:    &cfg.Site,
		timing:  &cfg.Browser,
		partner: &cfg.Partner,
		logger:  logger.Named("driver").With(zap.String("account_id", session.AccountID())),
	}
}

// Session returns the underlying browser session, for artifact capture and
// ownership settlement by the caller.
func (d *Driver) Session() *Session { return d.session }

// Login performs the full primary-site login for the account. The returned
// error carries the stage it occurred in.
func (d *Driver) Login(ctx context.Context, acct credentials.Account) error {
	if err := d.navigate(ctx); err != nil {
		return FailStage(StageNavigate, err)
	}
	if err := d.submitCredentials(ctx, acct); err != nil {
		return FailStage(StageCredentials, err)
	}
	if err := d.completeSecondFactor(ctx, acct); err != nil {
		return FailStage(StageSecondFactor, err)
	}
	if err := d.verify(ctx); err != nil {
		return FailStage(StageVerify, err)
	}
	d.logger.Info("Login verified.")
	return nil
}

func (d *Driver) navigate(ctx context.Context) error {
	if err := d.session.Navigate(ctx, d.site.LoginURL, d.timing.NavigationTimeout); err != nil {
		return err
	}
	return d.session.Sleep(ctx, d.timing.ShortDelay)
}

func (d *Driver) submitCredentials(ctx context.Context, acct credentials.Account) error {
	if err := d.session.Type(ctx, d.site.UserSelector, acct.ID, d.timing.ElementTimeout); err != nil {
		return err
	}
	if err := d.session.Sleep(ctx, d.timing.InterKeyDelay); err != nil {
		return err
	}
	if err := d.session.Type(ctx, d.site.PasswordSelector, acct.Secret, d.timing.ElementTimeout); err != nil {
		return err
	}
	if err := d.session.Sleep(ctx, d.timing.InterKeyDelay); err != nil {
		return err
	}
	if err := d.session.Click(ctx, d.site.SubmitSelector, d.timing.ElementTimeout); err != nil {
		return err
	}
	// The site takes a few seconds to swap the credential form for the
	// second-factor form.
	return d.session.Sleep(ctx, d.timing.PostLoginClickDelay)
}

// completeSecondFactor fills the 2FA form if the site presents one. Accounts
// without 2FA enabled skip straight to verification, so an absent form
// within the wait window is not an error.
func (d *Driver) completeSecondFactor(ctx context.Context, acct credentials.Account) error {
	if err := d.session.WaitVisible(ctx, d.site.FactorSelector, d.timing.SecondFactorWait); err != nil {
		// A cancelled run also surfaces as a failed wait; report it as
		// such rather than as an absent form.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("waiting for second-factor form: %w", ctxErr)
		}
		d.logger.Debug("Second-factor form did not appear; continuing to verification.")
		return nil
	}

	factor := secondfactor.Classify(acct.SecondFactor, acct.FactorHint)
	if !factor.Configured() {
		// Nothing to submit. Verification will fail on its own and report
		// the page the login is actually stuck at.
		d.logger.Warn("Second-factor form is present but the account has no PIN or TOTP seed configured.")
		return nil
	}

	code, err := factor.Code(time.Now())
	if err != nil {
		return err
	}
	d.logger.Debug("Submitting second factor.", zap.String("kind", factor.Kind.String()))

	if err := d.session.Type(ctx, d.site.FactorSelector, code, d.timing.ElementTimeout); err != nil {
		return err
	}
	if err := d.session.Sleep(ctx, d.timing.PostFactorKeyDelay); err != nil {
		return err
	}
	if err := d.session.Click(ctx, d.site.SubmitSelector, d.timing.ElementTimeout); err != nil {
		return err
	}
	return d.session.Sleep(ctx, d.timing.PostSubmitDelay)
}

// verify polls for a post-login indicator: first the dashboard URL prefix,
// then the landing-page element if one is configured.
func (d *Driver) verify(ctx context.Context) error {
	deadline := time.Now().Add(d.timing.VerifyTimeout)

	for {
		url, err := d.session.Location(ctx, d.timing.ElementTimeout)
		if err == nil && d.site.DashboardURLPrefix != "" && strings.HasPrefix(url, d.site.DashboardURLPrefix) {
			return nil
		}
		if err == nil && d.site.DashboardSelector != "" {
			var present bool
			script := fmt.Sprintf("document.querySelector(%q) !== null", d.site.DashboardSelector)
			if evalErr := d.session.run(ctx, d.timing.ElementTimeout, chromedp.Evaluate(script, &present)); evalErr == nil && present {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still at %q after %s", ErrVerificationFailed, url, d.timing.VerifyTimeout)
		}
		if err := d.session.Sleep(ctx, verifyPollInterval); err != nil {
			return err
		}
	}
}

// PartnerLogin opens the partner site in a second tab of the same window and
// logs in there. Callers treat a failure here as non-fatal to the primary
// login: the attempt still counts as succeeded, only the partner flag drops.
func (d *Driver) PartnerLogin(ctx context.Context) error {
	if !d.partner.Enabled {
		return nil
	}
	d.logger.Info("Starting partner-site login in a new tab.", zap.String("url", d.partner.URL))

	tabCtx, _, err := d.session.OpenTab(ctx, d.partner.URL, d.timing.NavigationTimeout)
	if err != nil {
		return FailStage(StagePartner, err)
	}
	// The tab handle is intentionally not cancelled: the partner tab is part
	// of the window handed to the operator.

	steps := []struct {
		name   string
		action chromedp.Action
	}{
		{"open form", d.clickAction(d.partner.OpenFormSelector)},
		{"phone", d.typeAction(d.partner.PhoneSelector, d.partner.Phone)},
		{"password", d.typeAction(d.partner.PasswordSelector, d.partner.Password)},
		{"submit", d.clickAction(d.partner.SubmitSelector)},
	}

	for _, step := range steps {
		if err := d.runInTab(ctx, tabCtx, step.action); err != nil {
			return FailStage(StagePartner, fmt.Errorf("%s: %w", step.name, err))
		}
		if err := d.session.Sleep(ctx, d.timing.InterKeyDelay); err != nil {
			return FailStage(StagePartner, err)
		}
	}
	d.logger.Info("Partner-site login submitted.")

	if err := d.partnerPostLogin(ctx, tabCtx); err != nil {
		return FailStage(StagePartner, err)
	}
	return nil
}

// partnerPostLogin walks the broker-setup navigation after the partner login:
// dismiss the ad overlay, open the broker setup page, pick "Unlisted Broker",
// and click the account's own login button when one is configured.
func (d *Driver) partnerPostLogin(ctx, tabCtx context.Context) error {
	if len(d.partner.PostLoginSteps) == 0 && len(d.partner.AccountButtons) == 0 {
		return nil
	}

	// The site shows a promo overlay after login; Escape dismisses it.
	if err := d.runInTab(ctx, tabCtx, chromedp.KeyEvent(kb.Escape)); err != nil {
		return fmt.Errorf("dismissing overlay: %w", err)
	}
	if err := d.session.Sleep(ctx, d.timing.ShortDelay); err != nil {
		return err
	}

	for _, step := range d.partner.PostLoginSteps {
		if err := d.clickWithFallback(ctx, tabCtx, step); err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		if err := d.session.Sleep(ctx, d.timing.ShortDelay); err != nil {
			return err
		}
	}

	button, ok := d.partner.AccountButtons[d.session.AccountID()]
	if !ok {
		d.logger.Warn("No partner login button configured for this account; stopping at the broker page.")
		return nil
	}
	if err := d.clickWithFallback(ctx, tabCtx, button); err != nil {
		return fmt.Errorf("account login button: %w", err)
	}
	d.logger.Info("Partner broker login clicked.")
	return d.session.Sleep(ctx, d.timing.PostSubmitDelay)
}

// clickWithFallback clicks the step's primary locator, falling back to the
// alternate one when the primary does not resolve.
func (d *Driver) clickWithFallback(ctx, tabCtx context.Context, step config.PartnerStep) error {
	err := d.runInTab(ctx, tabCtx, d.searchClickAction(step.Selector))
	if err == nil || step.Fallback == "" {
		return err
	}
	d.logger.Warn("Primary locator failed; trying fallback.", zap.String("step", step.Name))
	return d.runInTab(ctx, tabCtx, d.searchClickAction(step.Fallback))
}

// searchClickAction clicks via DOM search, which resolves CSS selectors,
// XPath expressions and plain text alike. The broker-setup locators are
// XPaths, one of them matching by text content.
func (d *Driver) searchClickAction(selector string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.Click(selector, chromedp.BySearch),
	}
}

func (d *Driver) clickAction(selector string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
}

func (d *Driver) typeAction(selector, text string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}
}

func (d *Driver) runInTab(ctx, tabCtx context.Context, action chromedp.Action) error {
	opCtx, opCancel := CombineContext(tabCtx, ctx)
	defer opCancel()
	runCtx, cancel := context.WithTimeout(opCtx, d.timing.ElementTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, action); err != nil {
		return fmt.Errorf("%w: %v", ErrElementNotFound, err)
	}
	return nil
}
