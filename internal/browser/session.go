// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session is one account's dedicated browser process and its primary tab.
// Exactly one of Detach or Close settles ownership: Detach hands the window
// to the operator and drops all handles, Close terminates the process.
type Session struct {
	accountID string
	logger    *zap.Logger

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	mu      sync.Mutex
	settled bool
}

// AccountID returns the account this session belongs to.
func (s *Session) AccountID() string { return s.accountID }

// Detach releases the session without terminating the browser. The window
// stays open after the program exits; that is the product, not a leak.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	// Drop the cancel funcs without invoking them. The OS process is now
	// owned by the operator.
	s.tabCancel = nil
	s.allocCancel = nil
	s.logger.Info("Browser window detached and handed to operator.")
}

// Close terminates the tab and the browser process. Safe to call after
// Detach (it becomes a no-op) and safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Debug("Browser session closed.")
}

// run executes chromedp actions against the session tab, bounded by timeout
// and by the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(s.tabCtx, ctx)
	defer opCancel()

	runCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	return err
}

// Navigate loads the URL in the session tab.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: navigate to %s: %v", ErrNavigationTimeout, url, err)
	}
	return nil
}

// Type clears the element matching selector and sends text to it.
func (s *Session) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	s.logger.Debug("Typing into element.", zap.String("selector", selector), zap.Int("text_length", len(text)))
	action := chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}
	if err := s.run(ctx, timeout, action); err != nil {
		return fmt.Errorf("%w: type into '%s': %v", ErrElementNotFound, selector, err)
	}
	return nil
}

// Click clicks the element matching selector.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	s.logger.Debug("Clicking element.", zap.String("selector", selector))
	action := chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
	if err := s.run(ctx, timeout, action); err != nil {
		return fmt.Errorf("%w: click '%s': %v", ErrElementNotFound, selector, err)
	}
	return nil
}

// WaitVisible blocks until the element appears or the timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: wait for '%s': %v", ErrElementNotFound, selector, err)
	}
	return nil
}

// Location returns the tab's current URL.
func (s *Session) Location(ctx context.Context, timeout time.Duration) (string, error) {
	var url string
	if err := s.run(ctx, timeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

// OpenTab opens a second tab in the same browser process and navigates it.
// The returned cleanup only drops the tab handle; the tab itself stays open
// with the rest of the window on detach.
func (s *Session) OpenTab(ctx context.Context, url string, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.tabCtx)

	opCtx, opCancel := CombineContext(tabCtx, ctx)
	defer opCancel()
	navCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("%w: open tab %s: %v", ErrNavigationTimeout, url, err)
	}
	return tabCtx, tabCancel, nil
}

// Sleep pauses between interactions, honouring cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.tabCtx.Done():
		return errors.New("browser closed during pause")
	}
}

// CombineContext returns a context that is cancelled when either parent is.
// Values (including the CDP target) come from the primary context.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
