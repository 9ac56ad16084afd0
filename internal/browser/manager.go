// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/config"
)

const probeTimeout = 30 * time.Second

// Manager launches Chrome processes for login sessions. Every account gets
// its own browser process rather than a tab in a shared one: the windows are
// a user-facing deliverable and must outlive the program, so their allocator
// contexts are derived from context.Background and are never cancelled by
// the run. Failed logins keep their window too, for manual completion.
type Manager struct {
	logger *zap.Logger
	cfg    *config.BrowserConfig
}

// NewManager creates a browser manager. No process is launched until Probe
// or NewSession is called.
func NewManager(cfg *config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
}

// Probe launches and discards one browser to confirm Chrome is available and
// responsive. A failure here is fatal to the whole run: if one browser cannot
// start, none can.
func (m *Manager) Probe(ctx context.Context) error {
	m.logger.Info("Probing browser availability...")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions(true)...)
	defer allocCancel()

	probeCtx, cancelProbe := context.WithTimeout(allocCtx, probeTimeout)
	defer cancelProbe()
	tabCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	m.logger.Info("Browser probe succeeded.")
	return nil
}

// NewSession launches a dedicated browser process for one account. The
// returned session owns the process until Detach or Close is called.
func (m *Manager) NewSession(ctx context.Context, accountID string) (*Session, error) {
	// Deliberately not derived from the run context: a cancelled run must
	// not tear down windows that already completed their login.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), m.buildAllocatorOptions(false)...)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		accountID:   accountID,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      m.logger.Named("session").With(zap.String("account_id", accountID)),
	}

	// Force the process to actually start so failures surface here rather
	// than inside the first navigation. A window that never started is the
	// one thing that does get closed.
	startCtx, cancelStart := context.WithTimeout(tabCtx, probeTimeout)
	defer cancelStart()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	s.logger.Info("Browser session started.")
	return s, nil
}

// buildAllocatorOptions assembles Chrome flags. The automation banner and
// navigator.webdriver are suppressed because the target site's login page is
// meant to be usable by the account holder after the program exits.
func (m *Manager) buildAllocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	// Later Flag values override the defaults, so disabling a default flag
	// here removes it from the command line.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Suppress the "controlled by automated software" infobar.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", headless || m.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", headless || m.cfg.Headless),
		chromedp.Flag("start-maximized", true),
	)

	// Custom arguments from configuration, "--name=value" or "--name".
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}
