// File: internal/browser/driver_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
)

func newTestDriver(t *testing.T, partner config.PartnerConfig) *Driver {
	t.Helper()
	s, _, _ := newDetachedTestSession(t)
	cfg := &config.Config{
		Site: config.SiteConfig{
			LoginURL:       "https://kite.zerodha.com/",
			FactorSelector: "#userid",
		},
		Browser: config.BrowserConfig{
			NavigationTimeout: time.Second,
			ElementTimeout:    time.Second,
			SecondFactorWait:  time.Second,
		},
		Partner: partner,
	}
	return NewDriver(s, cfg, zap.NewNop())
}

func TestSecondFactorWaitDistinguishesCancellation(t *testing.T) {
	acct := credentials.Account{ID: "AB1234", SecondFactor: "123456"}

	t.Run("cancelled run is reported as cancellation", func(t *testing.T) {
		d := newTestDriver(t, config.PartnerConfig{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := d.completeSecondFactor(ctx, acct)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("absent form without cancellation is not an error", func(t *testing.T) {
		d := newTestDriver(t, config.PartnerConfig{})

		// The wait fails (no browser behind the session) but the run is
		// live, so the flow continues to verification.
		assert.NoError(t, d.completeSecondFactor(context.Background(), acct))
	})
}

func TestPartnerPostLoginNothingConfigured(t *testing.T) {
	d := newTestDriver(t, config.PartnerConfig{Enabled: true})

	// No steps and no account buttons: nothing to drive.
	assert.NoError(t, d.partnerPostLogin(context.Background(), context.Background()))
}
