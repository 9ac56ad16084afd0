// internal/orchestrator/runner_test.go
package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/browser"
	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
)

// fakeFlow records how the runner settles window ownership.
type fakeFlow struct {
	loginErr   error
	partnerErr error

	captured []string
	detached int
}

func (f *fakeFlow) Login(ctx context.Context, acct credentials.Account) error { return f.loginErr }
func (f *fakeFlow) PartnerLogin(ctx context.Context) error                    { return f.partnerErr }
func (f *fakeFlow) Capture(ctx context.Context, stage string)                 { f.captured = append(f.captured, stage) }
func (f *fakeFlow) Detach()                                                   { f.detached++ }

func newTestLoginRunner(cfg *config.Config, flow *fakeFlow, openErr error) *LoginRunner {
	return &LoginRunner{
		cfg:    cfg,
		logger: zap.NewNop(),
		open: func(ctx context.Context, accountID string) (loginFlow, error) {
			if openErr != nil {
				return nil, openErr
			}
			return flow, nil
		},
	}
}

func TestLoginRunnerDetachesOnSuccess(t *testing.T) {
	flow := &fakeFlow{}
	r := newTestLoginRunner(&config.Config{}, flow, nil)

	res := r.Run(context.Background(), credentials.Account{ID: "AB1234"})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, flow.detached)
	assert.Empty(t, flow.captured)
}

func TestLoginRunnerLeavesFailedWindowOpen(t *testing.T) {
	flow := &fakeFlow{loginErr: browser.FailStage(browser.StageCredentials, errors.New("element not found"))}
	r := newTestLoginRunner(&config.Config{}, flow, nil)

	res := r.Run(context.Background(), credentials.Account{ID: "AB1234"})

	require.Error(t, res.Err)
	assert.Equal(t, browser.StageCredentials, res.Stage)
	assert.Equal(t, []string{browser.StageCredentials}, flow.captured)
	// The window is handed over even on failure so the login can be
	// finished by hand.
	assert.Equal(t, 1, flow.detached)
}

func TestLoginRunnerLaunchFailureStage(t *testing.T) {
	r := newTestLoginRunner(&config.Config{}, nil, browser.ErrBrowserUnavailable)

	res := r.Run(context.Background(), credentials.Account{ID: "AB1234"})

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, browser.ErrBrowserUnavailable)
	assert.Equal(t, browser.StageLaunch, res.Stage)
}

func TestLoginRunnerPartnerFailureDoesNotFailLogin(t *testing.T) {
	cfg := &config.Config{Partner: config.PartnerConfig{Enabled: true}}

	t.Run("partner fails", func(t *testing.T) {
		flow := &fakeFlow{partnerErr: browser.FailStage(browser.StagePartner, errors.New("element not found"))}
		res := newTestLoginRunner(cfg, flow, nil).Run(context.Background(), credentials.Account{ID: "AB1234"})

		require.NoError(t, res.Err)
		assert.True(t, res.PartnerTried)
		assert.False(t, res.PartnerOK)
		assert.Equal(t, []string{browser.StagePartner}, flow.captured)
		assert.Equal(t, 1, flow.detached)
	})

	t.Run("partner succeeds", func(t *testing.T) {
		flow := &fakeFlow{}
		res := newTestLoginRunner(cfg, flow, nil).Run(context.Background(), credentials.Account{ID: "AB1234"})

		require.NoError(t, res.Err)
		assert.True(t, res.PartnerTried)
		assert.True(t, res.PartnerOK)
	})
}
