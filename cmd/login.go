// -- cmd/login.go --
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/browser"
	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
	"github.com/tradehelm/kitelaunch/internal/observability"
	"github.com/tradehelm/kitelaunch/internal/orchestrator"
	"github.com/tradehelm/kitelaunch/internal/reporting"
	"github.com/tradehelm/kitelaunch/internal/tracker"
)

// newLoginCmd creates and configures the `login` command.
func newLoginCmd() *cobra.Command {
	var (
		allAccounts bool
		accountIDs  []string
		groupName   string
		interactive bool
		dryRun      bool
	)

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Logs the selected accounts into the trading terminal",
		Long: `Opens one browser window per selected account and walks each through the
login flow concurrently. All windows stay open after the program exits,
failed logins included, so they can be finished by hand. Individual account
failures do not affect the exit code; only problems that prevent the run
from happening at all do.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config and env.
			if err := viper.BindPFlag("run.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("credentials.file", cmd.Flags().Lookup("credentials")); err != nil {
				return err
			}
			if err := viper.BindPFlag("credentials.groups_file", cmd.Flags().Lookup("groups-file")); err != nil {
				return err
			}
			return viper.BindPFlag("partner.enabled", cmd.Flags().Lookup("partner"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			sel, err := buildSelection(allAccounts, accountIDs, groupName, interactive)
			if err != nil {
				return err
			}

			accounts, err := loadAccounts(cfg, sel, logger)
			if err != nil {
				return err
			}

			if interactive {
				accounts, err = promptSelection(cmd.InOrStdin(), os.Stdout, accounts)
				if err != nil {
					return err
				}
			}

			console := reporting.NewConsoleSink(os.Stdout)
			console.Banner(Version)
			sink := reporting.MultiSink{console, reporting.NewZapSink(logger)}
			tr := tracker.New(logger)

			var runner orchestrator.Runner
			manager := browser.NewManager(&cfg.Browser, logger)
			if dryRun {
				runner = orchestrator.NewDryRunner(logger)
			} else {
				// One throwaway browser up front: if Chrome cannot start at
				// all, fail the run before burning through every account.
				if err := manager.Probe(ctx); err != nil {
					return err
				}
				artifacts := browser.NewArtifactWriter(cfg.Browser.ArtifactsDir, logger)
				runner = orchestrator.NewLoginRunner(cfg, manager, artifacts, logger)
			}

			orch := orchestrator.New(&cfg.Run, runner, tr, sink, logger, orchestrator.WithDryRun(dryRun))
			report, err := orch.Run(ctx, accounts)
			if err != nil {
				return err
			}

			logger.Info("All attempts processed.",
				zap.String("run_id", report.RunID),
				zap.Int("succeeded", report.Summary.Succeeded),
				zap.Int("failed", report.Summary.Failed))
			return nil
		},
	}

	loginCmd.Flags().BoolVar(&allAccounts, "all", false, "Log in every active account (the default when no selection is given)")
	loginCmd.Flags().StringSliceVar(&accountIDs, "accounts", nil, "Comma-separated account IDs to log in (includes inactive accounts)")
	loginCmd.Flags().StringVar(&groupName, "group", "", "Named account group to log in")
	loginCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick accounts from a prompt before launching")
	loginCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate credentials and second factors without opening browsers")
	loginCmd.Flags().IntP("concurrency", "j", 0, "Maximum simultaneous login attempts (overrides config/env)")
	loginCmd.Flags().Bool("headless", false, "Run browsers headless (overrides config/env)")
	loginCmd.Flags().String("credentials", "", "Path to the credentials CSV file (overrides config/env)")
	loginCmd.Flags().String("groups-file", "", "Path to the groups JSON file (overrides config/env)")
	loginCmd.Flags().Bool("partner", false, "Also log into the partner site in a second tab (overrides config/env)")

	return loginCmd
}

// buildSelection validates the mutually exclusive selection flags. Interactive
// mode starts from the all-active selection and narrows at the prompt.
func buildSelection(all bool, ids []string, group string, interactive bool) (credentials.Selection, error) {
	set := 0
	if all {
		set++
	}
	if len(ids) > 0 {
		set++
	}
	if group != "" {
		set++
	}
	if interactive {
		set++
	}
	if set > 1 {
		return credentials.Selection{}, fmt.Errorf("--all, --accounts, --group and --interactive are mutually exclusive")
	}
	return credentials.Selection{IDs: ids, Group: group}, nil
}

// promptSelection lists the accounts and reads a comma-separated choice of
// list numbers or account ids from in. An empty line keeps the full list.
func promptSelection(in io.Reader, out io.Writer, accounts []credentials.Account) ([]credentials.Account, error) {
	fmt.Fprintln(out, "Select accounts to log in:")
	for i, a := range accounts {
		fmt.Fprintf(out, "  %2d) %s\n", i+1, a.ID)
	}
	fmt.Fprint(out, "accounts (e.g. 1,3 or AB1234; empty for all) > ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading selection: %w", err)
		}
		return accounts, nil
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return accounts, nil
	}

	byID := make(map[string]credentials.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	var picked []credentials.Account
	seen := make(map[string]bool)
	for _, tok := range strings.Split(line, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		var a credentials.Account
		if n, err := strconv.Atoi(tok); err == nil {
			if n < 1 || n > len(accounts) {
				return nil, fmt.Errorf("selection %d out of range 1..%d", n, len(accounts))
			}
			a = accounts[n-1]
		} else {
			var ok bool
			a, ok = byID[tok]
			if !ok {
				return nil, fmt.Errorf("account %q is not in the listed selection", tok)
			}
		}
		if !seen[a.ID] {
			seen[a.ID] = true
			picked = append(picked, a)
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("no accounts selected")
	}
	return picked, nil
}

// loadAccounts reads the credential sources and resolves the selection.
func loadAccounts(cfg *config.Config, sel credentials.Selection, logger *zap.Logger) ([]credentials.Account, error) {
	reader := credentials.NewReader(cfg.Credentials.File, logger)
	accounts, err := reader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	var groups map[string]credentials.Group
	if cfg.Credentials.GroupsFile != "" {
		groups, err = credentials.LoadGroups(cfg.Credentials.GroupsFile)
		if err != nil {
			if errors.Is(err, credentials.ErrSourceNotFound) && sel.Group == "" {
				// A missing groups file only matters when a group is asked for.
				logger.Debug("Groups file not found; continuing without groups.",
					zap.String("path", cfg.Credentials.GroupsFile))
			} else {
				return nil, fmt.Errorf("loading groups: %w", err)
			}
		}
	}

	selected, err := credentials.Resolve(accounts, groups, sel)
	if err != nil {
		return nil, err
	}
	logger.Info("Accounts selected.", zap.Int("selected", len(selected)), zap.Int("total", len(accounts)))
	return selected, nil
}
