// -- cmd/accounts.go --
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tradehelm/kitelaunch/internal/config"
	"github.com/tradehelm/kitelaunch/internal/credentials"
	"github.com/tradehelm/kitelaunch/internal/observability"
	"github.com/tradehelm/kitelaunch/internal/secondfactor"
)

// newAccountsCmd creates the `accounts` command: a read-only listing of the
// configured accounts and groups. Secrets are never printed, only whether a
// second factor is configured and of which kind.
func newAccountsCmd() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Lists the configured accounts and groups",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("credentials.file", cmd.Flags().Lookup("credentials")); err != nil {
				return err
			}
			return viper.BindPFlag("credentials.groups_file", cmd.Flags().Lookup("groups-file"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			reader := credentials.NewReader(cfg.Credentials.File, logger)
			accounts, err := reader.Load()
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			dim := lipgloss.NewStyle().Faint(true)
			active := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
			inactive := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

			fmt.Fprintf(os.Stdout, "%d account(s) in %s\n\n", len(accounts), cfg.Credentials.File)
			for _, a := range accounts {
				state := active.Render("active")
				if !a.Active {
					state = inactive.Render("inactive")
				}
				factor := secondfactor.Classify(a.SecondFactor, a.FactorHint)
				factorDesc := "none"
				if factor.Configured() {
					factorDesc = factor.Kind.String()
				}
				fmt.Fprintf(os.Stdout, "  %-12s %s %s\n", a.ID, state, dim.Render("second factor: "+factorDesc))
			}

			groups, err := credentials.LoadGroups(cfg.Credentials.GroupsFile)
			if err != nil {
				// The listing is still useful without groups.
				fmt.Fprintf(os.Stdout, "\n%s\n", dim.Render("no groups loaded"))
				return nil
			}

			names := make([]string, 0, len(groups))
			for name := range groups {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Fprintf(os.Stdout, "\n%d group(s) in %s\n\n", len(groups), cfg.Credentials.GroupsFile)
			for _, name := range names {
				g := groups[name]
				fmt.Fprintf(os.Stdout, "  %-12s %d account(s) %s\n", g.Name, len(g.AccountIDs), dim.Render(g.Description))
			}
			return nil
		},
	}

	accountsCmd.Flags().String("credentials", "", "Path to the credentials CSV file (overrides config/env)")
	accountsCmd.Flags().String("groups-file", "", "Path to the groups JSON file (overrides config/env)")

	return accountsCmd
}
