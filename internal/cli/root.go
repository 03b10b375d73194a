package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/branding"
	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/updater"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` resolves, verifies, and installs AI agent configuration
packages declared in agents.toml, producing a deterministic agents-lock.toml
and a linked agent_modules/ tree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Skip the banner for commands that print machine-readable output.
		name := cmd.Name()
		if name == "version" || name == "get" || name == cobra.ShellCompRequestCmd {
			return
		}

		config.Load()
		ch := updater.New(buildVersion, config.NewContext().RegistryURL)
		ch.CheckAndPrintBanner(os.Stderr, config.Dir())
	},
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}
