package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/installer"
	"github.com/terrazul-dev/tz/internal/registry"
)

func init() {
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install all dependencies declared in agents.toml",
	Long: `Resolve every dependency range in agents.toml to a concrete version,
download and verify the packages, and link them into agent_modules/.
Packages already locked at a satisfying version are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		ins := newInstaller()
		result, err := ins.Install(cmd.Context(), installer.Request{ProjectRoot: projectRoot})
		if err != nil {
			return err
		}

		printResult(cmd, result)
		return nil
	},
}

// newInstaller builds an installer from loaded configuration.
func newInstaller() *installer.Installer {
	config.Load()
	cfg := config.NewContext()
	return installer.New(cfg, registry.NewClient(cfg), installer.WithCLIVersion(buildVersion))
}

// printResult writes the per-package outcome and any resolution warnings.
func printResult(cmd *cobra.Command, result *installer.Result) {
	out := cmd.OutOrStdout()

	if len(result.Installed) == 0 {
		fmt.Fprintln(out, "Nothing to install. All packages are up to date.")
	}
	for _, pkg := range result.Installed {
		fmt.Fprintf(out, "  ✓ %s@%s\n", pkg.Name, pkg.Version)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  ⚠ %s\n", w)
	}
	if len(result.Installed) > 0 {
		fmt.Fprintf(out, "\n✓ Installed %d packages.\n", len(result.Installed))
	}
}
