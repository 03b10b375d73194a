package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/linker"
	"github.com/terrazul-dev/tz/internal/lockfile"
	"github.com/terrazul-dev/tz/internal/manifest"
)

func init() {
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:   "remove <package>",
	Short: "Remove a dependency",
	Long: `Remove a package from agents.toml, drop its lockfile entry, and
unlink it from agent_modules/. The extracted content stays in the shared
store for other projects.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		if err := manifest.RemoveDependency(projectRoot, name); err != nil {
			return err
		}

		if data, err := lockfile.Read(projectRoot); err == nil && data != nil {
			if _, ok := data.Packages[name]; ok {
				delete(data.Packages, name)
				if err := lockfile.Write(data, projectRoot); err != nil {
					return err
				}
			}
		}

		if err := linker.Unlink(projectRoot, name); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", name)
		return nil
	},
}
