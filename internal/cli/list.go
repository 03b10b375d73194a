package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/lockfile"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locked packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		data, err := lockfile.Read(projectRoot)
		if err != nil {
			return err
		}
		if data == nil || len(data.Packages) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No packages installed.")
			return nil
		}

		names := make([]string, 0, len(data.Packages))
		for name := range data.Packages {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			pkg := data.Packages[name]
			line := fmt.Sprintf("%s@%s", name, pkg.Version)
			if pkg.Yanked {
				line += " (yanked)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}
