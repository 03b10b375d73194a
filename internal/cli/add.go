package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/installer"
)

func init() {
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <package>[@range]",
	Short: "Add a dependency and install it",
	Long: `Resolve and install a single package, then record it in agents.toml.
Without an explicit range the highest available version is chosen and the
manifest records a caret range of it (e.g. "^1.4.0").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, versionRange := splitPackageArg(args[0])

		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		ins := newInstaller()
		result, err := ins.Install(cmd.Context(), installer.Request{
			ProjectRoot:    projectRoot,
			Packages:       map[string]string{name: versionRange},
			UpdateManifest: true,
		})
		if err != nil {
			return err
		}

		printResult(cmd, result)
		return nil
	},
}

// splitPackageArg separates "name@range" into its parts. The "@" of a
// scope prefix ("@scope/pkg") is not a separator.
func splitPackageArg(arg string) (name, versionRange string) {
	at := strings.LastIndex(arg, "@")
	if at <= 0 {
		return arg, ""
	}
	return arg[:at], arg[at+1:]
}
