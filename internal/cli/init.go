package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/terrazul-dev/tz/internal/manifest"
)

var initName string

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Package name (defaults to @local/<directory>)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an agents.toml in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		if manifest.Exists(projectRoot) {
			return fmt.Errorf("project already initialized: %s exists", manifest.Path(projectRoot))
		}

		name := initName
		if name == "" {
			name = "@local/" + filepath.Base(projectRoot)
		}

		m := &manifest.Manifest{
			Package: manifest.Package{Name: name, Version: "0.1.0"},
		}
		if err := manifest.Write(projectRoot, m); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", manifest.FileName)
		return nil
	},
}
