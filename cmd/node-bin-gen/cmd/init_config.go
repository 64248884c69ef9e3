package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-bin-gen/internal/config"
)

// errConfigExists is returned when init-config would overwrite a file.
var errConfigExists = errors.New("configuration file already exists")

// newInitConfigCommand writes a configuration file holding the defaults.
func newInitConfigCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	initCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s", errConfigExists, path)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)

			return nil
		},
	}

	initCmd.Flags().StringVarP(&path, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return initCmd
}
