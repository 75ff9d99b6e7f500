package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"calrepeat/internal/config"
)

type initResult struct {
	Config  string `json:"config"`
	Created bool   `json:"created"`
}

func (r initResult) Text() string {
	if !r.Created {
		return fmt.Sprintf("Configuration already exists at %s\n", r.Config)
	}
	return fmt.Sprintf("Created default configuration at %s\n", r.Config)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write a default configuration file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			path := rootOpts.ConfigPath
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return f.Fail("failed to locate configuration", err)
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return f.Success(initResult{Config: path})
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return f.Fail("failed to inspect configuration", err)
			}

			var err error
			if rootOpts.ConfigPath == "" {
				path, err = config.WriteDefaultConfig()
			} else {
				err = config.WriteConfig(path, config.DefaultConfig())
			}
			if err != nil {
				return f.Fail("failed to write configuration", err)
			}
			return f.Success(initResult{Config: path, Created: true})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}
