package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/hotcalc/internal/app"
	"github.com/dshills/hotcalc/internal/config"
)

// NewRootCommand creates the hotcalc command. Settings come from the
// config file and HOTCALC_* environment variables, not flags.
func NewRootCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "hotcalc",
		Short: "Calculator with hot-reloaded Lua command plugins",
		Long: `hotcalc reads commands such as "add [1,2]" from stdin and prints the result.

Every <name>.lua file in the plugin directory defines a command called
<name>. Plugins are loaded at startup and reloaded, added or removed as
their files change, without restarting.

Configuration is read from hotcalc.toml (or the file named by
HOTCALC_CONFIG) and can be overridden with HOTCALC_* environment variables.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve()
			if err != nil {
				return err
			}

			application, err := app.New(app.Options{
				Config:    cfg,
				Stdin:     cmd.InOrStdin(),
				Stdout:    cmd.OutOrStdout(),
				LogOutput: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(cmd.Context())
		},
	}
}
