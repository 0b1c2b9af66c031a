package cmd

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	environments string
	logLevel     string
}

// Root builds the osbctl command tree. Without a subcommand it starts the interactive shell.
func Root() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "osbctl",
		Short: "Inspect and change service-bus projects across environments",
		Long: `osbctl lists, enables, disables and undeploys service-bus projects and proxy
services on any environment from the catalog, switching between environments
without restarting.

Run without arguments for the interactive shell.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.environments, "environments", "", "Path to environments.yaml (default $OSBCTL_ENVIRONMENTS or ~/.config/osbctl/environments.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newShellCmd(opts),
		newEnvsCmd(opts),
		newProjectsCmd(opts),
		newServicesCmd(opts),
		newDetailsCmd(opts),
		newUndeployCmd(opts),
		newToggleCmd(opts, true),
		newToggleCmd(opts, false),
		newMonitoringCmd(opts),
		newSessionsCmd(opts),
		newHistoryCmd(opts),
		newInitCmd(opts),
	)
	return root
}

// withApp builds the app for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
