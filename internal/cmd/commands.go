package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flo-mic/osbctl/internal/action"
	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/report"
)

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}
}

func newEnvsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List the environments from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				report.Environments(a.out, a.catalog, "")
				report.EnvironmentIndex(a.out, a.catalog.List())
				return nil
			})
		},
	}
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects <env>",
		Short: "List deployed projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.connect(cmd.Context(), args[0]); err != nil {
					return err
				}
				res, err := a.disp.Dispatch(cmd.Context(), action.ListProjects, action.Request{})
				if err != nil {
					return err
				}
				report.Projects(a.out, a.envName(), res.Projects)
				return nil
			})
		},
	}
}

func newServicesCmd(opts *rootOptions) *cobra.Command {
	var kind string
	c := &cobra.Command{
		Use:   "services <env>",
		Short: "List proxy or business services with URI and work manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var act action.Action
			switch api.ServiceKind(kind) {
			case api.KindProxy:
				act = action.ListProxyServices
			case api.KindBusiness:
				act = action.ListBusinessServices
			default:
				return fmt.Errorf("--kind must be proxy or business, got %q", kind)
			}
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.connect(cmd.Context(), args[0]); err != nil {
					return err
				}
				res, err := a.disp.Dispatch(cmd.Context(), act, action.Request{})
				if err != nil {
					return err
				}
				report.Services(a.out, a.envName(), api.ServiceKind(kind), res.Services)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&kind, "kind", "k", string(api.KindProxy), "Service kind (proxy, business)")
	return c
}

func newDetailsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details <env> <project>",
		Short: "Show the services and resources of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.connect(cmd.Context(), args[0]); err != nil {
					return err
				}
				res, err := a.disp.Dispatch(cmd.Context(), action.ProjectDetails, action.Request{Project: args[1]})
				if err != nil {
					return err
				}
				report.Details(a.out, a.envName(), res.Details)
				return nil
			})
		},
	}
}

func newUndeployCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "undeploy <env> <project>...",
		Short: "Undeploy projects together with the work managers and queues only they use",
		Long: `Undeploy removes each project, then every JMS queue and work manager that no
other deployed project references. Shared resources are kept. Projects are
processed one after another, each with its own plan.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.connect(cmd.Context(), args[0]); err != nil {
					return err
				}
				var failed []string
				for _, project := range args[1:] {
					if err := a.undeploy(cmd.Context(), project, yes); err != nil {
						a.errorf("%s: %v", project, err)
						failed = append(failed, project)
					}
				}
				if len(failed) > 0 {
					return fmt.Errorf("undeploy failed for %s", strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return c
}

func newToggleCmd(opts *rootOptions, enable bool) *cobra.Command {
	use, short := "disable", "Disable proxy services"
	if enable {
		use, short = "enable", "Enable proxy services"
	}
	return &cobra.Command{
		Use:   use + " <env> <path>...",
		Short: short,
		Long:  short + ". Paths have the form project/folder/.../name.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return a.toggle(cmd.Context(), action.ToggleServices, args[0], args[1:], enable)
			})
		},
	}
}

func newMonitoringCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "monitoring <env> on|off <path>...",
		Short:     "Switch monitoring of proxy services on or off",
		Args:      cobra.MinimumNArgs(3),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch strings.ToLower(args[1]) {
			case "on":
				enable = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			return withApp(cmd, opts, func(a *app) error {
				return a.toggle(cmd.Context(), action.ToggleMonitoring, args[0], args[2:], enable)
			})
		},
	}
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var discard bool
	c := &cobra.Command{
		Use:   "sessions <env>",
		Short: "List open change sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.connect(cmd.Context(), args[0]); err != nil {
					return err
				}
				if discard {
					_, err := a.disp.Dispatch(cmd.Context(), action.DiscardSessions, action.Request{})
					return err
				}
				s, err := a.conn.Session()
				if err != nil {
					return err
				}
				names, err := s.ListChangeSessions(cmd.Context())
				if err != nil {
					return err
				}
				report.Sessions(a.out, a.envName(), names)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&discard, "discard", false, "Discard all open sessions (not supported)")
	return c
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recorded mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if a.journal == nil {
					return fmt.Errorf("journal is disabled (OSBCTL_JOURNAL=%s)", a.settings.Journal)
				}
				entries, err := a.journal.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				report.History(a.out, entries)
				return nil
			})
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	return c
}
