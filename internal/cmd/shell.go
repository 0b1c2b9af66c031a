package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flo-mic/osbctl/internal/action"
	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/report"
)

const quit = action.Action(-1)

func runShell(cmd *cobra.Command, opts *rootOptions) error {
	return withApp(cmd, opts, func(a *app) error {
		return a.shell(cmd.Context())
	})
}

// shell is the interactive loop: pick an environment once, then actions until quit.
func (a *app) shell(ctx context.Context) error {
	for {
		if a.conn.State() != connection.Connected {
			if err := a.selectEnvironment(ctx); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				a.errorf("%v", err)
				continue
			}
		}

		act, err := a.selectAction()
		if errors.Is(err, huh.ErrUserAborted) || act == quit {
			return nil
		}
		if err != nil {
			return err
		}
		if err := a.runAction(ctx, act); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				continue
			}
			a.errorf("%s: %v", act, err)
		}
		fmt.Fprintln(a.out)
	}
}

func (a *app) selectEnvironment(ctx context.Context) error {
	report.Environments(a.out, a.catalog, a.envName())

	profiles := a.catalog.List()
	options := make([]huh.Option[int], 0, len(profiles))
	for i, p := range profiles {
		label := p.Name
		if p.Group != "" {
			label += "  (" + p.Group + ")"
		}
		options = append(options, huh.NewOption(label, i))
	}
	idx := 0
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Environment").
			Options(options...).
			Value(&idx),
	)).Run(); err != nil {
		return err
	}

	res, err := a.disp.Dispatch(ctx, action.SwitchEnvironment, action.Request{EnvIndex: idx})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, report.Success(fmt.Sprintf("Connected to %s (%s)", res.Environment.Name, res.Environment.Endpoint)))
	return nil
}

func (a *app) selectAction() (action.Action, error) {
	options := make([]huh.Option[action.Action], 0, len(action.All)+1)
	for _, act := range action.All {
		options = append(options, huh.NewOption(fmt.Sprintf("%d  %s", int(act), act), act))
	}
	options = append(options, huh.NewOption("q  Quit", quit))

	act := action.ListProjects
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[action.Action]().
			Title("Action").
			Description("Connected to " + a.envName()).
			Options(options...).
			Value(&act),
	)).Run()
	return act, err
}

func (a *app) runAction(ctx context.Context, act action.Action) error {
	env := a.envName()
	switch act {
	case action.SwitchEnvironment:
		return a.selectEnvironment(ctx)

	case action.ListProjects:
		res, err := a.disp.Dispatch(ctx, act, action.Request{})
		if err != nil {
			return err
		}
		report.Projects(a.out, env, res.Projects)

	case action.ListProxyServices, action.ListBusinessServices:
		res, err := a.disp.Dispatch(ctx, act, action.Request{})
		if err != nil {
			return err
		}
		kind := api.KindProxy
		if act == action.ListBusinessServices {
			kind = api.KindBusiness
		}
		report.Services(a.out, env, kind, res.Services)

	case action.ProjectDetails:
		projects, err := a.pickProjects(ctx, false)
		if err != nil {
			return err
		}
		res, err := a.disp.Dispatch(ctx, act, action.Request{Project: projects[0]})
		if err != nil {
			return err
		}
		report.Details(a.out, env, res.Details)

	case action.UndeployProject:
		projects, err := a.pickProjects(ctx, true)
		if err != nil {
			return err
		}
		var failed []string
		for _, p := range projects {
			if err := a.undeploy(ctx, p, false); err != nil {
				a.errorf("%s: %v", p, err)
				failed = append(failed, p)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed for %s", strings.Join(failed, ", "))
		}

	case action.ToggleServices, action.ToggleMonitoring:
		paths, enable, err := askToggle(act)
		if err != nil {
			return err
		}
		return a.applyToggle(ctx, act, paths, enable)

	default:
		_, err := a.disp.Dispatch(ctx, act, action.Request{})
		return err
	}
	return nil
}

// pickProjects offers the deployed projects; multi allows selecting several.
func (a *app) pickProjects(ctx context.Context, multi bool) ([]string, error) {
	res, err := a.disp.Dispatch(ctx, action.ListProjects, action.Request{})
	if err != nil {
		return nil, err
	}
	if len(res.Projects) == 0 {
		return nil, errors.New("no projects deployed")
	}
	options := huh.NewOptions(res.Projects...)

	if multi {
		var selected []string
		err := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Projects to undeploy").
				Options(options...).
				Filterable(true).
				Value(&selected).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return errors.New("select at least one project")
					}
					return nil
				}),
		)).Run()
		return selected, err
	}

	var project string
	err = huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Project").
			Options(options...).
			Value(&project),
	)).Run()
	return []string{project}, err
}

func askToggle(act action.Action) ([]string, bool, error) {
	var (
		raw    string
		enable = true
	)
	what := "proxy services"
	if act == action.ToggleMonitoring {
		what = "monitoring"
	}
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Service paths").
			Description("Space separated, e.g. Orders/proxy/OrderPS Billing/proxy/InvoicePS").
			Value(&raw).
			Validate(func(s string) error {
				if len(action.ParsePaths(s)) == 0 {
					return errors.New("enter at least one full path")
				}
				return nil
			}),
		huh.NewSelect[bool]().
			Title("Change "+what).
			Options(huh.NewOption("Enable", true), huh.NewOption("Disable", false)).
			Value(&enable),
	)).Run()
	return action.ParsePaths(raw), enable, err
}
