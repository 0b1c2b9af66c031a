package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/flo-mic/osbctl/internal/action"
	"github.com/flo-mic/osbctl/internal/inventory"
	"github.com/flo-mic/osbctl/internal/report"
)

// undeploy plans, confirms and executes the removal of one project on the connected environment.
func (a *app) undeploy(ctx context.Context, project string, yes bool) error {
	confirm := func(p *inventory.Plan) (bool, error) {
		report.Plan(a.out, p)
		if yes {
			return true, nil
		}
		var ok bool
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Undeploy %s from %s?", p.Project, p.Environment)).
				Description("The project cannot be restored by osbctl once it is removed.").
				Affirmative("Undeploy").
				Negative("Cancel").
				Value(&ok),
		)).Run()
		return ok, err
	}

	res, err := a.disp.Dispatch(ctx, action.UndeployProject, action.Request{Project: project, Confirm: confirm})
	if res != nil && res.Undeploy != nil {
		report.Undeploy(a.out, res.Undeploy)
	}
	if err != nil {
		return err
	}
	if res.Cancelled {
		fmt.Fprintln(a.out, report.Warning("undeploy of "+project+" cancelled"))
		return nil
	}
	fmt.Fprintln(a.out, report.Success(fmt.Sprintf("%s undeployed from %s", project, a.envName())))
	return nil
}

// toggle connects to env and flips the enabled or monitoring flag of every path.
func (a *app) toggle(ctx context.Context, act action.Action, env string, paths []string, enable bool) error {
	if _, err := a.connect(ctx, env); err != nil {
		return err
	}
	return a.applyToggle(ctx, act, paths, enable)
}

func (a *app) applyToggle(ctx context.Context, act action.Action, paths []string, enable bool) error {
	res, err := a.disp.Dispatch(ctx, act, action.Request{Paths: paths, Enable: enable})
	if err != nil {
		return err
	}
	verb := "Disable"
	if enable {
		verb = "Enable"
	}
	title := verb + " proxy services on " + a.envName()
	if act == action.ToggleMonitoring {
		title = verb + " monitoring on " + a.envName()
	}
	report.Batch(a.out, title, res.Batch)
	if n := res.Batch.Failed(); n > 0 {
		return fmt.Errorf("%d of %d path(s) failed", n, len(res.Batch))
	}
	return nil
}
