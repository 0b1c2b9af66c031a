package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/inventory"
)

// Status of one undeploy step.
type Status string

const (
	Removed  Status = "Removed"
	Failed   Status = "Failed"
	NotFound Status = "Not found"
	Kept     Status = "Kept"
)

// Outcome is the result of removing one resource.
type Outcome struct {
	Kind   string
	Name   string
	Status Status
	Err    error
}

// Label is "<kind> <name>", the form used in PartialUndeployError.
func (o Outcome) Label() string { return o.Kind + " " + o.Name }

const (
	kindProject          = "project"
	kindQueue            = string(inventory.ResourceQueue)
	kindErrorDestination = string(inventory.ResourceErrorDestination)
	kindWorkManager      = string(inventory.ResourceWorkManager)
)

// ErrNoPlan is returned by Undeploy when called without a plan.
var ErrNoPlan = errors.New("no undeploy plan")

// UndeployResult lists every step in execution order.
type UndeployResult struct {
	Project     string
	Environment string
	Outcomes    []Outcome
}

// PartialUndeployError reports that the project is gone but some dependent resources are not.
type PartialUndeployError struct {
	Project string
	Removed []string
	Failed  []string
}

func (e *PartialUndeployError) Error() string {
	return fmt.Sprintf("project %s removed, but %d dependent resource(s) failed: %s (removed: %s)",
		e.Project, len(e.Failed), strings.Join(e.Failed, ", "), orNone(e.Removed))
}

func orNone(ss []string) string {
	if len(ss) == 0 {
		return "none"
	}
	return strings.Join(ss, ", ")
}

// Undeploy removes the plan's project, then each planned queue, error destination, work
// manager and threads constraint, in that order. Nothing outside the plan is touched.
// Project removal is all-or-nothing: if it fails nothing else is touched. Later failures do
// not stop the remaining steps and are reported as a *PartialUndeployError. An error
// destination or constraint whose queue or work manager failed to go is kept.
func (e *Executor) Undeploy(ctx context.Context, plan *inventory.Plan) (*UndeployResult, error) {
	if plan == nil {
		return nil, ErrNoPlan
	}
	s, env, err := e.session()
	if err != nil {
		return nil, err
	}
	if plan.Generation != 0 && plan.Generation != e.src.Generation() {
		return nil, ErrStalePlan
	}

	res := &UndeployResult{Project: plan.Project, Environment: env}
	failed := map[string]bool{}
	add := func(o Outcome) {
		res.Outcomes = append(res.Outcomes, o)
		e.record(ctx, env, "undeploy", o.Label(), string(o.Status), o.Err)
		switch {
		case o.Status == Failed:
			failed[o.Label()] = true
			e.log.Error("undeploy step failed", "env", env, "resource", o.Label(), "err", o.Err)
		case o.Err != nil:
			e.log.Warn("undeploy step skipped", "env", env, "resource", o.Label(), "status", o.Status, "reason", o.Err)
		default:
			e.log.Info("undeploy step", "env", env, "resource", o.Label(), "status", o.Status)
		}
	}

	if err := e.removeProject(ctx, s, plan.Project); err != nil {
		add(Outcome{Kind: kindProject, Name: plan.Project, Status: Failed, Err: err})
		return res, fmt.Errorf("removing project %s: %w", plan.Project, err)
	}
	add(Outcome{Kind: kindProject, Name: plan.Project, Status: Removed})

	for _, q := range plan.QueuesToRemove {
		add(e.removeDestination(ctx, s, kindQueue, q))
	}
	for _, d := range plan.ErrorDestinationsToRemove {
		if o, ok := blocked(d, kindQueue, failed); ok {
			add(o)
			continue
		}
		add(e.removeDestination(ctx, s, kindErrorDestination, d.Name))
	}
	for _, wm := range plan.WorkManagersToRemove {
		add(e.removeWorkManager(ctx, s, wm))
	}
	for _, c := range plan.ConstraintsToRemove {
		if o, ok := blocked(c, kindWorkManager, failed); ok {
			add(o)
			continue
		}
		add(e.removeConstraint(ctx, s, c))
	}

	perr := &PartialUndeployError{Project: plan.Project}
	for _, o := range res.Outcomes[1:] {
		switch o.Status {
		case Removed:
			perr.Removed = append(perr.Removed, o.Label())
		case Failed:
			perr.Failed = append(perr.Failed, o.Label())
		}
	}
	if len(perr.Failed) > 0 {
		return res, perr
	}
	return res, nil
}

// blocked keeps d when one of the resources using it could not be removed.
func blocked(d inventory.Dependent, ownerKind string, failed map[string]bool) (Outcome, bool) {
	for _, u := range d.UsedBy {
		if failed[ownerKind+" "+u] {
			return Outcome{Kind: string(d.Kind), Name: d.Name, Status: Kept,
				Err: fmt.Errorf("%s %s was not removed", ownerKind, u)}, true
		}
	}
	return Outcome{}, false
}

func (e *Executor) removeProject(ctx context.Context, s connection.Session, project string) error {
	name := newSessionName()
	if err := s.CreateChangeSession(ctx, name); err != nil {
		return fmt.Errorf("creating change session: %w", err)
	}
	if err := s.DeleteProject(ctx, name, project); err != nil {
		e.discard(ctx, s, name)
		return err
	}
	if err := s.ActivateChangeSession(ctx, name, "osbctl: undeploy project "+project); err != nil {
		e.discard(ctx, s, name)
		return fmt.Errorf("activating change session: %w", err)
	}
	return nil
}

// removeDestination deletes every JMS destination called name, whatever module it lives in.
func (e *Executor) removeDestination(ctx context.Context, s connection.Session, kind, name string) Outcome {
	dests, err := s.ListDestinations(ctx)
	if err != nil {
		return Outcome{Kind: kind, Name: name, Status: Failed, Err: fmt.Errorf("listing destinations: %w", err)}
	}

	var targets []api.JMSDestination
	for _, d := range dests {
		if d.Name == name {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return Outcome{Kind: kind, Name: name, Status: NotFound}
	}

	err = e.inEdit(ctx, s, func() error {
		for _, d := range targets {
			if err := s.DeleteDestination(ctx, d); err != nil {
				return fmt.Errorf("deleting %s %s/%s: %w", d.Kind, d.Module, d.Name, err)
			}
		}
		return nil
	})
	return outcome(kind, name, err)
}

func (e *Executor) removeWorkManager(ctx context.Context, s connection.Session, name string) Outcome {
	wms, err := s.ListWorkManagers(ctx)
	if err != nil {
		return Outcome{Kind: kindWorkManager, Name: name, Status: Failed, Err: fmt.Errorf("listing work managers: %w", err)}
	}
	if !slices.ContainsFunc(wms, func(wm api.WorkManager) bool { return wm.Name == name }) {
		return Outcome{Kind: kindWorkManager, Name: name, Status: NotFound}
	}

	err = e.inEdit(ctx, s, func() error {
		if err := s.DeleteWorkManager(ctx, name); err != nil {
			return fmt.Errorf("deleting work manager %s: %w", name, err)
		}
		return nil
	})
	return outcome(kindWorkManager, name, err)
}

func (e *Executor) removeConstraint(ctx context.Context, s connection.Session, c inventory.Dependent) Outcome {
	kind := api.MinThreads
	if c.Kind == inventory.ResourceMaxConstraint {
		kind = api.MaxThreads
	}
	err := e.inEdit(ctx, s, func() error {
		if err := s.DeleteConstraint(ctx, kind, c.Name); err != nil {
			return fmt.Errorf("deleting %s %s: %w", c.Kind, c.Name, err)
		}
		return nil
	})
	if errors.Is(err, api.ErrNotFound) {
		return Outcome{Kind: string(c.Kind), Name: c.Name, Status: NotFound}
	}
	return outcome(string(c.Kind), c.Name, err)
}

func outcome(kind, name string, err error) Outcome {
	if err != nil {
		return Outcome{Kind: kind, Name: name, Status: Failed, Err: err}
	}
	return Outcome{Kind: kind, Name: name, Status: Removed}
}

// inEdit runs fn inside a domain edit, activating on success and cancelling otherwise.
func (e *Executor) inEdit(ctx context.Context, s connection.Session, fn func() error) error {
	if err := s.StartEdit(ctx); err != nil {
		return fmt.Errorf("starting edit: %w", err)
	}
	if err := fn(); err != nil {
		e.cancelEdit(ctx, s)
		return err
	}
	if err := s.ActivateEdit(ctx); err != nil {
		e.cancelEdit(ctx, s)
		return fmt.Errorf("activating edit: %w", err)
	}
	return nil
}
