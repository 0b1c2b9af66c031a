package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/flo-mic/osbctl/internal/api"
)

// Resolver computes which dependent resources a project owns exclusively.
type Resolver struct {
	src Source
	log *slog.Logger
}

func NewResolver(src Source, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{src: src, log: log}
}

// owners maps a resource name to every project referencing it.
type owners map[string][]string

// add records project as an owner of resource.
func (o owners) add(resource, project string) {
	if resource == "" {
		return
	}
	if !containsStr(o[resource], project) {
		o[resource] = append(o[resource], project)
	}
}

// exclusive reports whether project is the only owner of resource.
func (o owners) exclusive(resource, project string) bool {
	list := o[resource]
	return len(list) == 1 && list[0] == project
}

// PlanUndeploy scans every deployed proxy and business service to find the work managers
// and queues referenced by project and by no other project, then the error destinations
// and threads constraints that only those resources use. Ownership is computed on
// each call since other projects may have been deployed or removed in the meantime.
func (r *Resolver) PlanUndeploy(ctx context.Context, project string) (*Plan, error) {
	gen := r.src.Generation()
	s, err := r.src.Session()
	if err != nil {
		return nil, err
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	if !slices.Contains(projects, project) {
		return nil, &ProjectNotFoundError{Project: project}
	}

	wmOwners, queueOwners := owners{}, owners{}
	var wmRefs, queueRefs []string
	for _, kind := range []api.ServiceKind{api.KindProxy, api.KindBusiness} {
		services, err := s.ListServices(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("listing %s services: %w", kind, err)
		}
		for _, svc := range services {
			p := svc.Project()
			wm, q := references(svc)
			wmOwners.add(wm, p)
			queueOwners.add(q, p)
			if p != project {
				continue
			}
			if wm != "" && !containsStr(wmRefs, wm) {
				wmRefs = append(wmRefs, wm)
			}
			if q != "" && !containsStr(queueRefs, q) {
				queueRefs = append(queueRefs, q)
			}
		}
	}
	slices.Sort(wmRefs)
	slices.Sort(queueRefs)

	dests, err := s.ListDestinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	wms, err := s.ListWorkManagers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing work managers: %w", err)
	}

	plan := &Plan{Project: project, Generation: gen}
	if env, ok := r.src.CurrentEnvironment(); ok {
		plan.Environment = env.Name
	}
	for _, wm := range wmRefs {
		if wmOwners.exclusive(wm, project) {
			plan.WorkManagersToRemove = append(plan.WorkManagersToRemove, wm)
		} else {
			plan.Shared = append(plan.Shared, shared(ResourceWorkManager, wm, wmOwners[wm]))
		}
	}

	var queues []string
	for _, q := range queueRefs {
		if queueOwners.exclusive(q, project) {
			queues = append(queues, q)
		} else {
			plan.Shared = append(plan.Shared, shared(ResourceQueue, q, queueOwners[q]))
		}
	}
	plan.QueuesToRemove = planQueues(plan, queues, dests)
	planErrorDestinations(plan, dests, queueOwners, queueRefs)
	planConstraints(plan, wms)

	r.log.Info("undeploy planned", "project", project,
		"workManagers", plan.WorkManagersToRemove, "queues", plan.QueuesToRemove,
		"errorDestinations", len(plan.ErrorDestinationsToRemove), "constraints", len(plan.ConstraintsToRemove),
		"shared", len(plan.Shared))
	return plan, nil
}

// errorDestinationUsers maps every error destination to the destinations routing failures to it.
func errorDestinationUsers(dests []api.JMSDestination) owners {
	o := owners{}
	for _, d := range dests {
		if d.ErrorDestination != d.Name {
			o.add(d.ErrorDestination, "queue "+d.Name)
		}
	}
	return o
}

// surviving drops the users that are themselves planned for removal.
func surviving(users []string, removing []string) []string {
	var out []string
	for _, u := range users {
		if !containsStr(removing, strings.TrimPrefix(u, "queue ")) {
			out = append(out, u)
		}
	}
	return out
}

// planQueues keeps every candidate queue that a surviving destination still uses as its
// error destination. Keeping one queue can keep another, so it repeats until stable.
func planQueues(plan *Plan, candidates []string, dests []api.JMSDestination) []string {
	users := errorDestinationUsers(dests)
	removing := slices.Clone(candidates)
	for changed := true; changed; {
		changed = false
		for i, q := range removing {
			if len(surviving(users[q], removing)) > 0 {
				removing = slices.Delete(removing, i, i+1)
				changed = true
				break
			}
		}
	}
	for _, q := range candidates {
		if !containsStr(removing, q) {
			plan.Shared = append(plan.Shared, shared(ResourceQueue, q, surviving(users[q], removing)))
		}
	}
	return removing
}

// planErrorDestinations adds the error destination of each planned queue unless another
// project reads it or a surviving destination still routes failures to it.
func planErrorDestinations(plan *Plan, dests []api.JMSDestination, queueOwners owners, queueRefs []string) {
	usedBy := owners{}
	exists := map[string]bool{}
	for _, d := range dests {
		exists[d.Name] = true
		if d.ErrorDestination == "" || d.ErrorDestination == d.Name {
			continue
		}
		if containsStr(plan.QueuesToRemove, d.Name) && !containsStr(queueRefs, d.ErrorDestination) {
			usedBy.add(d.ErrorDestination, d.Name)
		}
	}

	users := errorDestinationUsers(dests)
	for _, dmq := range sortedKeys(usedBy) {
		if !exists[dmq] {
			continue
		}
		keep := append(slices.Clone(queueOwners[dmq]), surviving(users[dmq], plan.QueuesToRemove)...)
		if len(keep) > 0 {
			plan.Shared = append(plan.Shared, shared(ResourceErrorDestination, dmq, keep))
			continue
		}
		plan.ErrorDestinationsToRemove = append(plan.ErrorDestinationsToRemove,
			Dependent{Kind: ResourceErrorDestination, Name: dmq, UsedBy: sorted(usedBy[dmq])})
	}
}

// planConstraints adds the threads constraints of each planned work manager that no
// surviving work manager references.
func planConstraints(plan *Plan, wms []api.WorkManager) {
	for _, kind := range []ResourceKind{ResourceMaxConstraint, ResourceMinConstraint} {
		usedBy, kept := owners{}, owners{}
		for _, wm := range wms {
			name := constraintOf(wm, kind)
			if containsStr(plan.WorkManagersToRemove, wm.Name) {
				usedBy.add(name, wm.Name)
			} else {
				kept.add(name, "work manager "+wm.Name)
			}
		}
		for _, c := range sortedKeys(usedBy) {
			if len(kept[c]) > 0 {
				plan.Shared = append(plan.Shared, shared(kind, c, kept[c]))
				continue
			}
			plan.ConstraintsToRemove = append(plan.ConstraintsToRemove,
				Dependent{Kind: kind, Name: c, UsedBy: sorted(usedBy[c])})
		}
	}
}

func constraintOf(wm api.WorkManager, kind ResourceKind) string {
	if kind == ResourceMaxConstraint {
		return wm.MaxThreadsConstraint
	}
	return wm.MinThreadsConstraint
}

func sortedKeys(o owners) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sorted(list []string) []string {
	list = slices.Clone(list)
	slices.Sort(list)
	return list
}

func shared(kind ResourceKind, name string, list []string) SharedResource {
	return SharedResource{Kind: kind, Name: name, Owners: sorted(list)}
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
