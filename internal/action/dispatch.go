package action

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/deploy"
	"github.com/flo-mic/osbctl/internal/inventory"
)

// Request carries the inputs an action may need. Unused fields are ignored.
type Request struct {
	EnvIndex int
	Project  string
	Paths    []string
	Enable   bool

	// Confirm is asked before an undeploy plan is executed. Nil means yes.
	Confirm func(*inventory.Plan) (bool, error)
}

// Result holds whatever the action produced.
type Result struct {
	Action      Action
	Environment *config.EnvironmentProfile
	Projects    []string
	Services    []api.Service
	Details     *inventory.Details
	Plan        *inventory.Plan
	Undeploy    *deploy.UndeployResult
	Batch       deploy.BatchResult
	Cancelled   bool
}

// Dispatcher maps actions to component calls.
type Dispatcher struct {
	Catalog   *config.Catalog
	Conn      *connection.Manager
	Inventory *inventory.Inventory
	Resolver  *inventory.Resolver
	Executor  *deploy.Executor
	Log       *slog.Logger
}

// Dispatch validates req for a and runs it. Component errors are returned unchanged,
// together with any partial result.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action, req Request) (*Result, error) {
	if a == DiscardSessions {
		return nil, ErrNotSupported
	}
	if !a.Valid() {
		return nil, &InputError{Action: a, Field: "action", Reason: "is not in the menu"}
	}
	if err := validate(a, &req); err != nil {
		return nil, err
	}
	if d.Log != nil {
		d.Log.Debug("dispatch", "action", a.String(), "project", req.Project, "paths", req.Paths)
	}

	res := &Result{Action: a}
	var err error
	switch a {
	case SwitchEnvironment:
		var p config.EnvironmentProfile
		if p, err = d.Catalog.At(req.EnvIndex); err != nil {
			return nil, err
		}
		if err = d.Conn.SwitchEnvironment(ctx, p); err == nil {
			res.Environment = &p
		}
	case ListProjects:
		res.Projects, err = d.Inventory.ListProjects(ctx)
	case ListProxyServices:
		res.Services, err = d.Inventory.ListServices(ctx, api.KindProxy)
	case ListBusinessServices:
		res.Services, err = d.Inventory.ListServices(ctx, api.KindBusiness)
	case ProjectDetails:
		res.Details, err = d.Inventory.ProjectDetails(ctx, req.Project)
	case UndeployProject:
		err = d.undeploy(ctx, req, res)
	case ToggleServices:
		res.Batch, err = d.Executor.SetServiceEnabled(ctx, req.Paths, req.Enable)
	case ToggleMonitoring:
		res.Batch, err = d.Executor.SetMonitoringEnabled(ctx, req.Paths, req.Enable)
	}
	return res, err
}

func (d *Dispatcher) undeploy(ctx context.Context, req Request, res *Result) error {
	plan, err := d.Resolver.PlanUndeploy(ctx, req.Project)
	if err != nil {
		return err
	}
	res.Plan = plan
	if req.Confirm != nil {
		ok, err := req.Confirm(plan)
		if err != nil {
			return err
		}
		if !ok {
			res.Cancelled = true
			return nil
		}
	}
	res.Undeploy, err = d.Executor.Undeploy(ctx, plan)
	return err
}

func validate(a Action, req *Request) error {
	switch a {
	case UndeployProject, ProjectDetails:
		req.Project = strings.TrimSpace(req.Project)
		if req.Project == "" {
			return &InputError{Action: a, Field: "project", Reason: "is required"}
		}
	case ToggleServices, ToggleMonitoring:
		var paths []string
		for _, p := range req.Paths {
			paths = append(paths, ParsePaths(p)...)
		}
		if len(paths) == 0 {
			return &InputError{Action: a, Field: "paths", Reason: "needs at least one full path"}
		}
		req.Paths = paths
	}
	return nil
}
