package inventory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
)

// Source hands out the active session. *connection.Manager satisfies it.
type Source interface {
	Session() (connection.Session, error)
	CurrentEnvironment() (config.EnvironmentProfile, bool)
	Generation() uint64
}

// Inventory answers read-only questions about the connected environment.
// Nothing is cached: every call goes to the session that is active right now.
type Inventory struct {
	src Source
	log *slog.Logger
}

func New(src Source, log *slog.Logger) *Inventory {
	if log == nil {
		log = slog.Default()
	}
	return &Inventory{src: src, log: log}
}

// ListProjects returns the deployed project names in lexical order.
func (inv *Inventory) ListProjects(ctx context.Context) ([]string, error) {
	s, err := inv.src.Session()
	if err != nil {
		return nil, err
	}
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	projects = slices.Clone(projects)
	slices.Sort(projects)
	return slices.Compact(projects), nil
}

// ListServices returns every service of kind, grouped by project and sorted by full path.
func (inv *Inventory) ListServices(ctx context.Context, kind api.ServiceKind) ([]api.Service, error) {
	s, err := inv.src.Session()
	if err != nil {
		return nil, err
	}
	services, err := s.ListServices(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s services: %w", kind, err)
	}
	services = slices.Clone(services)
	sortServices(services)
	return services, nil
}

// ProjectDetails lists the services of one project and the resources they reference.
func (inv *Inventory) ProjectDetails(ctx context.Context, project string) (*Details, error) {
	s, err := inv.src.Session()
	if err != nil {
		return nil, err
	}
	services, err := s.ProjectServices(ctx, project)
	if errors.Is(err, api.ErrNotFound) {
		return nil, &ProjectNotFoundError{Project: project}
	}
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", project, err)
	}

	services = slices.Clone(services)
	sortServices(services)
	d := &Details{Project: project, Services: services}
	for _, svc := range services {
		wm, q := references(svc)
		if wm != "" && !slices.Contains(d.WorkManagers, wm) {
			d.WorkManagers = append(d.WorkManagers, wm)
		}
		if q != "" && !slices.Contains(d.Queues, q) {
			d.Queues = append(d.Queues, q)
		}
	}
	slices.Sort(d.WorkManagers)
	slices.Sort(d.Queues)
	return d, nil
}

func sortServices(services []api.Service) {
	slices.SortFunc(services, func(a, b api.Service) int {
		return cmp.Or(
			cmp.Compare(a.Project(), b.Project()),
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
}
