// Package sbtest provides an in-memory service-bus runtime and an HTTP server
// speaking the management wire protocol, for tests.
package sbtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
)

var errClosed = errors.New("session closed")

// Runtime is an in-memory management runtime. It implements connection.Session.
// Changes made inside a change session or domain edit only become visible on activation.
type Runtime struct {
	mu sync.Mutex

	projects     map[string]bool
	services     map[string]api.Service
	destinations []api.JMSDestination
	workManagers []api.WorkManager
	constraints  map[api.ConstraintKind]map[string]bool

	sessions map[string][]func()
	editing  bool
	editOps  []func()

	failures    map[string]error
	calls       int
	dials       int
	closed      bool
	activations []string
}

var _ connection.Session = (*Runtime)(nil)

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		projects: map[string]bool{},
		services: map[string]api.Service{},
		constraints: map[api.ConstraintKind]map[string]bool{
			api.MaxThreads: {},
			api.MinThreads: {},
		},
		sessions: map[string][]func(){},
		failures: map[string]error{},
	}
}

// AddProject registers an empty project.
func (r *Runtime) AddProject(name string) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[name] = true
	return r
}

// AddService deploys a service and its project. Kind defaults to proxy.
func (r *Runtime) AddService(s api.Service) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Kind == "" {
		s.Kind = api.KindProxy
	}
	r.projects[s.Project()] = true
	r.services[s.Path] = s
	return r
}

// AddDestination creates a JMS destination. Kind defaults to Queue.
func (r *Runtime) AddDestination(d api.JMSDestination) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Kind == "" {
		d.Kind = api.DestinationQueue
	}
	r.destinations = append(r.destinations, d)
	return r
}

// AddWorkManager creates a work manager and any constraints it names.
func (r *Runtime) AddWorkManager(wm api.WorkManager) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workManagers = append(r.workManagers, wm)
	if wm.MaxThreadsConstraint != "" {
		r.constraints[api.MaxThreads][wm.MaxThreadsConstraint] = true
	}
	if wm.MinThreadsConstraint != "" {
		r.constraints[api.MinThreads][wm.MinThreadsConstraint] = true
	}
	return r
}

// FailOn makes the operation identified by key return err.
// Keys: ping, list-projects, list-services, list-destinations, list-workmanagers,
// create-session, activate-session, delete-project:<p>, set-enabled:<path>,
// set-monitoring:<path>, start-edit, activate-edit, delete-destination:<name>,
// delete-workmanager:<name>, delete-constraint:<name>.
func (r *Runtime) FailOn(key string, err error) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[key] = err
	return r
}

// Calls is the number of Session methods invoked so far.
func (r *Runtime) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Dials counts how often a Dialer handed out this runtime.
func (r *Runtime) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// Closed reports whether Close was called since the last dial.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Activations lists the descriptions of activated change sessions.
func (r *Runtime) Activations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.activations)
}

// Editing reports whether a domain edit is open.
func (r *Runtime) Editing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editing
}

func (r *Runtime) HasProject(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projects[name]
}

func (r *Runtime) Service(path string) (api.Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[path]
	return s, ok
}

func (r *Runtime) HasDestination(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destinationIndex(name) >= 0
}

func (r *Runtime) HasWorkManager(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workManagerIndex(name) >= 0
}

func (r *Runtime) HasConstraint(kind api.ConstraintKind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.constraints[kind][name]
}

// enter counts the call and reports closure or an injected failure. Callers hold mu.
func (r *Runtime) enter(key string) error {
	r.calls++
	if r.closed {
		return errClosed
	}
	if err, ok := r.failures[key]; ok {
		return err
	}
	return nil
}

func (r *Runtime) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enter("ping")
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.closed = true
	return nil
}

func (r *Runtime) ListProjects(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("list-projects"); err != nil {
		return nil, err
	}
	var out []string
	for p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

// ListServices returns services in map order; callers sort.
func (r *Runtime) ListServices(ctx context.Context, kind api.ServiceKind) ([]api.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("list-services"); err != nil {
		return nil, err
	}
	var out []api.Service
	for _, s := range r.services {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Runtime) ProjectServices(ctx context.Context, project string) ([]api.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("project-services"); err != nil {
		return nil, err
	}
	if !r.projects[project] {
		return nil, fmt.Errorf("project %s: %w", project, api.ErrNotFound)
	}
	var out []api.Service
	for _, s := range r.services {
		if s.Project() == project {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Runtime) ProxyService(ctx context.Context, path string) (api.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("proxy:" + path); err != nil {
		return api.Service{}, err
	}
	s, ok := r.services[path]
	if !ok || s.Kind != api.KindProxy {
		return api.Service{}, fmt.Errorf("proxy service %s: %w", path, api.ErrNotFound)
	}
	return s, nil
}

func (r *Runtime) ListChangeSessions(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("list-sessions"); err != nil {
		return nil, err
	}
	var out []string
	for name := range r.sessions {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (r *Runtime) CreateChangeSession(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("create-session"); err != nil {
		return err
	}
	if _, ok := r.sessions[name]; ok {
		return fmt.Errorf("session %s already exists", name)
	}
	r.sessions[name] = nil
	return nil
}

func (r *Runtime) ActivateChangeSession(ctx context.Context, name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("activate-session"); err != nil {
		return err
	}
	ops, ok := r.sessions[name]
	if !ok {
		return fmt.Errorf("session %s: %w", name, api.ErrNotFound)
	}
	for _, op := range ops {
		op()
	}
	delete(r.sessions, name)
	r.activations = append(r.activations, description)
	return nil
}

func (r *Runtime) DiscardChangeSession(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("discard-session"); err != nil {
		return err
	}
	if _, ok := r.sessions[name]; !ok {
		return fmt.Errorf("session %s: %w", name, api.ErrNotFound)
	}
	delete(r.sessions, name)
	return nil
}

func (r *Runtime) stage(session string, op func()) error {
	ops, ok := r.sessions[session]
	if !ok {
		return fmt.Errorf("session %s: %w", session, api.ErrNotFound)
	}
	r.sessions[session] = append(ops, op)
	return nil
}

func (r *Runtime) DeleteProject(ctx context.Context, session, project string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("delete-project:" + project); err != nil {
		return err
	}
	if !r.projects[project] {
		return fmt.Errorf("project %s: %w", project, api.ErrNotFound)
	}
	return r.stage(session, func() {
		delete(r.projects, project)
		for path, s := range r.services {
			if s.Project() == project {
				delete(r.services, path)
			}
		}
	})
}

func (r *Runtime) SetProxyEnabled(ctx context.Context, session, path string, enabled bool) error {
	return r.toggle("set-enabled:", session, path, func(s *api.Service) { s.Enabled = enabled })
}

func (r *Runtime) SetProxyMonitoring(ctx context.Context, session, path string, enabled bool) error {
	return r.toggle("set-monitoring:", session, path, func(s *api.Service) { s.MonitoringEnabled = enabled })
}

func (r *Runtime) toggle(key, session, path string, set func(*api.Service)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(key + path); err != nil {
		return err
	}
	if s, ok := r.services[path]; !ok || s.Kind != api.KindProxy {
		return fmt.Errorf("proxy service %s: %w", path, api.ErrNotFound)
	}
	return r.stage(session, func() {
		if s, ok := r.services[path]; ok {
			set(&s)
			r.services[path] = s
		}
	})
}

func (r *Runtime) StartEdit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("start-edit"); err != nil {
		return err
	}
	if r.editing {
		return errors.New("domain edit already in progress")
	}
	r.editing = true
	r.editOps = nil
	return nil
}

func (r *Runtime) ActivateEdit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("activate-edit"); err != nil {
		return err
	}
	if !r.editing {
		return errors.New("no domain edit in progress")
	}
	for _, op := range r.editOps {
		op()
	}
	r.editing = false
	r.editOps = nil
	return nil
}

func (r *Runtime) CancelEdit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("cancel-edit"); err != nil {
		return err
	}
	r.editing = false
	r.editOps = nil
	return nil
}

func (r *Runtime) stageEdit(op func()) error {
	if !r.editing {
		return errors.New("no domain edit in progress")
	}
	r.editOps = append(r.editOps, op)
	return nil
}

func (r *Runtime) ListDestinations(ctx context.Context) ([]api.JMSDestination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("list-destinations"); err != nil {
		return nil, err
	}
	return slices.Clone(r.destinations), nil
}

func (r *Runtime) DeleteDestination(ctx context.Context, d api.JMSDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("delete-destination:" + d.Name); err != nil {
		return err
	}
	if !slices.Contains(r.destinations, d) {
		return fmt.Errorf("destination %s/%s: %w", d.Module, d.Name, api.ErrNotFound)
	}
	return r.stageEdit(func() {
		r.destinations = slices.DeleteFunc(r.destinations, func(x api.JMSDestination) bool { return x == d })
	})
}

func (r *Runtime) ListWorkManagers(ctx context.Context) ([]api.WorkManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("list-workmanagers"); err != nil {
		return nil, err
	}
	return slices.Clone(r.workManagers), nil
}

func (r *Runtime) DeleteWorkManager(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("delete-workmanager:" + name); err != nil {
		return err
	}
	if r.workManagerIndex(name) < 0 {
		return fmt.Errorf("work manager %s: %w", name, api.ErrNotFound)
	}
	return r.stageEdit(func() {
		r.workManagers = slices.DeleteFunc(r.workManagers, func(x api.WorkManager) bool { return x.Name == name })
	})
}

func (r *Runtime) DeleteConstraint(ctx context.Context, kind api.ConstraintKind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("delete-constraint:" + name); err != nil {
		return err
	}
	if !r.constraints[kind][name] {
		return fmt.Errorf("%s threads constraint %s: %w", kind, name, api.ErrNotFound)
	}
	return r.stageEdit(func() {
		delete(r.constraints[kind], name)
	})
}

func (r *Runtime) destinationIndex(name string) int {
	return slices.IndexFunc(r.destinations, func(d api.JMSDestination) bool { return d.Name == name })
}

func (r *Runtime) workManagerIndex(name string) int {
	return slices.IndexFunc(r.workManagers, func(wm api.WorkManager) bool { return wm.Name == name })
}

// Dialer hands out in-memory runtimes by environment name.
type Dialer struct {
	Runtimes map[string]*Runtime
	Failures map[string]error
}

func (d *Dialer) Dial(ctx context.Context, profile config.EnvironmentProfile) (connection.Session, error) {
	if err := d.Failures[profile.Name]; err != nil {
		return nil, err
	}
	rt, ok := d.Runtimes[profile.Name]
	if !ok {
		return nil, fmt.Errorf("no runtime at %s", profile.Endpoint)
	}
	rt.mu.Lock()
	rt.closed = false
	rt.dials++
	rt.mu.Unlock()
	return rt, nil
}
