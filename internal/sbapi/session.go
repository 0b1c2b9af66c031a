package sbapi

import (
	"context"
	"net/url"

	"github.com/flo-mic/osbctl/internal/api"
)

// Ping tests connectivity and credentials by fetching the version endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var v api.VersionInfo
	if err := c.get(ctx, "/version", &v); err != nil {
		return err
	}
	c.log.Debug("runtime version", "version", v.Version)
	return nil
}

// Close drops idle connections. The runtime holds no server-side login state.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListProjects returns the names of all deployed projects.
func (c *Client) ListProjects(ctx context.Context) ([]string, error) {
	var projects []string
	err := c.get(ctx, "/servicebus/projects", &projects)
	return projects, err
}

// ListServices returns every deployed service of the given kind.
func (c *Client) ListServices(ctx context.Context, kind api.ServiceKind) ([]api.Service, error) {
	var services []api.Service
	err := c.get(ctx, "/servicebus/services?kind="+url.QueryEscape(string(kind)), &services)
	return services, err
}

// ProjectServices returns the proxy and business services of one project.
func (c *Client) ProjectServices(ctx context.Context, project string) ([]api.Service, error) {
	var services []api.Service
	err := c.get(ctx, "/servicebus/projects/"+url.PathEscape(project)+"/services", &services)
	return services, err
}

// ProxyService fetches one proxy service by its full path.
func (c *Client) ProxyService(ctx context.Context, path string) (api.Service, error) {
	var svc api.Service
	err := c.get(ctx, "/servicebus/proxies?path="+url.QueryEscape(path), &svc)
	return svc, err
}

// ListChangeSessions returns the names of the open change sessions.
func (c *Client) ListChangeSessions(ctx context.Context) ([]string, error) {
	var sessions []string
	err := c.get(ctx, "/servicebus/sessions", &sessions)
	return sessions, err
}

// CreateChangeSession opens a named change session.
func (c *Client) CreateChangeSession(ctx context.Context, name string) error {
	return c.post(ctx, "/servicebus/sessions", api.SessionRequest{Name: name}, nil)
}

// ActivateChangeSession commits a change session and waits for the activation task.
func (c *Client) ActivateChangeSession(ctx context.Context, name, description string) error {
	var ref api.TaskRef
	if err := c.post(ctx, sessionPath(name)+"/activate", api.ActivateRequest{Description: description}, &ref); err != nil {
		return err
	}
	return c.waitRef(ctx, ref)
}

// DiscardChangeSession drops a change session and everything staged in it.
func (c *Client) DiscardChangeSession(ctx context.Context, name string) error {
	return c.delete(ctx, sessionPath(name))
}

// DeleteProject stages the removal of a project in a change session.
func (c *Client) DeleteProject(ctx context.Context, session, project string) error {
	return c.delete(ctx, sessionPath(session)+"/projects/"+url.PathEscape(project))
}

// SetProxyEnabled stages enabling or disabling a proxy service.
func (c *Client) SetProxyEnabled(ctx context.Context, session, path string, enabled bool) error {
	return c.post(ctx, sessionPath(session)+"/proxies/state", api.ToggleRequest{Path: path, Enabled: enabled}, nil)
}

// SetProxyMonitoring stages switching monitoring of a proxy service on or off.
func (c *Client) SetProxyMonitoring(ctx context.Context, session, path string, enabled bool) error {
	return c.post(ctx, sessionPath(session)+"/proxies/monitoring", api.ToggleRequest{Path: path, Enabled: enabled}, nil)
}

// StartEdit starts a domain edit for JMS and work manager changes.
func (c *Client) StartEdit(ctx context.Context) error {
	return c.post(ctx, "/weblogic/edit/start", nil, nil)
}

// ActivateEdit commits the domain edit and waits for the activation task.
func (c *Client) ActivateEdit(ctx context.Context) error {
	var ref api.TaskRef
	if err := c.post(ctx, "/weblogic/edit/activate", nil, &ref); err != nil {
		return err
	}
	return c.waitRef(ctx, ref)
}

// CancelEdit undoes the pending domain edit.
func (c *Client) CancelEdit(ctx context.Context) error {
	return c.post(ctx, "/weblogic/edit/cancel", nil, nil)
}

// ListDestinations returns the destinations of every JMS module.
func (c *Client) ListDestinations(ctx context.Context) ([]api.JMSDestination, error) {
	var dests []api.JMSDestination
	err := c.get(ctx, "/weblogic/jms/destinations", &dests)
	return dests, err
}

// DeleteDestination removes a destination in the current domain edit.
func (c *Client) DeleteDestination(ctx context.Context, d api.JMSDestination) error {
	return c.delete(ctx, "/weblogic/edit/jms/"+url.PathEscape(d.Module)+"/"+url.PathEscape(d.Kind)+"/"+url.PathEscape(d.Name))
}

// ListWorkManagers returns the work managers with their threads constraints.
func (c *Client) ListWorkManagers(ctx context.Context) ([]api.WorkManager, error) {
	var wms []api.WorkManager
	err := c.get(ctx, "/weblogic/workmanagers", &wms)
	return wms, err
}

// DeleteWorkManager removes a work manager in the current domain edit.
func (c *Client) DeleteWorkManager(ctx context.Context, name string) error {
	return c.delete(ctx, "/weblogic/edit/workmanagers/"+url.PathEscape(name))
}

// DeleteConstraint removes a max or min threads constraint in the current domain edit.
func (c *Client) DeleteConstraint(ctx context.Context, kind api.ConstraintKind, name string) error {
	return c.delete(ctx, "/weblogic/edit/constraints/"+url.PathEscape(string(kind))+"/"+url.PathEscape(name))
}

func (c *Client) waitRef(ctx context.Context, ref api.TaskRef) error {
	if ref.Task == "" {
		return nil
	}
	return c.WaitForTask(ctx, ref.Task, c.taskPoll)
}

func sessionPath(name string) string {
	return "/servicebus/sessions/" + url.PathEscape(name)
}
