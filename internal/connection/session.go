package connection

import (
	"context"

	"github.com/flo-mic/osbctl/internal/api"
)

// Session is a live login against one management runtime.
//
// Service-bus changes (project deletion, proxy toggles) are staged inside a named
// change session and take effect on ActivateChangeSession. Domain resources (JMS
// destinations, work managers, constraints) are changed inside a domain edit that
// takes effect on ActivateEdit. Activation calls block until the runtime reports
// the activation task as finished.
type Session interface {
	Ping(ctx context.Context) error
	Close() error

	ListProjects(ctx context.Context) ([]string, error)
	ListServices(ctx context.Context, kind api.ServiceKind) ([]api.Service, error)
	ProjectServices(ctx context.Context, project string) ([]api.Service, error)
	ProxyService(ctx context.Context, path string) (api.Service, error)
	ListChangeSessions(ctx context.Context) ([]string, error)

	CreateChangeSession(ctx context.Context, name string) error
	ActivateChangeSession(ctx context.Context, name, description string) error
	DiscardChangeSession(ctx context.Context, name string) error
	DeleteProject(ctx context.Context, session, project string) error
	SetProxyEnabled(ctx context.Context, session, path string, enabled bool) error
	SetProxyMonitoring(ctx context.Context, session, path string, enabled bool) error

	StartEdit(ctx context.Context) error
	ActivateEdit(ctx context.Context) error
	CancelEdit(ctx context.Context) error
	ListDestinations(ctx context.Context) ([]api.JMSDestination, error)
	DeleteDestination(ctx context.Context, d api.JMSDestination) error
	ListWorkManagers(ctx context.Context) ([]api.WorkManager, error)
	DeleteWorkManager(ctx context.Context, name string) error
	DeleteConstraint(ctx context.Context, kind api.ConstraintKind, name string) error
}
