package inventory

import (
	"errors"
	"fmt"

	"github.com/flo-mic/osbctl/internal/api"
)

// ErrProjectNotFound is matched by every ProjectNotFoundError.
var ErrProjectNotFound = errors.New("project not found")

// ProjectNotFoundError names the missing project.
type ProjectNotFoundError struct {
	Project string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.Project)
}

func (e *ProjectNotFoundError) Unwrap() error { return ErrProjectNotFound }

// ResourceKind is a dependent resource type that a project can own.
type ResourceKind string

const (
	ResourceWorkManager      ResourceKind = "work manager"
	ResourceQueue            ResourceKind = "queue"
	ResourceErrorDestination ResourceKind = "error destination"
	ResourceMaxConstraint    ResourceKind = "max threads constraint"
	ResourceMinConstraint    ResourceKind = "min threads constraint"
)

// Details lists everything deployed under one project.
type Details struct {
	Project      string
	Services     []api.Service
	WorkManagers []string
	Queues       []string
}

// SharedResource is a resource that survives the undeploy. Owners lists the other projects
// referencing it, or the surviving destinations and work managers that still use it.
type SharedResource struct {
	Kind   ResourceKind
	Name   string
	Owners []string
}

// Dependent is an error destination or threads constraint that goes away because
// every queue or work manager using it does.
type Dependent struct {
	Kind   ResourceKind
	Name   string
	UsedBy []string
}

// Plan is the set of resources that go away together with a project.
// It is valid only for the connection it was computed on.
type Plan struct {
	Project              string
	Environment          string
	Generation           uint64
	WorkManagersToRemove []string
	QueuesToRemove       []string

	// removed after the queues and work managers they belong to
	ErrorDestinationsToRemove []Dependent
	ConstraintsToRemove       []Dependent

	Shared []SharedResource
}

// Empty reports whether only the project itself would be removed.
func (p Plan) Empty() bool {
	return len(p.WorkManagersToRemove) == 0 && len(p.QueuesToRemove) == 0 &&
		len(p.ErrorDestinationsToRemove) == 0 && len(p.ConstraintsToRemove) == 0
}
