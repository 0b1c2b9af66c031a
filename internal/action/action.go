package action

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned by actions that are advertised but not implemented.
var ErrNotSupported = errors.New("action not supported")

// Action identifies one operator menu entry.
type Action int

const (
	SwitchEnvironment Action = iota
	ListProjects
	ListProxyServices
	ListBusinessServices
	UndeployProject
	ProjectDetails
	DiscardSessions
	ToggleServices
	ToggleMonitoring
)

// All lists every action in menu order.
var All = []Action{
	SwitchEnvironment,
	ListProjects,
	ListProxyServices,
	ListBusinessServices,
	UndeployProject,
	ProjectDetails,
	DiscardSessions,
	ToggleServices,
	ToggleMonitoring,
}

var titles = map[Action]string{
	SwitchEnvironment:    "Switch environment",
	ListProjects:         "List projects",
	ListProxyServices:    "List proxy services",
	ListBusinessServices: "List business services",
	UndeployProject:      "Undeploy project",
	ProjectDetails:       "Project details",
	DiscardSessions:      "Discard open sessions",
	ToggleServices:       "Enable/disable proxy services",
	ToggleMonitoring:     "Enable/disable proxy monitoring",
}

func (a Action) String() string {
	if t, ok := titles[a]; ok {
		return t
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Valid reports whether a is one of the advertised actions.
func (a Action) Valid() bool {
	_, ok := titles[a]
	return ok
}

// InputError reports a missing or malformed input for an action.
type InputError struct {
	Action Action
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Action, e.Field, e.Reason)
}

// ParsePaths splits space separated service paths.
func ParsePaths(s string) []string {
	return strings.Fields(s)
}
