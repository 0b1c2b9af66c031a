package api

import "strings"

// ServiceKind distinguishes inbound proxy services from outbound business services.
type ServiceKind string

const (
	KindProxy    ServiceKind = "proxy"
	KindBusiness ServiceKind = "business"
)

// Service describes a deployed proxy or business service.
// Path is the full path project/folder.../name and identifies the service within a deployment.
type Service struct {
	Kind              ServiceKind `json:"kind"`
	Path              string      `json:"path"`
	URI               string      `json:"uri,omitempty"`
	WorkManager       string      `json:"workManager,omitempty"`
	Enabled           bool        `json:"enabled"`
	MonitoringEnabled bool        `json:"monitoringEnabled"`
}

// Project returns the first segment of the service path.
func (s Service) Project() string {
	return ProjectOf(s.Path)
}

// ProjectOf returns the project segment of a full path.
func ProjectOf(path string) string {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}

// JMSDestination is a queue-like destination inside a JMS module.
type JMSDestination struct {
	Module           string `json:"module"`
	Name             string `json:"name"`
	Kind             string `json:"kind"` // Queue | UniformDistributedQueue | ForeignDestination
	ErrorDestination string `json:"errorDestination,omitempty"`
}

const (
	DestinationQueue       = "Queue"
	DestinationDistributed = "UniformDistributedQueue"
	DestinationForeign     = "ForeignDestination"
)

// WorkManager is a self-tuning work manager and the thread constraints bound to it.
type WorkManager struct {
	Name                 string `json:"name"`
	MaxThreadsConstraint string `json:"maxThreadsConstraint,omitempty"`
	MinThreadsConstraint string `json:"minThreadsConstraint,omitempty"`
}

// ConstraintKind names a threads constraint type.
type ConstraintKind string

const (
	MaxThreads ConstraintKind = "max"
	MinThreads ConstraintKind = "min"
)

// TaskStatus reports the progress of an asynchronous activation.
type TaskStatus struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // running | completed | failed
	Message string `json:"message,omitempty"`
}

const (
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// SessionRequest creates a change session.
type SessionRequest struct {
	Name string `json:"name"`
}

// ActivateRequest activates a change session with a description.
type ActivateRequest struct {
	Description string `json:"description"`
}

// TaskRef is returned by activation endpoints.
type TaskRef struct {
	Task string `json:"task"`
}

// ToggleRequest flips the enabled or monitoring flag of one proxy service.
type ToggleRequest struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

// VersionInfo is returned by the ping endpoint.
type VersionInfo struct {
	Version string `json:"version"`
}
