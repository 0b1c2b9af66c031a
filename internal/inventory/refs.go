package inventory

import (
	"strings"

	"github.com/flo-mic/osbctl/internal/api"
)

// Work managers every domain ships with; no project ever owns them.
var defaultWorkManagers = map[string]bool{
	"":                             true,
	"default":                      true,
	"None":                         true,
	"SBDefaultResponseWorkManager": true,
}

// IsDefaultWorkManager reports whether name refers to a built-in work manager.
func IsDefaultWorkManager(name string) bool {
	return defaultWorkManagers[strings.TrimSpace(name)]
}

// QueueFromURI extracts the queue name from a jms:// endpoint URI.
// jms://host:7001/weblogic.jms.XAConnectionFactory/jms.OrderQueue yields OrderQueue.
func QueueFromURI(uri string) (string, bool) {
	uri = strings.TrimSpace(uri)
	if len(uri) < 6 || !strings.EqualFold(uri[:6], "jms://") {
		return "", false
	}
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		uri = uri[:i]
	}
	uri = strings.TrimRight(uri[6:], "/")
	last := uri[strings.LastIndexByte(uri, '/')+1:]
	if !strings.Contains(uri, "/") || last == "" {
		return "", false
	}
	name := last[strings.LastIndexByte(last, '.')+1:]
	return name, name != ""
}

// references returns the non-default work managers and the queues a service depends on.
func references(s api.Service) (workManager, queue string) {
	if !IsDefaultWorkManager(s.WorkManager) {
		workManager = strings.TrimSpace(s.WorkManager)
	}
	queue, _ = QueueFromURI(s.URI)
	return workManager, queue
}
