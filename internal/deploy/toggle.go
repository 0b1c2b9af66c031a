package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/connection"
)

// ErrInvalidPath is reported for paths that are not project/.../name.
var ErrInvalidPath = errors.New("invalid service path")

// PathStatus is the per-path outcome of a batch toggle.
type PathStatus int

const (
	Changed PathStatus = iota
	Unchanged
	PathFailed
)

// PathResult reports what happened to one service path.
type PathResult struct {
	Path    string
	Enabled bool
	Status  PathStatus
	Err     error
}

// OK is true unless the path failed.
func (r PathResult) OK() bool { return r.Status != PathFailed }

// String renders Enabled/Disabled, with a trailing * when the flag already had that value.
func (r PathResult) String() string {
	if r.Status == PathFailed {
		return "Failed: " + r.Err.Error()
	}
	s := "Disabled"
	if r.Enabled {
		s = "Enabled"
	}
	if r.Status == Unchanged {
		s += "*"
	}
	return s
}

// BatchResult maps every requested path to its outcome.
type BatchResult map[string]PathResult

// Paths returns the result keys in lexical order.
func (b BatchResult) Paths() []string {
	out := make([]string, 0, len(b))
	for p := range b {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Failed counts failed paths.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b {
		if !r.OK() {
			n++
		}
	}
	return n
}

type flag struct {
	action string
	what   string
	get    func(api.Service) bool
	set    func(s connection.Session, ctx context.Context, session, path string, enabled bool) error
}

var (
	stateFlag = flag{
		action: "service",
		what:   "proxy service",
		get:    func(s api.Service) bool { return s.Enabled },
		set:    connection.Session.SetProxyEnabled,
	}
	monitoringFlag = flag{
		action: "monitoring",
		what:   "monitoring of proxy service",
		get:    func(s api.Service) bool { return s.MonitoringEnabled },
		set:    connection.Session.SetProxyMonitoring,
	}
)

// SetServiceEnabled enables or disables every listed proxy service in one change session.
// A bad path never aborts the batch. If no change session can be opened, every path fails
// with that error.
func (e *Executor) SetServiceEnabled(ctx context.Context, paths []string, enabled bool) (BatchResult, error) {
	return e.toggle(ctx, stateFlag, paths, enabled)
}

// SetMonitoringEnabled switches monitoring for every listed proxy service.
func (e *Executor) SetMonitoringEnabled(ctx context.Context, paths []string, enabled bool) (BatchResult, error) {
	return e.toggle(ctx, monitoringFlag, paths, enabled)
}

func (e *Executor) toggle(ctx context.Context, f flag, paths []string, enabled bool) (BatchResult, error) {
	s, env, err := e.session()
	if err != nil {
		return nil, err
	}

	verb := "disable"
	if enabled {
		verb = "enable"
	}
	action := f.action + "-" + verb
	if f.action == "service" {
		action = verb
	}

	name := newSessionName()
	if err := s.CreateChangeSession(ctx, name); err != nil {
		err = fmt.Errorf("creating change session: %w", err)
		res := BatchResult{}
		for _, p := range dedupe(paths) {
			res[p] = PathResult{Path: p, Enabled: enabled, Status: PathFailed, Err: err}
		}
		e.finish(ctx, env, action, res)
		return res, nil
	}

	res := BatchResult{}
	var changed []string
	for _, p := range dedupe(paths) {
		r := PathResult{Path: p, Enabled: enabled}
		switch err := e.apply(ctx, s, f, name, p, enabled); {
		case errors.Is(err, errUnchanged):
			r.Status = Unchanged
		case err != nil:
			r.Status, r.Err = PathFailed, err
		default:
			r.Status = Changed
			changed = append(changed, p)
		}
		res[p] = r
	}

	if len(changed) == 0 {
		e.discard(ctx, s, name)
	} else {
		desc := fmt.Sprintf("osbctl: %s %s %s", verb, f.what, strings.Join(changed, " "))
		if err := s.ActivateChangeSession(ctx, name, desc); err != nil {
			e.discard(ctx, s, name)
			err = fmt.Errorf("activating change session: %w", err)
			for _, p := range changed {
				res[p] = PathResult{Path: p, Enabled: enabled, Status: PathFailed, Err: err}
			}
		}
	}

	e.finish(ctx, env, action, res)
	return res, nil
}

// finish journals and logs every path of a batch.
func (e *Executor) finish(ctx context.Context, env, action string, res BatchResult) {
	for _, p := range res.Paths() {
		r := res[p]
		e.record(ctx, env, action, p, r.String(), r.Err)
		if r.OK() {
			e.log.Info("toggled", "env", env, "action", action, "path", p, "result", r.String())
		} else {
			e.log.Error("toggle failed", "env", env, "action", action, "path", p, "err", r.Err)
		}
	}
}

var errUnchanged = errors.New("already in requested state")

func (e *Executor) apply(ctx context.Context, s connection.Session, f flag, session, path string, enabled bool) error {
	if !validPath(path) {
		return fmt.Errorf("%w %q: want project/.../name", ErrInvalidPath, path)
	}
	svc, err := s.ProxyService(ctx, path)
	if err != nil {
		return err
	}
	if f.get(svc) == enabled {
		return errUnchanged
	}
	return f.set(s, ctx, session, path, enabled)
}

func validPath(p string) bool {
	segs := strings.Split(p, "/")
	if len(segs) < 2 {
		return false
	}
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

func dedupe(paths []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
