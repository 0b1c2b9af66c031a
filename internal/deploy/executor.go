package deploy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/inventory"
	"github.com/flo-mic/osbctl/internal/journal"
)

// ErrStalePlan is returned when a plan was computed on an earlier connection.
var ErrStalePlan = errors.New("undeploy plan belongs to a previous connection")

// Recorder receives every mutation outcome. *journal.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Executor performs state-changing operations on the active session, one step at a time.
type Executor struct {
	src     inventory.Source
	journal Recorder
	log     *slog.Logger
}

// NewExecutor returns an executor. rec may be nil.
func NewExecutor(src inventory.Source, rec Recorder, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{src: src, journal: rec, log: log}
}

func (e *Executor) session() (connection.Session, string, error) {
	s, err := e.src.Session()
	if err != nil {
		return nil, "", err
	}
	env, _ := e.src.CurrentEnvironment()
	return s, env.Name, nil
}

func (e *Executor) record(ctx context.Context, env, action, target, status string, err error) {
	if e.journal == nil {
		return
	}
	entry := journal.Entry{Environment: env, Action: action, Target: target, Status: status}
	if err != nil {
		entry.Detail = err.Error()
	}
	if rerr := e.journal.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		e.log.Warn("journal write failed", "action", action, "target", target, "err", rerr)
	}
}

func newSessionName() string {
	return "osbctl-" + uuid.NewString()
}

// discard drops a change session even when ctx was cancelled.
func (e *Executor) discard(ctx context.Context, s connection.Session, name string) {
	if err := s.DiscardChangeSession(context.WithoutCancel(ctx), name); err != nil {
		e.log.Warn("discarding change session", "session", name, "err", err)
	}
}

func (e *Executor) cancelEdit(ctx context.Context, s connection.Session) {
	if err := s.CancelEdit(context.WithoutCancel(ctx)); err != nil {
		e.log.Warn("cancelling domain edit", "err", err)
	}
}
