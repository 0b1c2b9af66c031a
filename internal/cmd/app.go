package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flo-mic/osbctl/internal/action"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/deploy"
	"github.com/flo-mic/osbctl/internal/inventory"
	"github.com/flo-mic/osbctl/internal/journal"
	"github.com/flo-mic/osbctl/internal/logging"
	"github.com/flo-mic/osbctl/internal/report"
	"github.com/flo-mic/osbctl/internal/sbapi"
)

// app wires settings, catalog, connection and the components on top of it for one invocation.
type app struct {
	settings *config.Settings
	log      *logging.Logger
	catalog  *config.Catalog
	conn     *connection.Manager
	journal  *journal.Store
	disp     *action.Dispatcher
	out      io.Writer
}

func newApp(opts *rootOptions, out io.Writer) (*app, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if opts.environments != "" {
		s.EnvironmentsFile = opts.environments
	}
	if opts.logLevel != "" {
		s.LogLevel = opts.logLevel
	}

	log, err := logging.New(s.LogLevel, s.LogFile)
	if err != nil {
		return nil, err
	}

	catalog, err := config.LoadCatalog(s.EnvironmentsFile)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("%w (run 'osbctl init' to create it)", err)
	}

	a := &app{settings: s, log: log, catalog: catalog, out: out}

	var rec deploy.Recorder
	if !s.JournalDisabled() {
		store, err := journal.Open(s.Journal)
		if err != nil {
			log.Warn("journal unavailable", "path", s.Journal, "err", err)
		} else {
			a.journal = store
			rec = store
		}
	}

	dialer := sbapi.Dialer{Timeout: s.Timeout, TaskPoll: s.TaskPoll, Logger: log.Logger}
	a.conn = connection.NewManager(dialer, log.Logger)
	a.disp = &action.Dispatcher{
		Catalog:   catalog,
		Conn:      a.conn,
		Inventory: inventory.New(a.conn, log.Logger),
		Resolver:  inventory.NewResolver(a.conn, log.Logger),
		Executor:  deploy.NewExecutor(a.conn, rec, log.Logger),
		Log:       log.Logger,
	}
	log.Debug("started", "environments", s.EnvironmentsFile, "count", len(catalog.List()))
	return a, nil
}

func (a *app) Close() {
	if err := a.conn.Close(); err != nil {
		a.log.Warn("closing connection", "err", err)
	}
	if a.journal != nil {
		a.journal.Close()
	}
	a.log.Close()
}

// connect switches to the named environment through the dispatcher.
func (a *app) connect(ctx context.Context, name string) (*action.Result, error) {
	i, err := a.catalog.Index(name)
	if err != nil {
		return nil, err
	}
	return a.disp.Dispatch(ctx, action.SwitchEnvironment, action.Request{EnvIndex: i})
}

func (a *app) envName() string {
	if p, ok := a.conn.CurrentEnvironment(); ok {
		return p.Name
	}
	return ""
}

func (a *app) errorf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, report.Error(fmt.Sprintf(format, args...)))
}
